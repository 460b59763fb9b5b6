// Command board-sim runs a board profile against emulated hardware with an
// interactive prompt for pressing buttons, driving the power coordinator
// and calling tools.
//
// Usage:
//
//	board-sim [-board kalicyh-c3] [-log-level info]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/chzyer/readline"

	"voiceboard-go/bus"
	"voiceboard-go/internal/log"
	"voiceboard-go/internal/platform"
	"voiceboard-go/services/board"
	"voiceboard-go/services/config"
	"voiceboard-go/services/network"
	"voiceboard-go/services/settings"
	"voiceboard-go/types"
)

func main() {
	boardName := flag.String("board", board.VariantC3, "board profile: "+fmt.Sprint(config.Boards()))
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "board> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline:", err)
		os.Exit(1)
	}
	defer rl.Close()
	log.InitWriter(rl.Stderr(), *level, false)

	p, err := config.Load(*boardName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := newSim(p)
	app := board.NewLocalApp(types.DeviceStateIdle, log.L())
	brd, err := board.New(ctx, p, s.hardware(p), board.Deps{
		Bus:      bus.NewBus(32),
		Settings: settings.NewMemory(),
		App:      app,
		Log:      log.L(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer brd.Close()
	app.OnStateChanged(brd.NotifyDeviceState)
	s.brd, s.app = brd, app

	if err := brd.StartNetwork(ctx); err != nil {
		fmt.Fprintln(rl.Stderr(), "network:", err)
	}
	go func() { _ = brd.Run(ctx) }()

	s.repl(ctx, cancel, rl)
}

// sim owns the emulated peripherals the prompt pokes at.
type sim struct {
	pins    *platform.Pins
	adc     *platform.FakeADC
	station *platform.FakeStation
	modem   *platform.FakeModem
	brd     board.Board
	app     *board.LocalApp
	buttons map[string]config.Button
	charge  int
}

func newSim(p *config.Profile) *sim {
	s := &sim{
		pins:    &platform.Pins{},
		adc:     &platform.FakeADC{},
		station: platform.NewFakeStation("voiceboard", -50),
		modem:   platform.NewFakeModem(),
		buttons: map[string]config.Button{},
		charge:  -1,
	}
	for _, b := range p.Buttons {
		s.buttons[b.Name] = b
		s.pins.Pin(b.Pin).Set(b.ActiveLow)
	}
	if p.Battery != nil {
		s.charge = p.Battery.ChargePin
	}
	s.adc.Set(0x9700)
	return s
}

func (s *sim) hardware(p *config.Profile) board.Hardware {
	i2c := platform.NewI2C()
	if p.I2C.ProbeAddr != 0 {
		i2c.Attach(p.I2C.ProbeAddr)
	}
	if p.Codec != nil {
		i2c.Attach(p.Codec.Addr)
	}
	hw := board.Hardware{
		PWM:     platform.NewPWM(),
		I2C:     i2c,
		Pins:    s.pins,
		Station: s.station,
		Modem:   network.UARTPort(s.modem),
	}
	if p.Display != nil {
		hw.Panel = platform.NewFakePanel(p.Display.Width, p.Display.Height)
	}
	if p.Battery != nil {
		hw.ADC = s.adc
	}
	return hw
}

// press drives the button's pin to its pressed level.
func (s *sim) press(name string, down bool) error {
	b, ok := s.buttons[name]
	if !ok {
		return fmt.Errorf("no button %q", name)
	}
	s.pins.Pin(b.Pin).Set(down != b.ActiveLow)
	return nil
}

func (s *sim) clicks(name string, n int) error {
	for i := 0; i < n; i++ {
		if err := s.press(name, true); err != nil {
			return err
		}
		time.Sleep(30 * time.Millisecond)
		if err := s.press(name, false); err != nil {
			return err
		}
		time.Sleep(60 * time.Millisecond)
	}
	return nil
}
