// Package board assembles a voice-assistant board from its profile: the
// capability set (display, backlight, codec, LED, battery, servo), the
// network transport, buttons, power-save coordination and the device tools.
//
// Capabilities are built on first use and stay absent (nil) when the profile
// does not describe them or their bring-up fails.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"tinygo.org/x/drivers"

	"voiceboard-go/bus"
	"voiceboard-go/drivers/ledc"
	"voiceboard-go/drivers/servo"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/capset"
	"voiceboard-go/internal/gpioirq"
	"voiceboard-go/internal/platform"
	"voiceboard-go/services/config"
	"voiceboard-go/services/network"
	"voiceboard-go/services/power"
	"voiceboard-go/services/settings"
	"voiceboard-go/services/tools"
	"voiceboard-go/types"
	"voiceboard-go/x/timex"
)

// Board is the capability set the assistant runs against.
type Board interface {
	Name() string
	UUID() string

	Display() Display
	Backlight() Backlight
	AudioCodec() AudioCodec
	LED() LED
	Servo() *servo.Device
	Network() network.Transport
	BatteryLevel() (level int, charging, discharging, ok bool)

	StartNetwork(ctx context.Context) error
	NetworkStateIcon() string
	SetPowerSaveMode(enabled bool)
	NotifyDeviceState(s types.DeviceState)

	BoardJSON() string
	DeviceStatusJSON() string
	Capabilities() []types.CapabilityStatus

	Tools() *tools.Registry
	Power() *power.Coordinator
	Buttons() *Buttons
	HandleButton(ev types.ButtonEvent) types.Action
	Execute(ctx context.Context, a types.Action) error
	Run(ctx context.Context) error
	Close() error
}

// PinSource hands out input pins by number.
type PinSource interface {
	Input(n int) (gpioirq.IRQPin, bool)
}

// Hardware is the set of concrete peripherals a board is built on. Fields the
// profile does not use may be nil.
type Hardware struct {
	PWM        ledc.Controller
	I2C        drivers.I2C
	Panel      platform.Panel
	Pins       PinSource
	ADC        platform.ADC
	Station    network.Station
	Modem      network.SerialPort
	Advertiser network.Advertiser
}

// Deps are the services a board is wired into.
type Deps struct {
	Bus      *bus.Bus
	Settings *settings.Store
	App      Application
	Log      *slog.Logger

	Timing        Timing        // zero: DefaultTiming
	BacklightFade time.Duration // full-scale fade; zero switches instantly
	ProbeInterval time.Duration // zero: one second
	ToolOptions   []tools.Option
}

// New builds the board variant named by the profile. Construction order is
// fixed: shared bus probe, display bring-up, buttons, power coordinator,
// tools. A failed bus probe blocks in a diagnostic loop until ctx is done.
func New(ctx context.Context, p *config.Profile, hw Hardware, d Deps) (Board, error) {
	switch p.Variant {
	case VariantC3:
		b, err := NewKalicyhC3(ctx, p, hw, d)
		if err != nil {
			return nil, err
		}
		return b, nil
	case VariantS3ML307:
		b, err := NewKalicyhS3ML307(ctx, p, hw, d)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "board_new", Msg: fmt.Sprintf("unknown variant %q", p.Variant)}
	}
}

// base carries everything the variants share.
type base struct {
	p     *config.Profile
	hw    Hardware
	log   *slog.Logger
	conn  *bus.Connection
	store *settings.Store
	app   Application
	fade  time.Duration

	caps    *capset.Registry
	tools   *tools.Registry
	power   *power.Coordinator
	buttons *Buttons
	decide  Decider
	vendor  *settings.Settings
	uuid    string

	// transports; dual is nil on single-transport boards, otherwise net is
	// the dual facade
	wifi *network.WiFi
	cell *network.Cellular
	dual *network.Dual
	net  network.Transport

	closeOnce sync.Once
}

func newBase(p *config.Profile, hw Hardware, d Deps, decide Decider) (*base, error) {
	if d.Bus == nil {
		d.Bus = bus.NewBus(16)
	}
	if d.Settings == nil {
		d.Settings = settings.NewMemory()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.App == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "board_new", Msg: "application is required"}
	}
	log := d.Log.With("component", "board", "board", p.Name)
	b := &base{
		p:      p,
		hw:     hw,
		log:    log,
		conn:   d.Bus.NewConnection("board"),
		store:  d.Settings,
		app:    d.App,
		fade:   d.BacklightFade,
		caps:   capset.New(d.Log),
		tools:  tools.NewRegistry(d.Log, d.ToolOptions...),
		decide: decide,
		vendor: d.Settings.Namespace("vendor"),
	}
	b.uuid = b.loadUUID()
	return b, nil
}

// loadUUID returns the persisted board UUID, minting one on first boot.
func (b *base) loadUUID() string {
	ns := b.store.Namespace("board")
	if id := ns.String("uuid", ""); id != "" {
		return id
	}
	id := uuid.NewString()
	if err := ns.SetString("uuid", id); err != nil {
		b.log.Warn("persist uuid failed", "err", err)
	}
	return id
}

func (b *base) Name() string              { return b.p.Name }
func (b *base) UUID() string              { return b.uuid }
func (b *base) Tools() *tools.Registry    { return b.tools }
func (b *base) Power() *power.Coordinator { return b.power }
func (b *base) Buttons() *Buttons         { return b.buttons }
func (b *base) Dual() *network.Dual       { return b.dual }

// Network returns the transport currently carrying traffic. On a dual board
// that changes with each switch.
func (b *base) Network() network.Transport {
	if b.dual != nil {
		return b.dual.Network()
	}
	return b.net
}

// ----------------------------- capabilities ----------------------------------

func (b *base) Display() Display {
	return capset.Get(b.caps, types.KindDisplay, func() (Display, error) {
		if b.p.Display == nil || b.hw.Panel == nil {
			return nil, nil
		}
		d, err := NewLCDDisplay(b.hw.Panel, b.log)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

func (b *base) Backlight() Backlight {
	return capset.Get(b.caps, types.KindBacklight, func() (Backlight, error) {
		a, ok := b.p.PWM.Lookup("backlight")
		if !ok || b.p.Display == nil || b.hw.PWM == nil {
			return nil, nil
		}
		bl, err := NewPWMBacklight(b.hw.PWM, a, b.p.Display.BacklightInvert, b.fade,
			b.store.Namespace("display"), b.log)
		if err != nil {
			return nil, err
		}
		return bl, nil
	})
}

func (b *base) AudioCodec() AudioCodec {
	return capset.Get(b.caps, types.KindAudioCodec, func() (AudioCodec, error) {
		if b.p.Codec == nil || b.hw.I2C == nil {
			return nil, nil
		}
		c, err := NewES8311(b.hw.I2C, CodecConfig{
			Addr:             b.p.Codec.Addr,
			InputSampleRate:  b.p.Codec.InputSampleRate,
			OutputSampleRate: b.p.Codec.OutputSampleRate,
			DefaultVolume:    b.p.Codec.DefaultVolume,
		}, b.store.Namespace("audio"), b.log)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func (b *base) LED() LED {
	return capset.Get(b.caps, types.KindLED, func() (LED, error) {
		a, ok := b.p.PWM.Lookup("led")
		if !ok || b.hw.PWM == nil {
			return nil, nil
		}
		l, err := NewPWMLed(b.hw.PWM, a, b.log)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
}

// Servo returns the profile's servo. A servo whose channel cannot be claimed
// is still returned, uninitialised, so its tools report not_initialized.
func (b *base) Servo() *servo.Device {
	return capset.Get(b.caps, types.KindServo, func() (*servo.Device, error) {
		a, ok := b.p.PWM.Lookup("servo")
		if !ok || b.hw.PWM == nil {
			return nil, nil
		}
		s := servo.New(b.hw.PWM, servo.ConfigFrom(a), b.log)
		_ = s.Initialize() // logged by the driver
		return s, nil
	})
}

func (b *base) battery() *ADCBattery {
	return capset.Get(b.caps, types.KindBattery, func() (*ADCBattery, error) {
		cfg := b.p.Battery
		if cfg == nil || b.hw.ADC == nil {
			return nil, nil
		}
		var charge Pin
		if b.hw.Pins != nil && cfg.ChargePin >= 0 {
			if pin, ok := b.hw.Pins.Input(cfg.ChargePin); ok {
				charge = pin
			}
		}
		return NewADCBattery(b.hw.ADC, charge, cfg.DividerTopOhm, cfg.DividerBottomOhm, b.log)
	})
}

func (b *base) BatteryLevel() (int, bool, bool, bool) {
	bat := b.battery()
	if bat == nil {
		return 0, false, false, false
	}
	level, charging, discharging := bat.Level()
	return level, charging, discharging, true
}

// ----------------------------- construction steps ----------------------------

// probeBus blocks in a diagnostic loop until the shared bus answers at
// ProbeAddr or ctx is done.
func (b *base) probeBus(ctx context.Context, interval time.Duration) error {
	addr := b.p.I2C.ProbeAddr
	if addr == 0 {
		return nil
	}
	if b.hw.I2C == nil {
		return &errcode.E{C: errcode.ProbeFailed, Op: "i2c_probe", Msg: "no i2c bus"}
	}
	return probeLoop(ctx, b.hw.I2C, addr, interval, b.log)
}

func probeLoop(ctx context.Context, i2c drivers.I2C, addr uint16, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		err := i2c.Tx(addr, nil, nil)
		if err == nil {
			return nil
		}
		log.Error("failed to probe i2c bus, check the firmware matches the board", "addr", addr, "err", err)
		select {
		case <-ctx.Done():
			return errcode.Wrap(errcode.ProbeFailed, "i2c_probe", ctx.Err())
		case <-time.After(interval):
		}
	}
}

func (b *base) initButtons(timing Timing) error {
	if timing == (Timing{}) {
		timing = DefaultTiming
	}
	b.buttons = NewButtons(b.conn, timing, b.log)
	for _, cfg := range b.p.Buttons {
		var pin gpioirq.IRQPin
		if b.hw.Pins != nil {
			if p, ok := b.hw.Pins.Input(cfg.Pin); ok {
				pin = p
			}
		}
		if err := b.buttons.Add(cfg.Name, pin, cfg.ActiveLow); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) initPower() {
	b.power = power.New(b.p.Power.Config(), b.log, power.WithBus(b.conn))
	b.power.OnEnterSleep(func() {
		if d := b.Display(); d != nil {
			d.SetPowerSaveMode(true)
		}
	})
	b.power.OnExitSleep(func() {
		if d := b.Display(); d != nil {
			d.SetPowerSaveMode(false)
		}
	})
	b.power.OnShutdown(func() {
		b.log.Info("power save shutdown")
		if bl := b.Backlight(); bl != nil {
			if err := bl.SetBrightness(0, false); err != nil {
				b.log.Warn("backlight off failed", "err", err)
			}
		}
	})
	b.power.SetEnabled(true)
}

func (b *base) initTools() error {
	if err := registerPressToTalk(b.tools, b.vendor); err != nil {
		return err
	}
	if err := registerCommonTools(b.tools, b); err != nil {
		return err
	}
	if s := b.Servo(); s != nil {
		if err := tools.RegisterServo(b.tools, s, int(s.MaxAngle())); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------- network ---------------------------------------

func (b *base) wifiConfig() network.WiFiConfig {
	return network.WiFiConfig{
		Hostname: b.p.Network.WiFi.Hostname,
		Port:     b.p.Network.WiFi.Port,
		TXT:      []string{"board=" + b.p.Name, "uuid=" + b.uuid},
	}
}

func (b *base) newWiFi() *network.WiFi {
	return network.NewWiFi(b.hw.Station, b.wifiConfig(), b.hw.Advertiser, b.store.Namespace("wifi"), b.log)
}

func (b *base) StartNetwork(ctx context.Context) error {
	if b.dual != nil {
		return b.dual.Start(ctx)
	}
	if b.net == nil {
		return errcode.Absent
	}
	err := b.net.Start(ctx)
	b.publishNetwork()
	return err
}

func (b *base) publishNetwork() {
	if b.net == nil {
		return
	}
	ev := types.NetworkEvent{
		Type:   b.net.Type(),
		Active: b.net.Connected(),
		Icon:   b.net.StateIcon(),
		TSms:   timex.NowMs(),
	}
	b.conn.Publish(b.conn.NewMessage(network.TopicState, ev, true))
}

func (b *base) NetworkStateIcon() string {
	if b.net == nil {
		return network.IconWiFiOff
	}
	return b.net.StateIcon()
}

// SetPowerSaveMode(false) is a request for full performance; it wakes the
// power coordinator.
func (b *base) SetPowerSaveMode(enabled bool) {
	if !enabled && b.power != nil {
		b.power.WakeUp()
	}
	b.log.Debug("power save mode", "enabled", enabled)
}

// NotifyDeviceState lets the application push state changes to the
// indicators.
func (b *base) NotifyDeviceState(s types.DeviceState) {
	if l := b.LED(); l != nil {
		l.OnStateChanged(s)
	}
	if d := b.Display(); d != nil {
		d.SetStatus(s.String())
	}
}

// ----------------------------- buttons and actions ---------------------------

func (b *base) snapshot() Snapshot {
	s := Snapshot{
		State:         b.app.DeviceState(),
		PressToTalk:   pressToTalk(b.vendor),
		CanSwitchLink: b.dual != nil,
	}
	if b.net != nil {
		s.Network = b.net.Type()
		s.Connected = b.net.Connected()
	}
	return s
}

// HandleButton wakes the power coordinator and decides the action for ev.
// It never touches hardware.
func (b *base) HandleButton(ev types.ButtonEvent) types.Action {
	if b.power != nil {
		b.power.WakeUp()
	}
	a := b.decide(ev, b.snapshot())
	b.log.Debug("button", "button", ev.Button, "gesture", ev.Gesture, "action", a)
	return a
}

// Execute carries out a decided action.
func (b *base) Execute(ctx context.Context, a types.Action) error {
	switch a {
	case types.ActionNone:
		return nil
	case types.ActionToggleChat:
		b.app.ToggleChatState()
	case types.ActionStartListening:
		b.app.StartListening()
	case types.ActionStopListening:
		b.app.StopListening()
	case types.ActionWakeWord:
		b.app.WakeWordInvoke(b.p.WakeWord)
	case types.ActionResetWiFiConfig:
		if b.wifi == nil {
			return errcode.Absent
		}
		return b.resetWiFi(ctx)
	case types.ActionEnterWiFiConfig:
		if b.wifi == nil {
			return errcode.Absent
		}
		err := b.wifi.EnterConfigMode()
		b.publishNetwork()
		return err
	case types.ActionSwitchTransport:
		if b.dual == nil {
			return errcode.Unsupported
		}
		switched, err := b.dual.Switch(ctx, b.app.DeviceState())
		if err == nil && !switched {
			return errcode.SwitchNotAllowed
		}
		return err
	default:
		return errcode.Unsupported
	}
	return nil
}

// resetWiFi drops the station and restarts the transport in configuration
// mode.
func (b *base) resetWiFi(ctx context.Context) error {
	b.log.Info("resetting wifi configuration")
	if err := b.wifi.ResetConfig(); err != nil {
		return err
	}
	if b.dual != nil && b.dual.Active() != types.NetworkWiFi {
		return nil
	}
	if err := b.wifi.Stop(); err != nil {
		b.log.Warn("wifi stop failed", "err", err)
	}
	err := b.wifi.Start(ctx)
	b.publishNetwork()
	return err
}

// Run drives the board until ctx is done: button edges, the power
// coordinator tick, decided actions and the battery poll.
func (b *base) Run(ctx context.Context) error {
	buttons := b.conn.Subscribe(TopicButton.Append(bus.SingleWild))
	actions := b.conn.Subscribe(TopicAction)
	defer b.conn.Unsubscribe(buttons)
	defer b.conn.Unsubscribe(actions)

	b.buttons.Start(ctx)
	go b.power.Run(ctx)
	if bat := b.battery(); bat != nil {
		go bat.Run(ctx, b.p.Battery.Poll)
	}

	// Actions run on their own goroutine so a slow transport bring-up never
	// stalls button handling.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-actions.Channel():
				if !ok {
					return
				}
				a, _ := m.Payload.(types.Action)
				if err := b.Execute(ctx, a); err != nil {
					b.log.Warn("action failed", "action", a, "err", err)
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-buttons.Channel():
			if !ok {
				return nil
			}
			ev, ok := m.Payload.(types.ButtonEvent)
			if !ok {
				continue
			}
			if a := b.HandleButton(ev); a != types.ActionNone {
				b.conn.Publish(b.conn.NewMessage(TopicAction, a, false))
			}
		}
	}
}

// Close releases buttons, the transport and every built capability. It is
// safe to call more than once.
func (b *base) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.buttons != nil {
			_ = b.buttons.Close()
		}
		if b.net != nil {
			if e := b.net.Stop(); e != nil {
				b.log.Warn("network stop failed", "err", e)
			}
		}
		if s := b.caps.Built(); len(s) > 0 {
			b.log.Debug("closing capabilities", "kinds", s)
		}
		err = b.caps.Close()
	})
	return err
}
