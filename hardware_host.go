//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voiceboard-go/internal/platform"
	"voiceboard-go/services/board"
	"voiceboard-go/services/config"
	"voiceboard-go/services/network"
	"voiceboard-go/services/settings"
)

func appContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// hardware emulates the profile's peripherals and keeps settings in a
// file so volume, brightness and the transport survive restarts.
func hardware(p *config.Profile) (board.Hardware, *settings.Store, error) {
	store, err := settings.Open(settings.NewFileBackend(envOr("SETTINGS_FILE", "voiceboard-settings.cbor")))
	if err != nil {
		return board.Hardware{}, nil, err
	}

	i2c := platform.NewI2C()
	if p.I2C.ProbeAddr != 0 {
		i2c.Attach(p.I2C.ProbeAddr)
	}
	if p.Codec != nil {
		i2c.Attach(p.Codec.Addr)
	}

	pins := &platform.Pins{}
	for _, b := range p.Buttons {
		pins.Pin(b.Pin).Set(b.ActiveLow) // released
	}

	hw := board.Hardware{
		PWM:        platform.NewPWM(),
		I2C:        i2c,
		Pins:       pins,
		Station:    platform.NewFakeStation(envOr("WIFI_SSID", "voiceboard"), -50),
		Modem:      network.UARTPort(platform.NewFakeModem()),
		Advertiser: network.NewMDNS(2 * time.Minute),
	}
	if p.Display != nil {
		hw.Panel = platform.NewFakePanel(p.Display.Width, p.Display.Height)
	}
	if p.Battery != nil {
		adc := &platform.FakeADC{}
		adc.Set(0x9700) // about 3.9 V behind a 1:1 divider
		hw.ADC = adc
	}
	return hw, store, nil
}
