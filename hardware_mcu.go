//go:build rp2040 || rp2350

package main

import (
	"context"
	"time"

	"voiceboard-go/internal/platform"
	"voiceboard-go/services/board"
	"voiceboard-go/services/config"
	"voiceboard-go/services/settings"
)

func appContext() (context.Context, context.CancelFunc) {
	// Allow USB CDC to enumerate before we log.
	time.Sleep(2 * time.Second)
	return context.WithCancel(context.Background())
}

func hardware(p *config.Profile) (board.Hardware, *settings.Store, error) {
	i2c, err := platform.NewI2C(p.I2C.Bus, p.I2C.SDA, p.I2C.SCL, p.I2C.Hz)
	if err != nil {
		return board.Hardware{}, nil, err
	}
	hw := board.Hardware{
		PWM:     platform.NewPWM(),
		I2C:     i2c,
		Pins:    platform.Pins{},
		Station: platform.NoStation{},
	}
	if d := p.Display; d != nil {
		spi, err := platform.NewSPI(d.SPI.Bus, d.SPI.SCK, d.SPI.SDO, d.SPI.SDI, d.SPI.Hz)
		if err != nil {
			return board.Hardware{}, nil, err
		}
		hw.Panel = platform.NewST7789(spi, platform.PanelPins{
			Reset: d.Reset, DC: d.DC, CS: d.CS, Backlight: -1,
			Width: d.Width, Height: d.Height,
		})
	}
	if b := p.Battery; b != nil {
		hw.ADC = platform.NewADC(b.ADCPin)
	}
	if m := p.Network.Modem; m != nil {
		hw.Modem = platform.NewModemPort(m.UART, m.TX, m.RX, m.Baud)
	}
	return hw, settings.NewMemory(), nil
}
