//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/st7789"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/gpioirq"
)

// ---- GPIO ----

type rp2Pin struct {
	p machine.Pin
}

func (r *rp2Pin) Get() bool { return r.p.Get() }

// IRQ support. The RP2 port provides SetInterrupt with PinChange flags.
func (r *rp2Pin) SetIRQ(edge gpioirq.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e gpioirq.Edge) machine.PinChange {
	switch e {
	case gpioirq.EdgeRising:
		return machine.PinRising
	case gpioirq.EdgeFalling:
		return machine.PinFalling
	case gpioirq.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// Pins maps logical numbers directly to machine.Pin(n) (GP numbering).
type Pins struct{}

// Input configures GPn as a pulled-up input (buttons are active low).
func (Pins) Input(n int) (gpioirq.IRQPin, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &rp2Pin{p: p}, true
}

// ---- Buses ----

// NewI2C configures I2C0 or I2C1.
func NewI2C(bus, sda, scl int, hz uint32) (drivers.I2C, error) {
	hw := machine.I2C0
	if bus == 1 {
		hw = machine.I2C1
	}
	if err := hw.Configure(machine.I2CConfig{
		Frequency: hz,
		SDA:       machine.Pin(sda),
		SCL:       machine.Pin(scl),
	}); err != nil {
		return nil, errcode.Wrap(errcode.HWError, "i2c_configure", err)
	}
	return hw, nil
}

// NewSPI configures SPI0 or SPI1 for a write-mostly panel.
func NewSPI(bus, sck, sdo, sdi int, hz uint32) (drivers.SPI, error) {
	hw := machine.SPI0
	if bus == 1 {
		hw = machine.SPI1
	}
	if err := hw.Configure(machine.SPIConfig{
		Frequency: hz,
		SCK:       machine.Pin(sck),
		SDO:       machine.Pin(sdo),
		SDI:       machine.Pin(sdi),
	}); err != nil {
		return nil, errcode.Wrap(errcode.HWError, "spi_configure", err)
	}
	return hw, nil
}

type PanelPins struct {
	Reset, DC, CS, Backlight int
	Width, Height            int16
}

// NewST7789 brings up an ST7789 panel on bus.
func NewST7789(bus drivers.SPI, p PanelPins) Panel {
	dev := st7789.New(bus, machine.Pin(p.Reset), machine.Pin(p.DC), machine.Pin(p.CS), machine.Pin(p.Backlight))
	dev.Configure(st7789.Config{Width: p.Width, Height: p.Height})
	return &dev
}

// ---- ADC ----

func NewADC(pin int) ADC {
	machine.InitADC()
	a := machine.ADC{Pin: machine.Pin(pin)}
	a.Configure(machine.ADCConfig{})
	return a
}

// ---- Modem UART ----

// NewModemPort configures UART0 or UART1 for the modem.
func NewModemPort(uart, tx, rx int, baud uint32) *uartx.UART {
	hw := uartx.UART0
	if uart == 1 {
		hw = uartx.UART1
	}
	_ = hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	})
	return hw
}

// ---- Wi-Fi ----

// NoStation stands in on boards without a Wi-Fi radio.
type NoStation struct{}

func (NoStation) Connect(context.Context) error { return errcode.Unsupported }
func (NoStation) Disconnect() error             { return nil }
func (NoStation) Connected() bool               { return false }
func (NoStation) SSID() string                  { return "" }
func (NoStation) RSSI() int                     { return 0 }
func (NoStation) IP() string                    { return "" }

// ---- PWM ----

func NewPWM() *ledc.RP2040 { return ledc.NewRP2040() }
