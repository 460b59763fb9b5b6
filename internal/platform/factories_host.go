//go:build !rp2040 && !rp2350

package platform

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"sync/atomic"

	"tinygo.org/x/drivers"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/internal/gpioirq"
)

// ----------------------------- GPIO (host) -----------------------------------

// FakePin is a GPIO with IRQ support for host builds.
type FakePin struct {
	mu      sync.Mutex
	number  int
	level   bool
	irqEdge gpioirq.Edge
	irqFunc func()
}

var _ gpioirq.IRQPin = (*FakePin)(nil)

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Set drives the level and fires the IRQ handler on a wanted edge.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq() // ISR-style callback used by gpioirq.Worker
	}
}

func (p *FakePin) SetIRQ(edge gpioirq.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = gpioirq.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) gpioirq.Edge {
	switch {
	case !old && new:
		return gpioirq.EdgeRising
	case old && !new:
		return gpioirq.EdgeFalling
	default:
		return gpioirq.EdgeNone
	}
}

func irqWanted(cfg, seen gpioirq.Edge) bool {
	switch cfg {
	case gpioirq.EdgeBoth:
		return seen == gpioirq.EdgeRising || seen == gpioirq.EdgeFalling
	default:
		return cfg != gpioirq.EdgeNone && cfg == seen
	}
}

// Pins returns stable *FakePin instances per number.
type Pins struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *Pins) Pin(n int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p
}

// Input satisfies the board's pin lookup.
func (f *Pins) Input(n int) (gpioirq.IRQPin, bool) {
	if n < 0 {
		return nil, false
	}
	return f.Pin(n), true
}

// ----------------------------- I²C (host) ------------------------------------

var ErrNACK = errors.New("i2c: no ack")

// I2CDevice is an emulated register-file device. A write of [reg, data...]
// stores data from reg; a write of [reg] followed by a read returns
// registers from reg.
type I2CDevice struct {
	mu   sync.Mutex
	Regs [256]byte
	// Writes counts register writes per register.
	Writes [256]int
}

func (d *I2CDevice) Reg(r uint8) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Regs[r]
}

func (d *I2CDevice) tx(w, r []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(w) == 0 {
		return
	}
	reg := w[0]
	for i, b := range w[1:] {
		d.Regs[reg+uint8(i)] = b
		d.Writes[reg+uint8(i)]++
	}
	for i := range r {
		r[i] = d.Regs[reg+uint8(i)]
	}
}

// I2C is a host bus with emulated devices; absent addresses NACK.
type I2C struct {
	mu      sync.Mutex
	devices map[uint16]*I2CDevice
	fail    atomic.Bool
}

var _ drivers.I2C = (*I2C)(nil)

func NewI2C() *I2C { return &I2C{devices: map[uint16]*I2CDevice{}} }

// Attach adds (or returns) the device at addr.
func (b *I2C) Attach(addr uint16) *I2CDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.devices[addr]
	if !ok {
		d = &I2CDevice{}
		b.devices[addr] = d
	}
	return d
}

func (b *I2C) Detach(addr uint16) {
	b.mu.Lock()
	delete(b.devices, addr)
	b.mu.Unlock()
}

// SetStuck makes every transaction fail, as with a held-low SDA line.
func (b *I2C) SetStuck(on bool) { b.fail.Store(on) }

func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if b.fail.Load() {
		return ErrNACK
	}
	b.mu.Lock()
	d := b.devices[addr]
	b.mu.Unlock()
	if d == nil {
		return ErrNACK
	}
	d.tx(w, r)
	return nil
}

// ----------------------------- SPI (host) ------------------------------------

// SPI records written bytes.
type SPI struct {
	mu      sync.Mutex
	Written int
}

var _ drivers.SPI = (*SPI)(nil)

func (s *SPI) Tx(w, r []byte) error {
	s.mu.Lock()
	s.Written += len(w)
	s.mu.Unlock()
	for i := range r {
		r[i] = 0
	}
	return nil
}

func (s *SPI) Transfer(b byte) (byte, error) {
	s.mu.Lock()
	s.Written++
	s.mu.Unlock()
	return 0, nil
}

// ----------------------------- Panel (host) ----------------------------------

// FakePanel is an in-memory framebuffer.
type FakePanel struct {
	mu       sync.Mutex
	w, h     int16
	pix      []color.RGBA
	asleep   bool
	Flushes  int
	SleepErr error
}

var _ Panel = (*FakePanel)(nil)

func NewFakePanel(w, h int16) *FakePanel {
	return &FakePanel{w: w, h: h, pix: make([]color.RGBA, int(w)*int(h))}
}

func (p *FakePanel) Size() (int16, int16) { return p.w, p.h }

func (p *FakePanel) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return
	}
	p.mu.Lock()
	p.pix[int(y)*int(p.w)+int(x)] = c
	p.mu.Unlock()
}

func (p *FakePanel) Pixel(x, y int16) color.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pix[int(y)*int(p.w)+int(x)]
}

func (p *FakePanel) Display() error {
	p.mu.Lock()
	p.Flushes++
	p.mu.Unlock()
	return nil
}

func (p *FakePanel) Sleep(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SleepErr != nil {
		return p.SleepErr
	}
	p.asleep = on
	return nil
}

func (p *FakePanel) Asleep() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asleep
}

// ----------------------------- ADC (host) ------------------------------------

// FakeADC returns whatever was last stored.
type FakeADC struct{ v atomic.Uint32 }

var _ ADC = (*FakeADC)(nil)

func (a *FakeADC) Set(v uint16) { a.v.Store(uint32(v)) }
func (a *FakeADC) Get() uint16  { return uint16(a.v.Load()) }

// ----------------------------- Wi-Fi (host) ----------------------------------

// FakeStation is a Wi-Fi station that connects instantly unless told to fail.
type FakeStation struct {
	mu        sync.Mutex
	ssid      string
	rssi      int
	connected bool
	fail      error

	Connects, Disconnects int
}

func NewFakeStation(ssid string, rssi int) *FakeStation {
	return &FakeStation{ssid: ssid, rssi: rssi}
}

func (s *FakeStation) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Connects++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.fail != nil {
		return s.fail
	}
	s.connected = true
	return nil
}

func (s *FakeStation) Disconnect() error {
	s.mu.Lock()
	s.Disconnects++
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *FakeStation) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *FakeStation) SSID() string { s.mu.Lock(); defer s.mu.Unlock(); return s.ssid }
func (s *FakeStation) RSSI() int    { s.mu.Lock(); defer s.mu.Unlock(); return s.rssi }

func (s *FakeStation) IP() string {
	if s.Connected() {
		return "192.168.4.2"
	}
	return ""
}

func (s *FakeStation) SetRSSI(v int)      { s.mu.Lock(); s.rssi = v; s.mu.Unlock() }
func (s *FakeStation) FailWith(err error) { s.mu.Lock(); s.fail = err; s.mu.Unlock() }

// ----------------------------- PWM (host) ------------------------------------

// NewPWM returns the in-memory LEDC controller.
func NewPWM() *ledc.Host { return ledc.NewHost() }
