package board

import (
	"log/slog"
	"sync"

	"tinygo.org/x/drivers"

	"voiceboard-go/errcode"
	"voiceboard-go/services/settings"
	"voiceboard-go/x/mathx"
)

// AudioCodec is the control plane of the audio path. Sample data goes over
// I2S and is not modelled here.
type AudioCodec interface {
	InputSampleRate() int
	OutputSampleRate() int
	OutputVolume() int
	SetOutputVolume(v int) error
	EnableInput(on bool) error
	EnableOutput(on bool) error
}

// ES8311 registers used by the control plane.
const (
	es8311RegReset    = 0x00
	es8311RegSysPower = 0x0D
	es8311RegADCPower = 0x0E
	es8311RegDACPower = 0x12
	es8311RegADCVol   = 0x17
	es8311RegDACVol   = 0x32

	es8311CSMOn   = 0x80
	es8311Vol0dB  = 0xBF
	volumeKey     = "output_volume"
	defaultVolume = 70
)

// ES8311 is an I²C-controlled mono codec.
type ES8311 struct {
	bus   drivers.I2C
	addr  uint16
	inHz  int
	outHz int
	store *settings.Settings // "audio"
	log   *slog.Logger

	mu     sync.Mutex
	volume int
	input  bool
	output bool
}

var _ AudioCodec = (*ES8311)(nil)

type CodecConfig struct {
	Addr             uint16
	InputSampleRate  int
	OutputSampleRate int
	DefaultVolume    int
}

// NewES8311 resets the chip, checks it answers and restores the saved output
// volume.
func NewES8311(bus drivers.I2C, cfg CodecConfig, store *settings.Settings, log *slog.Logger) (*ES8311, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &ES8311{
		bus:   bus,
		addr:  cfg.Addr,
		inHz:  cfg.InputSampleRate,
		outHz: cfg.OutputSampleRate,
		store: store,
		log:   log.With("component", "es8311"),
	}
	if err := c.write(es8311RegReset, es8311CSMOn); err != nil {
		return nil, err
	}
	got, err := c.read(es8311RegReset)
	if err != nil {
		return nil, err
	}
	if got != es8311CSMOn {
		return nil, &errcode.E{C: errcode.ProbeFailed, Op: "es8311_probe", Msg: "reset register did not stick"}
	}
	if err := c.write(es8311RegSysPower, 0x01); err != nil {
		return nil, err
	}

	def := cfg.DefaultVolume
	if def == 0 {
		def = defaultVolume
	}
	vol := def
	if store != nil {
		vol = store.Int(volumeKey, def)
	}
	if err := c.applyVolume(vol); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ES8311) InputSampleRate() int  { return c.inHz }
func (c *ES8311) OutputSampleRate() int { return c.outHz }

func (c *ES8311) OutputVolume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetOutputVolume sets and persists the speaker volume (clamped to 0..100).
func (c *ES8311) SetOutputVolume(v int) error {
	v = mathx.Clamp(v, 0, 100)
	if err := c.applyVolume(v); err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.SetInt(volumeKey, v); err != nil {
			c.log.Warn("persist volume failed", "err", err)
		}
	}
	c.log.Info("output volume", "volume", v)
	return nil
}

func (c *ES8311) applyVolume(v int) error {
	v = mathx.Clamp(v, 0, 100)
	reg := byte(v * es8311Vol0dB / 100)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(es8311RegDACVol, reg); err != nil {
		return err
	}
	c.volume = v
	return nil
}

func (c *ES8311) EnableInput(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pwr, vol := byte(0x6A), byte(0)
	if on {
		pwr, vol = 0x02, es8311Vol0dB
	}
	if err := c.write(es8311RegADCPower, pwr); err != nil {
		return err
	}
	if err := c.write(es8311RegADCVol, vol); err != nil {
		return err
	}
	c.input = on
	return nil
}

func (c *ES8311) EnableOutput(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pwr := byte(0x02)
	if on {
		pwr = 0x00
	}
	if err := c.write(es8311RegDACPower, pwr); err != nil {
		return err
	}
	c.output = on
	return nil
}

// InputEnabled and OutputEnabled report the last successful Enable call.
func (c *ES8311) InputEnabled() bool  { c.mu.Lock(); defer c.mu.Unlock(); return c.input }
func (c *ES8311) OutputEnabled() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.output }

func (c *ES8311) write(reg, v byte) error {
	if err := c.bus.Tx(c.addr, []byte{reg, v}, nil); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "es8311_write", err)
	}
	return nil
}

func (c *ES8311) read(reg byte) (byte, error) {
	var b [1]byte
	if err := c.bus.Tx(c.addr, []byte{reg}, b[:]); err != nil {
		return 0, errcode.Wrap(errcode.MapDriverErr(err), "es8311_read", err)
	}
	return b[0], nil
}

// Close powers the DAC and ADC down.
func (c *ES8311) Close() error {
	if err := c.EnableOutput(false); err != nil {
		return err
	}
	return c.EnableInput(false)
}
