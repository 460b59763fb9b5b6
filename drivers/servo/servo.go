// Package servo drives a hobby servo from one LEDC timer/channel pair.
package servo

import (
	"log/slog"
	"sync"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
)

// DefaultAngle is the position a servo is parked at on initialisation.
const DefaultAngle = 90

type Config struct {
	Pin          int
	Timer        ledc.TimerID
	Channel      ledc.ChannelID
	Mapping      Mapping
	InitialAngle float32
}

// ConfigFrom builds a Config from a board PWM assignment using the SG92R
// pulse range.
func ConfigFrom(a ledc.Assignment) Config {
	m := SG92R
	if a.FreqHz != 0 {
		m.FreqHz = a.FreqHz
	}
	if a.ResolutionBits != 0 {
		m.ResolutionBits = a.ResolutionBits
	}
	return Config{
		Pin:          a.Pin,
		Timer:        a.Timer,
		Channel:      a.Channel,
		Mapping:      m,
		InitialAngle: DefaultAngle,
	}
}

// Device is a servo on one PWM channel. All control methods are safe for
// concurrent use; the stage and latch of a duty value happen under one lock.
type Device struct {
	hw  ledc.Controller
	cfg Config
	log *slog.Logger

	mu          sync.Mutex
	angle       float32
	initialized bool
	closeOnce   sync.Once
}

func New(hw ledc.Controller, cfg Config, log *slog.Logger) *Device {
	if cfg.Mapping.MaxAngle == 0 {
		cfg.Mapping = SG92R
	}
	if log == nil {
		log = slog.Default()
	}
	return &Device{hw: hw, cfg: cfg, log: log.With("component", "servo", "pin", cfg.Pin)}
}

// Initialize configures the timer and channel and parks the servo at
// InitialAngle. On failure the device stays uninitialised and every later
// control call is a logged no-op. It never panics.
func (d *Device) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return nil
	}
	m := d.cfg.Mapping
	if err := d.hw.ConfigureTimer(ledc.TimerConfig{
		Timer:          d.cfg.Timer,
		ResolutionBits: m.ResolutionBits,
		FreqHz:         m.FreqHz,
	}); err != nil {
		d.log.Error("timer configuration failed", "timer", d.cfg.Timer, "err", err)
		return errcode.Wrap(errcode.MapDriverErr(err), "servo_init", err)
	}
	start := m.Clamp(d.cfg.InitialAngle)
	if err := d.hw.ConfigureChannel(ledc.ChannelConfig{
		Pin:     d.cfg.Pin,
		Channel: d.cfg.Channel,
		Timer:   d.cfg.Timer,
		Duty:    m.Duty(start),
	}); err != nil {
		d.log.Error("channel configuration failed", "channel", d.cfg.Channel, "err", err)
		return errcode.Wrap(errcode.MapDriverErr(err), "servo_init", err)
	}
	d.angle = start
	d.initialized = true
	d.log.Info("servo initialized", "angle", start)
	return nil
}

func (d *Device) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// SetAngle clamps angle to [0, MaxAngle] and drives the servo there. The
// stored angle only changes after the duty value has been latched.
func (d *Device) SetAngle(angle float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		d.log.Warn("servo not initialized", "angle", angle)
		return errcode.NotInitialized
	}
	a := d.cfg.Mapping.Clamp(angle)
	duty := d.cfg.Mapping.Duty(a)
	if err := d.hw.SetDuty(d.cfg.Channel, duty); err != nil {
		d.log.Warn("set duty failed", "duty", duty, "err", err)
		return errcode.Wrap(errcode.MapDriverErr(err), "set_duty", err)
	}
	if err := d.hw.UpdateDuty(d.cfg.Channel); err != nil {
		d.log.Warn("update duty failed", "duty", duty, "err", err)
		return errcode.Wrap(errcode.MapDriverErr(err), "update_duty", err)
	}
	d.angle = a
	return nil
}

// Angle returns the last committed angle.
func (d *Device) Angle() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.angle
}

// MaxAngle is the top of the servo's travel.
func (d *Device) MaxAngle() float32 { return d.cfg.Mapping.MaxAngle }

// Close stops the channel output once. A failure to stop is logged only.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.initialized {
			return
		}
		if err := d.hw.Stop(d.cfg.Channel, false); err != nil {
			d.log.Warn("stop failed", "err", err)
		}
		d.initialized = false
	})
	return nil
}
