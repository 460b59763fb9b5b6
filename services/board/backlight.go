package board

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
	"voiceboard-go/services/settings"
	"voiceboard-go/x/mathx"
	"voiceboard-go/x/ramp"
)

const (
	DefaultBrightness    = 75
	minRestoreBrightness = 10
	brightnessKey        = "brightness"
)

// Backlight controls panel brightness in percent.
type Backlight interface {
	Brightness() int
	SetBrightness(level int, persist bool) error
	RestoreBrightness() error
}

// PWMBacklight drives the panel backlight from its own LEDC channel and fades
// between levels.
type PWMBacklight struct {
	hw     ledc.Controller
	a      ledc.Assignment
	invert bool
	fade   time.Duration
	store  *settings.Settings // "display"
	log    *slog.Logger
	top    uint32

	op         sync.Mutex // serialises brightness changes
	mu         sync.Mutex
	level      uint16 // latched logical duty
	brightness int
	rampCancel context.CancelFunc
	rampDone   chan struct{}
	closed     bool
}

var _ Backlight = (*PWMBacklight)(nil)

// NewPWMBacklight claims the timer and channel of a with the output off.
// fade is the duration of a full-scale transition; zero switches instantly.
func NewPWMBacklight(hw ledc.Controller, a ledc.Assignment, invert bool, fade time.Duration,
	store *settings.Settings, log *slog.Logger) (*PWMBacklight, error) {
	if log == nil {
		log = slog.Default()
	}
	tc := a.TimerConfig()
	if tc.MaxDuty() > 0xFFFF {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "backlight", Msg: "resolution above 16 bits"}
	}
	if err := hw.ConfigureTimer(tc); err != nil {
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "backlight_timer", err)
	}
	if err := hw.ConfigureChannel(ledc.ChannelConfig{
		Pin: a.Pin, Channel: a.Channel, Timer: a.Timer, Invert: invert,
	}); err != nil {
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "backlight_channel", err)
	}
	return &PWMBacklight{
		hw:     hw,
		a:      a,
		invert: invert,
		fade:   fade,
		store:  store,
		log:    log.With("component", "backlight", "pin", a.Pin),
		top:    tc.MaxDuty(),
	}, nil
}

func (b *PWMBacklight) Brightness() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.brightness
}

// SetBrightness moves to level (clamped to 0..100). With persist the level is
// also what RestoreBrightness returns to after a reboot.
func (b *PWMBacklight) SetBrightness(level int, persist bool) error {
	b.op.Lock()
	defer b.op.Unlock()
	level = mathx.Clamp(level, 0, 100)
	if persist && b.store != nil {
		if err := b.store.SetInt(brightnessKey, level); err != nil {
			b.log.Warn("persist brightness failed", "err", err)
		}
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errcode.NotInitialized
	}
	b.brightness = level
	b.mu.Unlock()

	b.stopRamp()
	target := b.toDuty(level)
	b.mu.Lock()
	start := b.level
	b.mu.Unlock()

	if b.fade <= 0 || start == target {
		return b.latch(target)
	}

	fade := ramp.Plan(start, target, uint16(b.top), b.fade, 5*time.Millisecond, 255)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b.mu.Lock()
	b.rampCancel, b.rampDone = cancel, done
	b.mu.Unlock()

	go func() {
		defer close(done)
		fade.Run(ctx, func(lvl uint16) {
			if err := b.latch(lvl); err != nil {
				b.log.Warn("backlight duty write failed", "err", err)
			}
		})
	}()
	return nil
}

// RestoreBrightness applies the persisted level, falling back to the default
// and never restoring a level so low the screen looks dead.
func (b *PWMBacklight) RestoreBrightness() error {
	level := DefaultBrightness
	if b.store != nil {
		level = b.store.Int(brightnessKey, DefaultBrightness)
	}
	if level <= 0 {
		b.log.Warn("saved brightness too low, restoring minimum", "saved", level)
		level = minRestoreBrightness
	}
	return b.SetBrightness(level, false)
}

// Wait blocks until a running fade has finished.
func (b *PWMBacklight) Wait() {
	b.mu.Lock()
	done := b.rampDone
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (b *PWMBacklight) toDuty(level int) uint16 {
	return uint16(uint32(level) * b.top / 100)
}

func (b *PWMBacklight) latch(lvl uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.hw.SetDuty(b.a.Channel, uint32(lvl)); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "backlight_set_duty", err)
	}
	if err := b.hw.UpdateDuty(b.a.Channel); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "backlight_update_duty", err)
	}
	b.level = lvl
	return nil
}

func (b *PWMBacklight) stopRamp() {
	b.mu.Lock()
	cancel, done := b.rampCancel, b.rampDone
	b.rampCancel, b.rampDone = nil, nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Close stops any fade and turns the output off.
func (b *PWMBacklight) Close() error {
	b.op.Lock()
	defer b.op.Unlock()
	b.stopRamp()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.hw.Stop(b.a.Channel, b.invert)
}
