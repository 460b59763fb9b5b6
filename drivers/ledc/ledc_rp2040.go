//go:build rp2040

package ledc

import (
	"machine"
	"sync"

	"voiceboard-go/errcode"
	"voiceboard-go/x/timex"
)

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

// Select controller handle for a given slice number (0..7).
func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

type rpChannel struct {
	cfg    ChannelConfig
	staged uint32
}

// RP2040 maps timers onto PWM slices. A timer id is the slice number, so a
// channel's pin must belong to its timer's slice.
type RP2040 struct {
	mu       sync.Mutex
	timers   map[TimerID]TimerConfig
	channels map[ChannelID]*rpChannel
}

var _ Controller = (*RP2040)(nil)

func NewRP2040() *RP2040 {
	return &RP2040{
		timers:   map[TimerID]TimerConfig{},
		channels: map[ChannelID]*rpChannel{},
	}
}

func sliceOf(pin int) uint8 { return uint8((pin / 2) % 8) }

func (r *RP2040) ConfigureTimer(cfg TimerConfig) error {
	if err := ValidateTimer(cfg); err != nil {
		return errcode.Wrap(errcode.InvalidParams, "configure_timer", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.timers[cfg.Timer]; ok && prev != cfg {
		for _, ch := range r.channels {
			if ch.cfg.Timer == cfg.Timer {
				return errcode.Conflict
			}
		}
	}
	ctrl := pwmGroupBySlice(uint8(cfg.Timer) % 8)
	if err := ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(cfg.FreqHz)}); err != nil {
		return errcode.Wrap(errcode.HWError, "configure_timer", err)
	}
	r.timers[cfg.Timer] = cfg
	return nil
}

func (r *RP2040) ConfigureChannel(cfg ChannelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[cfg.Timer]
	if !ok {
		return &errcode.E{C: errcode.InvalidParams, Op: "configure_channel", Msg: "timer not configured"}
	}
	if sliceOf(cfg.Pin) != uint8(cfg.Timer)%8 {
		return &errcode.E{C: errcode.InvalidParams, Op: "configure_channel", Msg: "pin not on timer slice"}
	}
	if ch, ok := r.channels[cfg.Channel]; ok && ch.cfg.Pin != cfg.Pin {
		return errcode.ResourceInUse
	}
	machine.Pin(cfg.Pin).Configure(machine.PinConfig{Mode: machine.PinPWM})
	ch := &rpChannel{cfg: cfg, staged: min(cfg.Duty, t.MaxDuty())}
	r.channels[cfg.Channel] = ch
	r.latch(ch, t)
	return nil
}

// caller holds lock
func (r *RP2040) latch(ch *rpChannel, t TimerConfig) {
	ctrl := pwmGroupBySlice(uint8(t.Timer) % 8)
	duty := ch.staged
	if ch.cfg.Invert {
		duty = t.MaxDuty() - duty
	}
	// Scale from [0..MaxDuty] to the slice's hardware top.
	hw := uint32((uint64(duty) * uint64(ctrl.Top())) / uint64(t.MaxDuty()))
	ctrl.Set(uint8(ch.cfg.Pin%2), hw)
}

func (r *RP2040) SetDuty(id ChannelID, duty uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return errcode.NotInitialized
	}
	if duty > r.timers[ch.cfg.Timer].MaxDuty() {
		return &errcode.E{C: errcode.InvalidParams, Op: "set_duty", Msg: "duty out of range"}
	}
	ch.staged = duty
	return nil
}

func (r *RP2040) UpdateDuty(id ChannelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return errcode.NotInitialized
	}
	r.latch(ch, r.timers[ch.cfg.Timer])
	return nil
}

func (r *RP2040) Stop(id ChannelID, idle bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return errcode.NotInitialized
	}
	ctrl := pwmGroupBySlice(uint8(ch.cfg.Timer) % 8)
	if idle {
		ctrl.Set(uint8(ch.cfg.Pin%2), ctrl.Top())
	} else {
		ctrl.Set(uint8(ch.cfg.Pin%2), 0)
	}
	delete(r.channels, id)
	return nil
}
