package board

import (
	"log/slog"
	"sync"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
	"voiceboard-go/types"
	"voiceboard-go/x/mathx"
)

// LED is a status indicator that follows the device state.
type LED interface {
	OnStateChanged(s types.DeviceState)
	Brightness() int
}

// stateBrightness is the LED level, in percent, shown for each device state.
func stateBrightness(s types.DeviceState) int {
	switch s {
	case types.DeviceStateListening:
		return 100
	case types.DeviceStateSpeaking:
		return 60
	case types.DeviceStateStarting, types.DeviceStateWifiConfiguring, types.DeviceStateConnecting,
		types.DeviceStateActivating, types.DeviceStateUpgrading:
		return 30
	case types.DeviceStateFatalError:
		return 100
	default:
		return 0
	}
}

// PWMLed is a single monochrome LED on an LEDC channel.
type PWMLed struct {
	hw  ledc.Controller
	a   ledc.Assignment
	top uint32
	log *slog.Logger

	mu    sync.Mutex
	level int
}

var _ LED = (*PWMLed)(nil)

func NewPWMLed(hw ledc.Controller, a ledc.Assignment, log *slog.Logger) (*PWMLed, error) {
	if log == nil {
		log = slog.Default()
	}
	tc := a.TimerConfig()
	if err := hw.ConfigureTimer(tc); err != nil {
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "led_timer", err)
	}
	if err := hw.ConfigureChannel(ledc.ChannelConfig{Pin: a.Pin, Channel: a.Channel, Timer: a.Timer}); err != nil {
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "led_channel", err)
	}
	return &PWMLed{hw: hw, a: a, top: tc.MaxDuty(), log: log.With("component", "led", "pin", a.Pin)}, nil
}

func (l *PWMLed) OnStateChanged(s types.DeviceState) {
	if err := l.SetBrightness(stateBrightness(s)); err != nil {
		l.log.Warn("led update failed", "state", s, "err", err)
	}
}

// SetBrightness sets the LED level in percent.
func (l *PWMLed) SetBrightness(pct int) error {
	pct = mathx.Clamp(pct, 0, 100)
	l.mu.Lock()
	defer l.mu.Unlock()
	duty := uint32(pct) * l.top / 100
	if err := l.hw.SetDuty(l.a.Channel, duty); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "led_set_duty", err)
	}
	if err := l.hw.UpdateDuty(l.a.Channel); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "led_update_duty", err)
	}
	l.level = pct
	return nil
}

func (l *PWMLed) Brightness() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *PWMLed) Close() error { return l.hw.Stop(l.a.Channel, false) }
