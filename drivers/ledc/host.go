package ledc

import (
	"sync"

	"voiceboard-go/errcode"
)

// Op names a controller call for fault injection.
type Op uint8

const (
	OpConfigureTimer Op = iota
	OpConfigureChannel
	OpSetDuty
	OpUpdateDuty
	OpStop
)

type hostTimer struct {
	cfg TimerConfig
}

type hostChannel struct {
	cfg     ChannelConfig
	staged  uint32
	latched uint32
	running bool
	updates int
}

// Host is an in-memory Controller for host builds and tests. It enforces the
// same ownership rules as the hardware driver: a channel bound to one pin
// cannot be rebound to another, and a configured timer cannot be silently
// reconfigured with a different frequency or resolution.
type Host struct {
	mu       sync.Mutex
	timers   map[TimerID]*hostTimer
	channels map[ChannelID]*hostChannel
	faults   map[Op]error
}

var _ Controller = (*Host)(nil)

func NewHost() *Host {
	return &Host{
		timers:   map[TimerID]*hostTimer{},
		channels: map[ChannelID]*hostChannel{},
		faults:   map[Op]error{},
	}
}

// FailNext makes the next call of op fail with err.
func (h *Host) FailNext(op Op, err error) {
	h.mu.Lock()
	h.faults[op] = err
	h.mu.Unlock()
}

// caller holds lock
func (h *Host) fault(op Op) error {
	if err, ok := h.faults[op]; ok {
		delete(h.faults, op)
		return err
	}
	return nil
}

func (h *Host) ConfigureTimer(cfg TimerConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fault(OpConfigureTimer); err != nil {
		return err
	}
	if err := ValidateTimer(cfg); err != nil {
		return errcode.Wrap(errcode.InvalidParams, "configure_timer", err)
	}
	if t, ok := h.timers[cfg.Timer]; ok && t.cfg != cfg {
		if h.timerInUse(cfg.Timer) {
			return errcode.Conflict
		}
	}
	h.timers[cfg.Timer] = &hostTimer{cfg: cfg}
	return nil
}

// caller holds lock
func (h *Host) timerInUse(id TimerID) bool {
	for _, ch := range h.channels {
		if ch.cfg.Timer == id && ch.running {
			return true
		}
	}
	return false
}

func (h *Host) ConfigureChannel(cfg ChannelConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fault(OpConfigureChannel); err != nil {
		return err
	}
	t, ok := h.timers[cfg.Timer]
	if !ok {
		return &errcode.E{C: errcode.InvalidParams, Op: "configure_channel", Msg: "timer not configured"}
	}
	if ch, ok := h.channels[cfg.Channel]; ok && ch.running && ch.cfg.Pin != cfg.Pin {
		return errcode.ResourceInUse
	}
	for id, ch := range h.channels {
		if id != cfg.Channel && ch.running && ch.cfg.Pin == cfg.Pin {
			return errcode.ResourceInUse
		}
	}
	if cfg.Duty > t.cfg.MaxDuty() {
		return &errcode.E{C: errcode.InvalidParams, Op: "configure_channel", Msg: "duty out of range"}
	}
	h.channels[cfg.Channel] = &hostChannel{cfg: cfg, staged: cfg.Duty, latched: cfg.Duty, running: true}
	return nil
}

func (h *Host) SetDuty(id ChannelID, duty uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fault(OpSetDuty); err != nil {
		return err
	}
	ch, ok := h.channels[id]
	if !ok {
		return errcode.NotInitialized
	}
	if max := h.timers[ch.cfg.Timer].cfg.MaxDuty(); duty > max {
		return &errcode.E{C: errcode.InvalidParams, Op: "set_duty", Msg: "duty out of range"}
	}
	ch.staged = duty
	return nil
}

func (h *Host) UpdateDuty(id ChannelID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fault(OpUpdateDuty); err != nil {
		return err
	}
	ch, ok := h.channels[id]
	if !ok {
		return errcode.NotInitialized
	}
	ch.latched = ch.staged
	ch.running = true
	ch.updates++
	return nil
}

func (h *Host) Stop(id ChannelID, _ bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fault(OpStop); err != nil {
		return err
	}
	ch, ok := h.channels[id]
	if !ok {
		return errcode.NotInitialized
	}
	ch.running = false
	ch.latched = 0
	return nil
}

// Latched returns the duty currently driven on a channel.
func (h *Host) Latched(id ChannelID) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[id]
	if !ok {
		return 0, false
	}
	return ch.latched, ch.running
}

// Updates returns how many UpdateDuty calls latched on a channel.
func (h *Host) Updates(id ChannelID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[id]; ok {
		return ch.updates
	}
	return 0
}
