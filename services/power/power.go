// Package power runs the inactivity state machine that puts a board to sleep
// and, optionally, shuts it down.
//
// The coordinator knows nothing about the peripherals it affects. Boards
// register callbacks per transition; the coordinator guarantees they run in
// registration order, once per transition, with the transition check and
// the fan-out forming one step.
package power

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"voiceboard-go/bus"
	"voiceboard-go/errcode"
	"voiceboard-go/types"
	"voiceboard-go/x/timex"
)

// TopicState carries the retained types.PowerEvent of the last transition.
var TopicState = bus.T("power", "state")

type Config struct {
	Tick          time.Duration // period of Run's ticker; default 1s
	SleepAfter    time.Duration // idle time before sleeping; 0 disables sleep
	ShutdownAfter time.Duration // idle time before shutdown; 0 disables shutdown
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	return c
}

// Validate rejects a shutdown threshold that would fire before sleep.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.SleepAfter < 0 || c.ShutdownAfter < 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "power_config", Msg: "negative threshold"}
	}
	if c.SleepAfter > 0 && c.ShutdownAfter > 0 && c.ShutdownAfter <= c.SleepAfter {
		return &errcode.E{C: errcode.InvalidParams, Op: "power_config", Msg: "shutdown_after must exceed sleep_after"}
	}
	return nil
}

// ticks converts a threshold to a tick count; 0 means disabled.
func (c Config) ticks(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := int(d / c.Tick)
	if n < 1 {
		n = 1
	}
	return n
}

type Coordinator struct {
	cfg        Config
	sleepAt    int
	shutdownAt int
	log        *slog.Logger
	conn       *bus.Connection

	// step serialises transition checks with their callback fan-out.
	step     sync.Mutex
	enabled  bool
	ticks    int
	canSleep func() bool
	enter    []func()
	exit     []func()
	shutdown []func()

	state atomic.Uint32
}

type Option func(*Coordinator)

// WithBus publishes each transition on TopicState.
func WithBus(conn *bus.Connection) Option { return func(c *Coordinator) { c.conn = conn } }

// WithSleepGuard consults fn before sleeping. When it returns false the idle
// counter restarts instead.
func WithSleepGuard(fn func() bool) Option { return func(c *Coordinator) { c.canSleep = fn } }

func New(cfg Config, log *slog.Logger, opts ...Option) *Coordinator {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		cfg:        cfg,
		sleepAt:    cfg.ticks(cfg.SleepAfter),
		shutdownAt: cfg.ticks(cfg.ShutdownAfter),
		log:        log.With("component", "power"),
		enabled:    true,
	}
	for _, o := range opts {
		o(c)
	}
	c.state.Store(uint32(types.PowerActive))
	return c
}

// Callbacks must not call back into the coordinator.
func (c *Coordinator) OnEnterSleep(fn func()) { c.add(&c.enter, fn) }
func (c *Coordinator) OnExitSleep(fn func())  { c.add(&c.exit, fn) }
func (c *Coordinator) OnShutdown(fn func())   { c.add(&c.shutdown, fn) }

func (c *Coordinator) add(list *[]func(), fn func()) {
	if fn == nil {
		return
	}
	c.step.Lock()
	*list = append(*list, fn)
	c.step.Unlock()
}

// State is safe to read from any goroutine, including from callbacks.
func (c *Coordinator) State() types.PowerState {
	return types.PowerState(c.state.Load())
}

func (c *Coordinator) Enabled() bool {
	c.step.Lock()
	defer c.step.Unlock()
	return c.enabled
}

// Tick advances the idle counter by one period and fires whatever
// transition the new count reaches.
func (c *Coordinator) Tick() {
	c.step.Lock()
	defer c.step.Unlock()
	if !c.enabled || c.State() == types.PowerShuttingDown {
		return
	}
	c.ticks++

	if c.shutdownAt > 0 && c.ticks >= c.shutdownAt {
		c.transition(types.PowerShuttingDown, c.shutdown)
		return
	}
	if c.sleepAt > 0 && c.ticks >= c.sleepAt && c.State() == types.PowerActive {
		if c.canSleep != nil && !c.canSleep() {
			c.log.Debug("sleep deferred")
			c.ticks = 0
			return
		}
		c.transition(types.PowerSleeping, c.enter)
	}
}

// WakeUp records activity: the idle counter restarts and a sleeping board
// wakes. It does not leave ShuttingDown; see Resume.
func (c *Coordinator) WakeUp() {
	c.step.Lock()
	defer c.step.Unlock()
	c.ticks = 0
	if c.State() == types.PowerSleeping {
		c.transition(types.PowerActive, c.exit)
	}
}

// Resume brings a coordinator back from ShuttingDown when the owning
// application decides to carry on.
func (c *Coordinator) Resume() {
	c.step.Lock()
	defer c.step.Unlock()
	if c.State() != types.PowerShuttingDown {
		return
	}
	c.ticks = 0
	c.transition(types.PowerActive, c.exit)
}

// SetEnabled(false) suspends timer-driven transitions without touching the
// counter; SetEnabled(true) restarts counting from zero.
func (c *Coordinator) SetEnabled(on bool) {
	c.step.Lock()
	defer c.step.Unlock()
	if on && !c.enabled {
		c.ticks = 0
	}
	c.enabled = on
	c.log.Debug("power save", "enabled", on)
}

// caller holds step
func (c *Coordinator) transition(to types.PowerState, fns []func()) {
	from := c.State()
	c.state.Store(uint32(to))
	c.log.Info("power transition", "from", from.String(), "to", to.String())
	for _, fn := range fns {
		fn()
	}
	if c.conn != nil {
		ev := types.PowerEvent{From: from, To: to, TSms: timex.NowMs()}
		c.conn.Publish(c.conn.NewMessage(TopicState, ev, true))
	}
}

// Run ticks every Config.Tick until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	t := time.NewTicker(c.cfg.Tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Tick()
		}
	}
}
