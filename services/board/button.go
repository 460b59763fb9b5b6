package board

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voiceboard-go/bus"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/gpioirq"
	"voiceboard-go/types"
	"voiceboard-go/x/timex"
)

// TopicButton prefixes button gestures: board/button/<name>.
var TopicButton = bus.T("board", "button")

// Timing tunes gesture recognition.
type Timing struct {
	Debounce  time.Duration
	ClickGap  time.Duration // max release-to-press gap inside a multi-click
	LongPress time.Duration
}

var DefaultTiming = Timing{
	Debounce:  20 * time.Millisecond,
	ClickGap:  250 * time.Millisecond,
	LongPress: time.Second,
}

// recognizer turns press/release edges of one button into gestures.
type recognizer struct {
	name   string
	timing Timing
	emit   func(types.ButtonEvent)

	mu        sync.Mutex
	pressed   bool
	clicks    int
	longFired bool
	gen       uint64 // bumped on every edge; stale timers compare against it
	longT     *time.Timer
	gapT      *time.Timer
}

func (r *recognizer) event(g types.Gesture, count int) types.ButtonEvent {
	return types.ButtonEvent{Button: r.name, Gesture: g, Count: count, TSms: timex.NowMs()}
}

func (r *recognizer) feed(pressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pressed == r.pressed {
		return
	}
	r.pressed = pressed
	r.gen++
	gen := r.gen
	stop(r.gapT)
	stop(r.longT)

	if pressed {
		r.longFired = false
		r.emit(r.event(types.GesturePressDown, 0))
		r.longT = time.AfterFunc(r.timing.LongPress, func() { r.long(gen) })
		return
	}

	r.emit(r.event(types.GesturePressUp, 0))
	if r.longFired {
		r.clicks = 0
		return
	}
	r.clicks++
	r.gapT = time.AfterFunc(r.timing.ClickGap, func() { r.flush(gen) })
}

func (r *recognizer) long(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen || !r.pressed {
		return
	}
	r.longFired = true
	r.clicks = 0
	r.emit(r.event(types.GestureLongPress, 0))
}

func (r *recognizer) flush(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	n := r.clicks
	r.clicks = 0
	switch {
	case n == 1:
		r.emit(r.event(types.GestureClick, 1))
	case n == 2:
		r.emit(r.event(types.GestureDoubleClick, 2))
	case n >= 3:
		r.emit(r.event(types.GestureMultiClick, n))
	}
}

func (r *recognizer) close() {
	r.mu.Lock()
	r.gen++
	stop(r.gapT)
	stop(r.longT)
	r.mu.Unlock()
}

func stop(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Buttons watches the board's buttons and publishes their gestures on the bus.
// Interrupt handlers only enqueue; recognition runs on worker goroutines.
type Buttons struct {
	w      *gpioirq.Worker
	conn   *bus.Connection
	timing Timing
	log    *slog.Logger

	mu     sync.Mutex
	recs   map[string]*recognizer
	unregs []func()
}

func NewButtons(conn *bus.Connection, timing Timing, log *slog.Logger) *Buttons {
	if log == nil {
		log = slog.Default()
	}
	return &Buttons{
		w:      gpioirq.New(32, 32),
		conn:   conn,
		timing: timing,
		log:    log.With("component", "buttons"),
		recs:   map[string]*recognizer{},
	}
}

// Add watches pin as button name. With a nil pin the button can still be
// driven through Feed.
func (b *Buttons) Add(name string, pin gpioirq.IRQPin, activeLow bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.recs[name]; dup {
		return &errcode.E{C: errcode.ResourceInUse, Op: "button_add", Msg: name}
	}
	topic := TopicButton.Append(name)
	r := &recognizer{
		name:   name,
		timing: b.timing,
		emit: func(ev types.ButtonEvent) {
			b.conn.Publish(b.conn.NewMessage(topic, ev, false))
		},
	}
	if pin != nil {
		unreg, err := b.w.RegisterInput(name, pin, gpioirq.EdgeBoth, b.timing.Debounce, activeLow)
		if err != nil {
			return errcode.Wrap(errcode.HWError, "button_irq", err)
		}
		b.unregs = append(b.unregs, unreg)
	}
	b.recs[name] = r
	b.log.Debug("button added", "name", name, "active_low", activeLow)
	return nil
}

// Feed injects a logical press (true) or release (false).
func (b *Buttons) Feed(name string, pressed bool) bool {
	b.mu.Lock()
	r := b.recs[name]
	b.mu.Unlock()
	if r == nil {
		return false
	}
	r.feed(pressed)
	return true
}

// Names lists the registered buttons.
func (b *Buttons) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.recs))
	for n := range b.recs {
		out = append(out, n)
	}
	return out
}

// Start runs the edge worker until ctx is done.
func (b *Buttons) Start(ctx context.Context) {
	b.w.Start(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.w.Events():
				b.Feed(ev.Name, ev.Active)
			}
		}
	}()
}

func (b *Buttons) Close() error {
	b.mu.Lock()
	unregs := b.unregs
	b.unregs = nil
	recs := b.recs
	b.mu.Unlock()
	for _, u := range unregs {
		u()
	}
	for _, r := range recs {
		r.close()
	}
	if d := b.w.ISRDrops(); d > 0 {
		b.log.Warn("button interrupts dropped", "count", d)
	}
	return nil
}
