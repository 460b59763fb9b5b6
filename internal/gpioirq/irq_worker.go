// Package gpioirq moves GPIO interrupts out of interrupt context. Handlers
// only sample the pin and enqueue; debounce and edge detection run on the
// worker goroutine.
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin is an input pin that can call back on edges.
type IRQPin interface {
	Get() bool
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Event is delivered to the consumer for every debounced edge.
type Event struct {
	Name   string
	Active bool // logical level after inversion
	Edge   Edge
	TS     time.Time
}

type Worker struct {
	// Written by ISR; MUST NOT block the ISR:
	isrQ    chan isrEvent
	outQ    chan Event
	stopped chan struct{}

	mu     sync.RWMutex
	inputs map[string]*watch

	drops atomic.Uint32 // ISR drop counter
	now   func() time.Time
}

type isrEvent struct {
	name  string
	level bool // captured in ISR
}

type watch struct {
	pin       IRQPin
	edge      Edge
	debounce  time.Duration
	invert    bool
	lastLevel bool
	lastEvent time.Time
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	if outBuf <= 0 {
		outBuf = 64
	}
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan Event, outBuf),
		stopped: make(chan struct{}),
		inputs:  map[string]*watch{},
		now:     time.Now,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

func (w *Worker) Events() <-chan Event { return w.outQ }

// RegisterInput watches pin under name. The returned func unregisters it.
func (w *Worker) RegisterInput(name string, pin IRQPin, edge Edge, debounce time.Duration, invert bool) (func(), error) {
	if edge == EdgeNone {
		return func() {}, nil
	}

	// Initial logical snapshot so later edges compare like-for-like.
	init := pin.Get()
	if invert {
		init = !init
	}
	wh := &watch{
		pin:       pin,
		edge:      edge,
		debounce:  debounce,
		invert:    invert,
		lastLevel: init,
	}

	handler := func() {
		l := pin.Get()
		select {
		case w.isrQ <- isrEvent{name: name, level: l}:
		default:
			w.drops.Add(1)
		}
	}
	if err := pin.SetIRQ(edge, handler); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.inputs[name] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.inputs[name]; ok {
			_ = cur.pin.ClearIRQ()
			delete(w.inputs, name)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.inputs[ev.name]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	raw := ev.level
	if wh.invert {
		raw = !raw
	}
	now := w.now()

	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}

	var e Edge
	switch wh.edge {
	case EdgeBoth:
		switch {
		case !wh.lastLevel && raw:
			e = EdgeRising
		case wh.lastLevel && !raw:
			e = EdgeFalling
		}
	case EdgeRising, EdgeFalling:
		// Only the configured edge fires the handler.
		e = wh.edge
	}

	if e != EdgeNone {
		select {
		case w.outQ <- Event{Name: ev.name, Active: raw, Edge: e, TS: now}:
		default:
			// consumer too slow
		}
	}

	wh.lastLevel = raw
	wh.lastEvent = now
}

func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }
