// Package capset holds a board's construct-on-first-use capability slots.
//
// Each capability kind is built at most once. A build that fails is logged
// once and the slot stays empty for the lifetime of the set, so callers see a
// nil capability rather than a retry storm against broken hardware.
package capset

import (
	"io"
	"log/slog"
	"reflect"
	"sync"

	"voiceboard-go/errcode"
	"voiceboard-go/types"
	"voiceboard-go/x/timex"
)

type slot struct {
	once sync.Once
	v    any
	err  error
}

// Registry owns the capability slots of one board instance.
type Registry struct {
	log *slog.Logger

	mu     sync.Mutex
	slots  map[types.Kind]*slot
	order  []types.Kind // successful builds, in construction order
	failed []types.Kind // failed builds, in attempt order
}

func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log.With("component", "capset"), slots: map[types.Kind]*slot{}}
}

func (r *Registry) slot(kind types.Kind) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[kind]
	if !ok {
		s = &slot{}
		r.slots[kind] = s
	}
	return s
}

// Get returns the capability of kind, building it on first use. A failed or
// absent build yields the zero T (nil for interface and pointer types).
func Get[T any](r *Registry, kind types.Kind, build func() (T, error)) T {
	s := r.slot(kind)
	s.once.Do(func() {
		v, err := build()
		if err != nil {
			s.err = err
			r.log.Warn("capability unavailable", "kind", kind, "err", err)
			r.mu.Lock()
			r.failed = append(r.failed, kind)
			r.mu.Unlock()
			return
		}
		if isNil(v) {
			return
		}
		s.v = v
		r.mu.Lock()
		r.order = append(r.order, kind)
		r.mu.Unlock()
	})
	v, _ := s.v.(T)
	return v
}

// isNil catches typed nils, which a plain interface comparison misses.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Err reports the construction error of kind, if any.
func (r *Registry) Err(kind types.Kind) error {
	r.mu.Lock()
	s := r.slots[kind]
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.err
}

// Built lists the kinds constructed so far, oldest first.
func (r *Registry) Built() []types.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Kind(nil), r.order...)
}

// Close closes every built capability implementing io.Closer, newest first.
// Slots stay populated; a second Close is the capability's own concern.
func (r *Registry) Close() error {
	r.mu.Lock()
	order := append([]types.Kind(nil), r.order...)
	r.mu.Unlock()

	var first error
	for i := len(order) - 1; i >= 0; i-- {
		s := r.slot(order[i])
		c, ok := s.v.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			r.log.Warn("capability close failed", "kind", order[i], "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Status reports every capability that has been asked for: up when built,
// down with its error code when the build failed. Built kinds come first in
// construction order, then failures in attempt order. Absent kinds are
// omitted.
func (r *Registry) Status() []types.CapabilityStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := timex.NowMs()
	out := make([]types.CapabilityStatus, 0, len(r.order)+len(r.failed))
	for _, kind := range r.order {
		out = append(out, types.CapabilityStatus{Kind: kind, Link: types.LinkUp, TSms: now})
	}
	for _, kind := range r.failed {
		out = append(out, types.CapabilityStatus{
			Kind: kind, Link: types.LinkDown, TSms: now, Error: string(errcode.Of(r.slots[kind].err)),
		})
	}
	return out
}
