// Package tools publishes peripheral operations as named, schema-validated
// commands for a remote control runtime.
//
// Arguments are validated against the declared properties before a handler
// runs, so handlers may assume types and ranges hold.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voiceboard-go/errcode"
)

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 3 * time.Second

type Handler func(ctx context.Context, args Args) (Value, error)

type Descriptor struct {
	Name        string // dotted, e.g. "self.servo.set_angle"
	Description string
	Properties  []Property
	Handler     Handler
}

// Registrar accepts tool registrations. Boards depend on this rather than on
// a concrete registry.
type Registrar interface {
	AddTool(d Descriptor) error
}

// Result is the outcome of one invocation.
type Result struct {
	ID    string `json:"id"`
	Tool  string `json:"tool"`
	Value Value  `json:"value"`
}

type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Descriptor
	order   []string
	strict  bool
	timeout time.Duration
	log     *slog.Logger
}

var _ Registrar = (*Registry)(nil)

type Option func(*Registry)

// WithStrictBounds rejects out-of-range integers instead of clamping them.
func WithStrictBounds() Option { return func(r *Registry) { r.strict = true } }

func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		tools:   map[string]*Descriptor{},
		timeout: DefaultTimeout,
		log:     log.With("component", "tools"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// AddTool registers d. A duplicate name is rejected and the existing
// registration stays in place.
func (r *Registry) AddTool(d Descriptor) error {
	if d.Name == "" || d.Handler == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "add_tool", Msg: "name and handler are required"}
	}
	seen := map[string]bool{}
	for _, p := range d.Properties {
		if p.Name == "" || seen[p.Name] {
			return &errcode.E{C: errcode.InvalidParams, Op: "add_tool", Msg: d.Name + ": bad property " + p.Name}
		}
		if p.HasRange && p.Min > p.Max {
			return &errcode.E{C: errcode.InvalidParams, Op: "add_tool", Msg: d.Name + ": empty range on " + p.Name}
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[d.Name]; dup {
		r.log.Warn("duplicate tool rejected", "tool", d.Name)
		return &errcode.E{C: errcode.DuplicateTool, Op: "add_tool", Msg: d.Name}
	}
	cp := d
	cp.Properties = append([]Property(nil), d.Properties...)
	r.tools[d.Name] = &cp
	r.order = append(r.order, d.Name)
	r.log.Debug("tool registered", "tool", d.Name)
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, *r.tools[n])
	}
	return out
}

// Validate converts raw arguments into Args according to d's properties.
func (r *Registry) Validate(d Descriptor, raw map[string]any) (Args, error) {
	args := Args{}
	for _, p := range d.Properties {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Default == nil {
				return nil, &errcode.E{C: errcode.InvalidArgs, Op: d.Name, Msg: "missing argument " + p.Name}
			}
			v = p.Default
		}
		cv, ok := p.coerce(v)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidArgs, Op: d.Name, Msg: p.Name + " must be " + p.Type.String()}
		}
		if p.Type == Integer {
			n, err := p.bound(cv.(int), r.strict)
			if err != nil {
				return nil, err
			}
			cv = n
		}
		args[p.Name] = cv
	}
	return args, nil
}

// Call validates raw and runs the named tool's handler with a deadline.
func (r *Registry) Call(ctx context.Context, name string, raw map[string]any) (Result, error) {
	r.mu.RLock()
	d, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, &errcode.E{C: errcode.UnknownTool, Op: "call", Msg: name}
	}
	res := Result{ID: uuid.NewString(), Tool: name}
	log := r.log.With("tool", name, "call", res.ID)

	args, err := r.Validate(*d, raw)
	if err != nil {
		log.Warn("invalid arguments", "err", err)
		return res, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		v   Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := d.Handler(ctx, args)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			log.Warn("tool failed", "err", o.err)
			return res, o.err
		}
		res.Value = o.v
		log.Debug("tool done", "value", o.v.String())
		return res, nil
	case <-ctx.Done():
		log.Warn("tool timed out", "timeout", r.timeout)
		return res, errcode.Wrap(errcode.Timeout, name, ctx.Err())
	}
}

// CallJSON is Call with arguments given as a JSON object.
func (r *Registry) CallJSON(ctx context.Context, name string, raw []byte) (Result, error) {
	var m map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return Result{}, errcode.Wrap(errcode.InvalidArgs, name, err)
		}
	}
	return r.Call(ctx, name, m)
}

// Schema describes d as a JSON-schema input object.
func (d Descriptor) Schema() map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, p := range d.Properties {
		props[p.Name] = p.schema()
		if p.Default == nil {
			required = append(required, p.Name)
		}
	}
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// ListJSON renders the registry as a tools list document.
func (r *Registry) ListJSON() ([]byte, error) {
	type entry struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"inputSchema"`
	}
	list := r.List()
	out := make([]entry, 0, len(list))
	for _, d := range list {
		out = append(out, entry{Name: d.Name, Description: d.Description, InputSchema: d.Schema()})
	}
	return json.Marshal(map[string]any{"tools": out})
}
