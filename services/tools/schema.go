package tools

import (
	"encoding/json"
	"strconv"

	"voiceboard-go/errcode"
	"voiceboard-go/x/mathx"
)

type Type uint8

const (
	Boolean Type = iota
	Integer
	String
)

func (t Type) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	default:
		return "string"
	}
}

// Property is one named parameter of a tool.
type Property struct {
	Name     string
	Type     Type
	Min, Max int // Integer only, when HasRange
	HasRange bool
	Default  any // optional; a property with a default is not required
}

func BoolProp(name string) Property   { return Property{Name: name, Type: Boolean} }
func IntProp(name string) Property    { return Property{Name: name, Type: Integer} }
func StringProp(name string) Property { return Property{Name: name, Type: String} }

// IntRange declares an integer bounded to [min, max].
func IntRange(name string, min, max int) Property {
	return Property{Name: name, Type: Integer, Min: min, Max: max, HasRange: true}
}

func (p Property) WithDefault(v any) Property {
	p.Default = v
	return p
}

func (p Property) schema() map[string]any {
	m := map[string]any{"type": p.Type.String()}
	if p.HasRange {
		m["minimum"] = p.Min
		m["maximum"] = p.Max
	}
	if p.Default != nil {
		m["default"] = p.Default
	}
	return m
}

// coerce converts a decoded argument to the property's Go type: bool, int
// or string. JSON numbers arrive as float64 and must be integral.
func (p Property) coerce(v any) (any, bool) {
	switch p.Type {
	case Boolean:
		b, ok := v.(bool)
		return b, ok
	case String:
		s, ok := v.(string)
		return s, ok
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int64(n)) {
			return nil, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return nil, false
}

// bound applies the declared range. With strict set an out-of-range value is
// an error, otherwise it is clamped to the nearest bound.
func (p Property) bound(v int, strict bool) (int, error) {
	if !p.HasRange || mathx.Between(v, p.Min, p.Max) {
		return v, nil
	}
	if strict {
		return 0, &errcode.E{C: errcode.InvalidArgs, Op: p.Name,
			Msg: "value " + strconv.Itoa(v) + " out of range [" + strconv.Itoa(p.Min) + ", " + strconv.Itoa(p.Max) + "]"}
	}
	return mathx.Clamp(v, p.Min, p.Max), nil
}

// Args holds validated arguments keyed by property name.
type Args map[string]any

func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}
