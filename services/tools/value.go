package tools

import (
	"encoding/json"
	"strconv"
)

type valueKind uint8

const (
	kindText valueKind = iota
	kindInt
	kindBool
	kindJSON
)

// Value is a tool result.
type Value struct {
	kind valueKind
	s    string
	i    int
	b    bool
}

func Text(s string) Value { return Value{kind: kindText, s: s} }
func Int(i int) Value     { return Value{kind: kindInt, i: i} }
func Bool(b bool) Value   { return Value{kind: kindBool, b: b} }

// RawJSON wraps an already-encoded JSON document.
func RawJSON(s string) Value { return Value{kind: kindJSON, s: s} }

func (v Value) IsInt() bool { return v.kind == kindInt }
func (v Value) AsInt() int  { return v.i }

func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return strconv.Itoa(v.i)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindInt:
		return json.Marshal(v.i)
	case kindBool:
		return json.Marshal(v.b)
	case kindJSON:
		if !json.Valid([]byte(v.s)) {
			return json.Marshal(v.s)
		}
		return []byte(v.s), nil
	default:
		return json.Marshal(v.s)
	}
}
