package errcode

import "errors"

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	Timeout       Code = "timeout"

	// Hardware resources.
	UnknownPin    Code = "unknown_pin"
	UnknownBus    Code = "unknown_bus"
	ResourceInUse Code = "resource_in_use"
	Conflict      Code = "conflict"
	HWError       Code = "hw_error"
	ProbeFailed   Code = "probe_failed"

	// Driver usage.
	NotInitialized Code = "not_initialized"
	Absent         Code = "absent"

	// Tools.
	DuplicateTool Code = "duplicate_tool"
	UnknownTool   Code = "unknown_tool"
	InvalidArgs   Code = "invalid_args"

	// Transports.
	SwitchNotAllowed Code = "switch_not_allowed"
	NotConnected     Code = "not_connected"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.X) match a wrapped *E carrying X.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap returns an *E for op with code c and cause err.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error. The outermost *E
// wins over codes further down the chain.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code.
// Errors that already carry a Code keep it; anything else is a hardware error.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	if c := Of(err); c != Error {
		return c
	}
	return HWError
}
