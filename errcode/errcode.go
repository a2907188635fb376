package errcode

import "errors"

// Code is a stable error identifier shared by every layer of the sensor stack.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"
	ReadOnly      Code = "read_only"

	// Discovery
	NoDependency      Code = "no_dependency"
	ResolutionFailed  Code = "resolution_failed"
	CompanionNotFound Code = "companion_not_found"

	// Firmware blobs
	NoSuchBlob     Code = "no_such_blob"
	BufferTooSmall Code = "buffer_too_small"
	InvalidBlob    Code = "invalid_blob"

	// Hardware
	IOError                   Code = "io_error"
	ResourceAcquisitionFailed Code = "resource_acquisition_failed"
	PowerFailed               Code = "power_failed"
	PMActivationFailed        Code = "pm_activation_failed"
	IdentityMismatch          Code = "identity_mismatch"
	StreamStartFailed         Code = "stream_start_failed"

	Error Code = "error" // generic fallback
)

// E keeps an operation name and a cause next to a Code.
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
	if e.Err != nil && e.Err != error(e.C) {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapped E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap returns nil for a nil err, otherwise an *E carrying c and op.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// New builds an *E without a cause.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts the outermost Code from an error, defaulting to Error.
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
