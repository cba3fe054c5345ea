package optimization

import (
	"errors"
	"fmt"
)

// Error is returned by solver entry points when the input cannot be solved
// at all: an empty starting point, a missing objective, a gradient of the
// wrong length or invalid options. Non-convergence is never an Error.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the solver operation that rejected the input, e.g. "BFGS.Minimize".
	Op string
	// Component is the package area, e.g. "quasinewton".
	Component string
	// Err is the underlying cause, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := e.Component
	if e.Op != "" {
		if prefix != "" {
			prefix += ": "
		}
		prefix += e.Op
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// NewErrorf creates a new optimization error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// IsOptimizationError reports whether err, or anything it wraps, is an *Error.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ValidateInput checks the arguments every solver shares and evaluates the
// gradient once when one is supplied, so dimension mismatches are reported
// before the iteration loop starts. The evaluated gradient is returned so the
// caller does not need to repeat the call.
func ValidateInput(op string, f ObjectiveFunc, x0 []float64, grad GradientFunc, opts Options) ([]float64, *Error) {
	if f == nil {
		return nil, NewError("objective function is required").WithOperation(op)
	}
	if len(x0) == 0 {
		return nil, NewError("starting point must not be empty").WithOperation(op)
	}
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options").WithOperation(op)
	}
	if grad == nil {
		return nil, nil
	}
	g := grad(x0)
	if len(g) != len(x0) {
		return nil, NewErrorf("gradient has length %d, starting point has length %d", len(g), len(x0)).WithOperation(op)
	}
	return g, nil
}
