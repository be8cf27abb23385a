package tool

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure the router reports wraps exactly one of these.
var (
	ErrToolNotAvailable           = errors.New("tool not available")
	ErrContextNotSuitable         = errors.New("context not suitable")
	ErrInvalidParameters          = errors.New("invalid parameters")
	ErrPerformanceThresholdNotMet = errors.New("performance threshold not met")
	ErrExecutionFailed            = errors.New("execution failed")
)

var kinds = []error{
	ErrToolNotAvailable,
	ErrContextNotSuitable,
	ErrInvalidParameters,
	ErrPerformanceThresholdNotMet,
	ErrExecutionFailed,
}

// Error is a tool-scoped failure. It matches its Kind and its cause with
// errors.Is.
type Error struct {
	Kind   error
	ToolID string
	Reason string
	Err    error
}

// NewError builds a tool-scoped error.
func NewError(kind error, toolID, reason string, cause error) *Error {
	return &Error{Kind: kind, ToolID: toolID, Reason: reason, Err: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("tool %q: %v", e.ToolID, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind err wraps, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
