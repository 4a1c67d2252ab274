// Package backend defines the uniform call interface to an external
// reasoning/completion capability and its error taxonomy.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindRejected    ErrorKind = "rejected"
	KindUnknown     ErrorKind = "unknown"
)

// Error is the only error type that escapes a backend adapter.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend error (%s)", e.Kind)
	}
	return fmt.Sprintf("backend error (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed on a later attempt.
// Rejected requests are permanent; everything else is treated as transient.
func (e *Error) Retryable() bool { return e.Kind != KindRejected }

// AsError extracts a *Error from err, wrapping unclassified errors as unknown.
func AsError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}

// Request is a single completion call.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completion is the typed result of a completion call.
type Completion struct {
	Text     string
	Metadata map[string]string
}

// Client is the adapter boundary to an external completion capability.
// Implementations own the wire protocol; callers own timeout and retry policy.
type Client interface {
	// Name returns the provider identifier.
	Name() string

	// Complete performs one completion call. Failures are reported as *Error.
	Complete(ctx context.Context, req Request) (*Completion, error)
}
