package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies upstream failures.
type ErrorKind string

const (
	// KindTimeout means the upstream call exceeded its time budget.
	KindTimeout ErrorKind = "timeout"
	// KindTransportFailure covers any other network or HTTP-level failure.
	KindTransportFailure ErrorKind = "transport_failure"
	// KindMalformedResponse means the call succeeded but the body did not match the expected shape.
	KindMalformedResponse ErrorKind = "malformed_response"
	// KindUnexpected is everything else.
	KindUnexpected ErrorKind = "unexpected"
)

// Sentinels for errors.Is matching on kind alone.
var (
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrTransportFailure  = &Error{Kind: KindTransportFailure}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrUnexpected        = &Error{Kind: KindUnexpected}
)

// Error is the only error type returned by the upstream client. Detail is a
// short human-readable tag safe to show to end users.
type Error struct {
	Kind       ErrorKind
	Detail     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("agent %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against a kind-only sentinel such as ErrTimeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Detail != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind from err, defaulting to KindUnexpected.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// DetailOf extracts the user-facing detail from err.
func DetailOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	return "unexpected"
}

func newError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// transportError maps an http.Client failure onto the taxonomy.
func transportError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, "timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, "timeout", err)
	}
	return newError(KindTransportFailure, "http_error", err)
}
