package ai

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures. Handlers map kinds to HTTP responses
// and the review engine uses them to decide whether an answer attempt can be
// retried.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindUnreachable       Kind = "unreachable"
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindMalformedResponse Kind = "malformed_response"
)

// Error carries the classification plus a short operator-safe message. API
// keys and raw response bodies never appear in Msg.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("ai %s: %s: %s", e.Op, e.Kind, e.Msg)
	}
	return fmt.Sprintf("ai %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain, defaulting to
// unreachable for unclassified failures.
func KindOf(err error) Kind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return KindUnreachable
}
