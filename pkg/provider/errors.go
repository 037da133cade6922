package provider

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a provider failure for retry and surfacing decisions.
type Kind string

const (
	// KindNotFound indicates the provider has no record of the instance,
	// e.g. it was terminated and garbage-collected out of band.
	KindNotFound Kind = "not_found"

	// KindThrottled indicates the provider rate-limited the request.
	// Safe to retry with backoff.
	KindThrottled Kind = "throttled"

	// KindUnauthorized indicates rejected credentials. This is a
	// configuration problem that likely affects every call, not a
	// per-instance failure.
	KindUnauthorized Kind = "unauthorized"

	// KindUnavailable indicates a transient provider-side failure or a
	// request timeout. The operation may or may not have taken effect;
	// the next reconciliation pass settles the truth.
	KindUnavailable Kind = "unavailable"

	// KindUnknown indicates an unexpected provider response.
	KindUnknown Kind = "unknown"
)

// Error is a classified provider failure with call context.
type Error struct {
	Kind       Kind
	Op         string
	InstanceID string
	Err        error
}

func (e *Error) Error() string {
	if e.InstanceID != "" {
		return fmt.Sprintf("provider %s [%s] instance=%s: %v", e.Op, e.Kind, e.InstanceID, e.Err)
	}
	return fmt.Sprintf("provider %s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a classified provider error. A context deadline
// expiry is reclassified as KindUnavailable regardless of the given kind.
func NewError(kind Kind, op, instanceID string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Op: op, InstanceID: instanceID, Err: err}
}

// KindOf returns the classification of err, or KindUnknown for errors that
// did not come from a provider client.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a KindNotFound provider error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// IsUnauthorized reports whether err is a KindUnauthorized provider error.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnauthorized
}

// IsRetryable reports whether err is transient: throttled or unavailable.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindThrottled || e.Kind == KindUnavailable
}
