package fleet

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-input failures. These are surfaced verbatim to
// the calling layer; provider-side failures carry their own classification
// (see the provider package).
var (
	// ErrNotFound indicates no record matches the (owner, id) pair.
	ErrNotFound = errors.New("server not found")

	// ErrUnknownInstanceType indicates the requested type is not in the
	// instance catalog.
	ErrUnknownInstanceType = errors.New("unknown instance type")

	// ErrNotProvisioned indicates the record has no provider instance yet,
	// so control actions cannot be applied.
	ErrNotProvisioned = errors.New("server not yet provisioned")

	// ErrInvalidTransition indicates the record's current status has no
	// edge for the requested action.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// invalidTransition wraps ErrInvalidTransition with the offending edge.
func invalidTransition(current Status, action Action) error {
	return fmt.Errorf("%w: cannot %s a %s server", ErrInvalidTransition, action, current)
}
