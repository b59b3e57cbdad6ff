package domain

import "errors"

var (
	// ErrNotFound reports a referenced click, conversion, session or rule
	// that does not exist. It is not retried.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports a malformed request, rejected before any state
	// mutation.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate reports a conditional insert that lost to an existing
	// row. Callers resolve it to the existing record.
	ErrDuplicate = errors.New("duplicate")
	// ErrTransientStore wraps persistence and timeout failures.
	ErrTransientStore = errors.New("store unavailable")
	// ErrInvalidTransition reports a status change out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAttributionInvariant reports credit that does not sum to the
	// conversion totals.
	ErrAttributionInvariant = errors.New("attribution sums do not match conversion")
)
