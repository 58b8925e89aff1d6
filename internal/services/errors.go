package services

import "errors"

// Standard service errors. Nothing in this subsystem is fatal to the host
// page: every one of these degrades to "resched silently did nothing".
var (
	// Host lookup failures
	ErrMenuGone         = errors.New("menu instance gone")
	ErrTemplateNotFound = errors.New("menu item template not found")
	ErrFieldsNotFound   = errors.New("date/time inputs not found")
	ErrConfirmNotFound  = errors.New("confirm control not found")

	// Injection protocol
	ErrClaimLost       = errors.New("injection claim lost")
	ErrAlreadyInjected = errors.New("option already injected")

	// Saved record problems
	ErrStaleTimestamp  = errors.New("saved timestamp not in the future")
	ErrUnparseableTime = errors.New("saved timestamp unparseable")

	// Infrastructure
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsLookupFailure reports whether an error is an absent-host-element
// condition: skipped or retried, never escalated.
func IsLookupFailure(err error) bool {
	return errors.Is(err, ErrMenuGone) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrFieldsNotFound) ||
		errors.Is(err, ErrConfirmNotFound)
}

// IsRecoverable reports whether an error leaves the engine able to try again
// on a future trigger. Only a broken store is worth surfacing louder.
func IsRecoverable(err error) bool {
	return IsLookupFailure(err) ||
		errors.Is(err, ErrClaimLost) ||
		errors.Is(err, ErrAlreadyInjected) ||
		errors.Is(err, ErrStaleTimestamp) ||
		errors.Is(err, ErrUnparseableTime)
}
