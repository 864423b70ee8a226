package booking

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindRateLimited     Kind = "rate_limited"
	KindSlotUnavailable Kind = "slot_unavailable"
	KindProviderFailure Kind = "provider_failure"
	KindLockTimeout     Kind = "lock_timeout"
)

const (
	msgRateLimited     = "too many booking attempts, try again later"
	msgSlotUnavailable = "the requested time is no longer available"
	msgProviderFailure = "calendar provider unavailable"
	msgLockTimeout     = "timed out waiting for the requested time"
)

// Error is the single failure type returned by AttemptBooking. Message is
// safe to show to the requester; Err carries the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the booking error kind in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func validationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

func rateLimitedError() *Error {
	return &Error{Kind: KindRateLimited, Message: msgRateLimited}
}

func slotUnavailableError(err error) *Error {
	return &Error{Kind: KindSlotUnavailable, Message: msgSlotUnavailable, Err: err}
}

func providerFailure(err error) *Error {
	return &Error{Kind: KindProviderFailure, Message: msgProviderFailure, Err: err}
}

func lockTimeoutError(err error) *Error {
	return &Error{Kind: KindLockTimeout, Message: msgLockTimeout, Err: err}
}
