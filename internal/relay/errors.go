package relay

import (
	"errors"
	"fmt"
)

// Relay chain errors.
//
// Design decision: We use package-level sentinel errors for input
// validation failures and a structured Error type for exhaustion, because
// exhaustion needs to carry a classification that callers branch on.
var (
	// ErrNotAbsolute is returned when the target URL is not an absolute
	// http or https URL. Relays cannot resolve relative references.
	ErrNotAbsolute = errors.New("target URL must be absolute http or https")

	// ErrNoRelays is returned when the chain has no configured relays.
	ErrNoRelays = errors.New("no relays configured")
)

// Reason classifies why the whole relay chain failed for a URL.
type Reason int

const (
	// ReasonUnknown means the last failure did not match a known class;
	// the raw error message is passed through.
	ReasonUnknown Reason = iota

	// ReasonBlocked means the last relay was refused with HTTP 403,
	// which usually indicates the site blocks automated access.
	ReasonBlocked

	// ReasonNetwork means the last failure was a transport-level error,
	// so the site is unreachable or silently dropping the connection.
	ReasonNetwork
)

// String returns a human-readable description of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonBlocked:
		return "blocking automated access"
	case ReasonNetwork:
		return "network error or blocking access"
	default:
		return "unknown"
	}
}

// Error is the single synthesized error produced after every relay in the
// chain has failed for one URL. The Reason drives user-facing guidance:
// a blocked site and an unreachable site get different advice.
type Error struct {
	// URL is the target that could not be fetched.
	URL string

	// Reason classifies the last underlying failure.
	Reason Reason

	// Message is the user-facing description.
	Message string

	// Last is the last underlying relay error, for wrapping.
	Last error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the last underlying relay error.
func (e *Error) Unwrap() error {
	return e.Last
}

// statusError records a non-2xx response from a single relay attempt.
// It is never returned to callers directly; it exists so exhaustion
// classification can inspect the last HTTP status.
type statusError struct {
	relay  string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay %s: HTTP %d", e.relay, e.status)
}
