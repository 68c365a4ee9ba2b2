// Package classify turns Personalia API failures into errors with a
// definitive retry disposition.
//
// Classify is a pure function: it never panics and never returns nil. The
// error catalog behind it is fixed at build time and has no mutation API.
package classify

import (
	"errors"
	"strings"
)

// Disposition says whether repeating the call can succeed.
type Disposition int

const (
	// Retryable failures may clear up on a later attempt.
	Retryable Disposition = iota
	// Permanent failures repeat identically until the request is fixed.
	Permanent
)

// String returns the lower-case name of the disposition.
func (d Disposition) String() string {
	switch d {
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Kind names the rule that produced a classification.
type Kind string

const (
	KindNoResponse     Kind = "NO_RESPONSE"
	KindNotReady       Kind = "NOT_READY"
	KindProvider       Kind = "PROVIDER_ERROR"
	KindUnknownID      Kind = "UNRECOGNIZED_PROVIDER_ERROR"
	KindInProgress     Kind = "IN_PROGRESS"
	KindAPI            Kind = "API_ERROR"
	KindJobFailed      Kind = "JOB_FAILED"
	KindRequestFailure Kind = "REQUEST_FAILED"
)

// Error is a classified failure. StatusCode is zero when no HTTP response
// was received. JobHandle is set at most once, by Annotate.
type Error struct {
	Kind        Kind
	StatusCode  int
	ErrorID     string
	ErrorCode   int
	Reason      string
	Message     string
	Description string
	Remediation string
	Disposition Disposition
	JobHandle   string
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.JobHandle == "" || strings.Contains(e.Message, e.JobHandle) {
		return e.Message
	}
	return e.Message + " (request ID: " + e.JobHandle + ")"
}

// Unwrap returns the underlying transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the disposition is Retryable.
func (e *Error) IsRetryable() bool {
	return e.Disposition == Retryable
}

// IsPermanent reports whether the disposition is Permanent.
func (e *Error) IsPermanent() bool {
	return e.Disposition == Permanent
}

// Annotate records the job the error refers to. Only the first handle
// sticks. Error() leaves the handle out when Message already names it.
func (e *Error) Annotate(handle string) *Error {
	if e.JobHandle == "" && handle != "" {
		e.JobHandle = handle
	}
	return e
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
