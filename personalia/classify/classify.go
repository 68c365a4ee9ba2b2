package classify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
)

// Call identifies which API operation failed.
type Call int

const (
	CallOther Call = iota
	CallSubmit
	CallStatusCheck
)

// String returns the operation name used in logs.
func (c Call) String() string {
	switch c {
	case CallSubmit:
		return "submit"
	case CallStatusCheck:
		return "status_check"
	default:
		return "other"
	}
}

// Failure is the payload of a job the provider marked Failed.
type Failure struct {
	Description string
	ErrorID     string
}

// Input is one failure signal. Exactly one of NoResponse, StatusCode or
// Failure is normally set; an Input with none of them describes a generic
// error carried in Cause.
type Input struct {
	Call       Call
	NoResponse bool
	StatusCode int
	Body       []byte
	Failure    *Failure
	Cause      error
}

const noResponseMessage = "no response received"

// Classify applies the classification rules in precedence order:
//
//  1. no response: Retryable
//  2. 404 on a status check: Retryable, the job may not be indexed yet
//  3. catalogued provider error id: Permanent if on the roster
//  4. uncatalogued provider error id: Retryable
//  5. "processing" or "in progress" in the text: Retryable
//  6. anything else: Permanent
//
// A Failed job payload goes through rules 3 to 6 for its message and is
// always Permanent.
func Classify(in Input) *Error {
	if in.Failure != nil {
		return classifyFailure(in)
	}

	if in.NoResponse {
		return &Error{
			Kind:        KindNoResponse,
			Message:     noResponseMessage,
			Disposition: Retryable,
			Err:         in.Cause,
		}
	}

	if in.StatusCode == 0 {
		msg := "unknown error"
		if in.Cause != nil {
			msg = in.Cause.Error()
		}
		e := &Error{
			Kind:        KindRequestFailure,
			Message:     msg,
			Disposition: Permanent,
			Err:         in.Cause,
		}
		if inProgress(msg) {
			e.Kind = KindInProgress
			e.Disposition = Retryable
		}
		return e
	}

	if in.StatusCode == http.StatusNotFound && in.Call == CallStatusCheck {
		return &Error{
			Kind:        KindNotReady,
			StatusCode:  in.StatusCode,
			Message:     fmt.Sprintf("content not ready yet (%d %s)", in.StatusCode, http.StatusText(in.StatusCode)),
			Disposition: Retryable,
			Err:         in.Cause,
		}
	}

	body, _ := httpx.ParseErrorBody(in.Body)
	if body.ErrorID != "" {
		e := classifyProviderID(body.Reason, body.ErrorID)
		e.StatusCode = in.StatusCode
		e.ErrorCode = body.ErrorCode
		e.Err = in.Cause
		return e
	}

	raw := strings.TrimSpace(string(in.Body))
	e := &Error{
		StatusCode:  in.StatusCode,
		ErrorCode:   body.ErrorCode,
		Reason:      body.Reason,
		Message:     fmt.Sprintf("API error (%d %s): %s", in.StatusCode, http.StatusText(in.StatusCode), raw),
		Disposition: Permanent,
		Kind:        KindAPI,
		Err:         in.Cause,
	}
	if inProgress(body.Reason) || inProgress(raw) {
		e.Kind = KindInProgress
		e.Disposition = Retryable
	}
	return e
}

func classifyFailure(in Input) *Error {
	desc := strings.TrimSpace(in.Failure.Description)
	reason := "content generation failed"
	if desc != "" {
		reason += ": " + desc
	}

	var e *Error
	if id := strings.TrimSpace(in.Failure.ErrorID); id != "" {
		e = classifyProviderID(reason, id)
	} else {
		if desc == "" {
			reason += ": unknown error"
		}
		e = &Error{Reason: reason, Message: reason}
	}
	e.Kind = KindJobFailed
	e.Disposition = Permanent
	e.StatusCode = in.StatusCode
	e.Err = in.Cause
	return e
}

func classifyProviderID(reason, id string) *Error {
	if reason == "" {
		reason = "Personalia API Error " + id
	}
	entry, ok := Lookup(id)
	if !ok {
		return &Error{
			Kind:        KindUnknownID,
			ErrorID:     id,
			Reason:      reason,
			Message:     fmt.Sprintf("%s (unrecognized error id %s)", reason, id),
			Disposition: Retryable,
		}
	}
	disposition := Retryable
	if entry.Permanent {
		disposition = Permanent
	}
	return &Error{
		Kind:        KindProvider,
		ErrorID:     id,
		Reason:      reason,
		Message:     fmt.Sprintf("%s: %s - %s", reason, entry.Description, entry.Remediation),
		Description: entry.Description,
		Remediation: entry.Remediation,
		Disposition: disposition,
	}
}

func inProgress(text string) bool {
	text = strings.ToLower(text)
	return strings.Contains(text, "processing") || strings.Contains(text, "in progress")
}

// FromError classifies an error returned by the transport for the given
// call. Errors that are already classified pass through unchanged.
func FromError(call Call, err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := As(err); ok {
		return ce
	}
	if httpx.IsNoResponse(err) {
		return Classify(Input{Call: call, NoResponse: true, Cause: err})
	}
	var apiErr *httpx.APIError
	if errors.As(err, &apiErr) && apiErr.HasResponse() {
		return Classify(Input{Call: call, StatusCode: apiErr.StatusCode, Body: apiErr.RawBody, Cause: err})
	}
	return Classify(Input{Call: call, Cause: err})
}
