package classify

import (
	"net/http"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain attached to gRPC statuses.
const ErrorDomain = "api.personalia.io"

// Code maps the classification to a gRPC status code, so services that
// front the Personalia API can return classified errors directly.
func (e *Error) Code() codes.Code {
	if e.Disposition == Retryable {
		return codes.Unavailable
	}
	switch e.ErrorID {
	case "101":
		return codes.PermissionDenied
	case "102":
		return codes.Unauthenticated
	case "103":
		return codes.NotFound
	case "117":
		return codes.ResourceExhausted
	case "104", "109", "111", "112", "113", "114", "118":
		return codes.InvalidArgument
	case "105", "106", "107", "108":
		return codes.FailedPrecondition
	}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusPaymentRequired:
		return codes.ResourceExhausted
	}
	if e.Kind == KindJobFailed {
		return codes.Aborted
	}
	return codes.Unknown
}

// GRPCStatus implements the interface used by status.FromError.
func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.Code(), e.Error())

	meta := map[string]string{"disposition": e.Disposition.String()}
	if e.ErrorID != "" {
		meta["error_id"] = e.ErrorID
	}
	if e.JobHandle != "" {
		meta["request_id"] = e.JobHandle
	}
	if e.StatusCode != 0 {
		meta["http_status"] = strconv.Itoa(e.StatusCode)
	}

	info := &errdetails.ErrorInfo{
		Reason:   string(e.Kind),
		Domain:   ErrorDomain,
		Metadata: meta,
	}
	var withDetails *status.Status
	var err error
	if e.Remediation != "" {
		withDetails, err = st.WithDetails(info, &errdetails.LocalizedMessage{
			Locale:  "en-US",
			Message: e.Remediation,
		})
	} else {
		withDetails, err = st.WithDetails(info)
	}
	if err != nil {
		return st
	}
	return withDetails
}
