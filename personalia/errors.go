package personalia

import (
	"errors"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// Configuration errors.
var (
	ErrNoAuth         = errors.New("personalia: API key is required")
	ErrInvalidBaseURL = errors.New("personalia: invalid base URL")
)

// ErrInvalidRequest is wrapped by client-side request validation errors.
var ErrInvalidRequest = types.ErrInvalidRequest

// Transport errors.
type (
	APIError                = httpx.APIError
	AuthenticationError     = httpx.AuthenticationError
	AuthorizationError      = httpx.AuthorizationError
	PaymentRequiredError    = httpx.PaymentRequiredError
	NotFoundError           = httpx.NotFoundError
	ValidationError         = httpx.ValidationError
	RateLimitError          = httpx.RateLimitError
	PayloadTooLargeError    = httpx.PayloadTooLargeError
	ServerError             = httpx.ServerError
	NetworkError            = httpx.NetworkError
	TimeoutError            = httpx.TimeoutError
	CircuitBreakerOpenError = httpx.CircuitBreakerOpenError
)

// Classification and polling errors.
type (
	ClassifiedError      = classify.Error
	Disposition          = classify.Disposition
	ErrorKind            = classify.Kind
	CatalogEntry         = classify.Entry
	BudgetExhaustedError = poll.BudgetExhaustedError
	JobError             = poll.JobError
)

const (
	Retryable = classify.Retryable
	Permanent = classify.Permanent
)

// LookupError returns the catalog entry for a provider error id such as
// "117".
func LookupError(id string) (CatalogEntry, bool) {
	return classify.Lookup(id)
}

// AsClassified extracts a classified error from err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	return classify.As(err)
}

// IsPermanent reports whether retrying the same request cannot succeed.
// Budget exhaustion is not permanent: the job may still finish.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidRequest) {
		return true
	}
	if IsBudgetExhausted(err) {
		return false
	}
	if ce, ok := classify.As(err); ok {
		return ce.IsPermanent()
	}
	return false
}

// IsRetryable reports whether the failure is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := classify.As(err); ok {
		return ce.IsRetryable()
	}
	return httpx.IsRetryable(err)
}

// IsBudgetExhausted reports whether polling gave up before the job
// finished.
func IsBudgetExhausted(err error) bool {
	var be *BudgetExhaustedError
	return errors.As(err, &be)
}

// JobHandleOf returns the request ID a polling error refers to, or "".
func JobHandleOf(err error) string {
	return poll.JobHandleOf(err)
}

// IsAuthenticationError returns true if the error is a 401 error.
func IsAuthenticationError(err error) bool {
	return httpx.IsAuthenticationError(err)
}

// IsNotFoundError returns true if the error is a 404 error.
func IsNotFoundError(err error) bool {
	return httpx.IsNotFoundError(err)
}

// IsRateLimitError returns true if the error is a 429 error.
func IsRateLimitError(err error) bool {
	return httpx.IsRateLimitError(err)
}

// IsValidationError returns true if the error is a 400/422 error.
func IsValidationError(err error) bool {
	return httpx.IsValidationError(err)
}
