package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is the base error type for all HTTP errors returned by the Personalia API.
type APIError struct {
	StatusCode int               `json:"status_code,omitempty"`
	Code       string            `json:"code,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	ErrorID    string            `json:"error_id,omitempty"`
	ErrorCode  int               `json:"error_code,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Message    string            `json:"message,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	RawBody    []byte            `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Reason != "":
		id := e.ErrorID
		if id == "" {
			id = "unknown"
		}
		return fmt.Sprintf("Personalia API Error %s: %s", id, e.Reason)
	case e.StatusCode > 0:
		return fmt.Sprintf("API Error (%d %s): %s", e.StatusCode, e.StatusText(), e.Body())
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	}
	return "unknown error"
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusText returns the canonical text for the status code.
func (e *APIError) StatusText() string {
	return http.StatusText(e.StatusCode)
}

// Body returns the raw response body as text.
func (e *APIError) Body() string {
	return string(bytes.TrimSpace(e.RawBody))
}

// HasResponse reports whether the server answered at all.
func (e *APIError) HasResponse() bool {
	return e.StatusCode > 0
}

// IsRetryable returns true if the error is retryable.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests
}

// AuthenticationError represents a 401 error.
type AuthenticationError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *AuthenticationError) Unwrap() error { return e.APIError }

// AuthorizationError represents a 403 error.
type AuthorizationError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *AuthorizationError) Unwrap() error { return e.APIError }

// NotFoundError represents a 404 error.
type NotFoundError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *NotFoundError) Unwrap() error { return e.APIError }

// ValidationError represents a 400/422 error.
type ValidationError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *ValidationError) Unwrap() error { return e.APIError }

// PaymentRequiredError represents a 402 error, usually exhausted credits.
type PaymentRequiredError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *PaymentRequiredError) Unwrap() error { return e.APIError }

// RateLimitError represents a 429 error.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	Reset      time.Time
}

// Unwrap returns the underlying API error.
func (e *RateLimitError) Unwrap() error { return e.APIError }

// GetRetryAfter returns the retry-after duration in seconds.
func (e *RateLimitError) GetRetryAfter() int {
	return int(e.RetryAfter.Seconds())
}

// PayloadTooLargeError represents a 413 error.
type PayloadTooLargeError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *PayloadTooLargeError) Unwrap() error { return e.APIError }

// ServerError represents a 5xx error.
type ServerError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *ServerError) Unwrap() error { return e.APIError }

// IsRetryable always returns true for server errors.
func (e *ServerError) IsRetryable() bool { return true }

// NetworkError represents a failure where no response was received.
type NetworkError struct{ *APIError }

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return "Network Error: " + e.Message
}

// Unwrap returns the underlying API error.
func (e *NetworkError) Unwrap() error { return e.APIError }

// IsRetryable always returns true for network errors.
func (e *NetworkError) IsRetryable() bool { return true }

// TimeoutError represents a request that was abandoned before a response arrived.
type TimeoutError struct {
	*APIError
	TimeoutSeconds float64
}

// Unwrap returns the underlying API error.
func (e *TimeoutError) Unwrap() error { return e.APIError }

// IsRetryable always returns true for timeout errors.
func (e *TimeoutError) IsRetryable() bool { return true }

// Timeout reports true, so callers checking net.Error-style timeouts see it.
func (e *TimeoutError) Timeout() bool { return true }

// CircuitBreakerOpenError represents a circuit breaker open error.
type CircuitBreakerOpenError struct{ *APIError }

// Unwrap returns the underlying API error.
func (e *CircuitBreakerOpenError) Unwrap() error { return e.APIError }

// IsRetryable always returns false for circuit breaker errors.
func (e *CircuitBreakerOpenError) IsRetryable() bool { return false }

// DecodeError is a successful response whose body could not be decoded.
// It keeps the status and raw body so callers can classify it.
type DecodeError struct{ *APIError }

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response (%d %s): %v: %s", e.StatusCode, e.StatusText(), e.Err, e.Body())
}

// Unwrap returns the underlying API error.
func (e *DecodeError) Unwrap() error { return e.APIError }

// NewDecodeError wraps a decode failure of resp.
func NewDecodeError(resp *Response, err error) *DecodeError {
	return &DecodeError{
		APIError: &APIError{
			StatusCode: resp.StatusCode,
			Code:       "decode_error",
			RequestID:  resp.RequestID,
			RawBody:    resp.Body,
			Err:        err,
		},
	}
}

// ErrorBody is the error document returned by the Personalia API.
type ErrorBody struct {
	Reason          string            `json:"Reason"`
	ErrorID         string            `json:"-"`
	ErrorCode       int               `json:"-"`
	ErrorParameters map[string]string `json:"ErrorParameters"`
}

// ParseErrorBody decodes a Personalia error document. It accepts ErrorId and
// ErrorCode as either JSON numbers or strings. ok is false when body is not a
// JSON object.
func ParseErrorBody(body []byte) (ErrorBody, bool) {
	var raw struct {
		Reason          string            `json:"Reason"`
		ErrorID         json.RawMessage   `json:"ErrorId"`
		ErrorCode       json.RawMessage   `json:"ErrorCode"`
		ErrorParameters map[string]string `json:"ErrorParameters"`
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return ErrorBody{}, false
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ErrorBody{}, false
	}
	out := ErrorBody{
		Reason:          raw.Reason,
		ErrorID:         NormalizeID(raw.ErrorID),
		ErrorParameters: raw.ErrorParameters,
	}
	if code := NormalizeID(raw.ErrorCode); code != "" {
		out.ErrorCode, _ = strconv.Atoi(code)
	}
	return out, true
}

// NormalizeID turns a JSON number or string into its plain text form.
// null and empty values yield "".
func NormalizeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// ParseErrorFromResponse parses an error from an HTTP response.
func ParseErrorFromResponse(statusCode int, body []byte, headers http.Header) error {
	baseErr := &APIError{
		StatusCode: statusCode,
		RequestID:  headers.Get("X-Request-ID"),
		RawBody:    body,
	}

	if parsed, ok := ParseErrorBody(body); ok {
		baseErr.Reason = parsed.Reason
		baseErr.ErrorID = parsed.ErrorID
		baseErr.ErrorCode = parsed.ErrorCode
		baseErr.Parameters = parsed.ErrorParameters
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return &AuthenticationError{APIError: baseErr}
	case http.StatusPaymentRequired:
		return &PaymentRequiredError{APIError: baseErr}
	case http.StatusForbidden:
		return &AuthorizationError{APIError: baseErr}
	case http.StatusNotFound:
		return &NotFoundError{APIError: baseErr}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{APIError: baseErr}
	case http.StatusTooManyRequests:
		return parseRateLimitError(baseErr, headers)
	case http.StatusRequestEntityTooLarge:
		return &PayloadTooLargeError{APIError: baseErr}
	default:
		if statusCode >= 500 {
			return &ServerError{APIError: baseErr}
		}
		return baseErr
	}
}

func parseRateLimitError(baseErr *APIError, headers http.Header) *RateLimitError {
	err := &RateLimitError{APIError: baseErr}

	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if secs, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
			err.RetryAfter = time.Duration(secs) * time.Second
		} else if t, parseErr := time.Parse(time.RFC1123, retryAfter); parseErr == nil {
			err.RetryAfter = time.Until(t)
		}
	}

	if limit := headers.Get("X-Ratelimit-Limit"); limit != "" {
		err.Limit, _ = strconv.Atoi(limit)
	}
	if remaining := headers.Get("X-Ratelimit-Remaining"); remaining != "" {
		err.Remaining, _ = strconv.Atoi(remaining)
	}
	if reset := headers.Get("X-Ratelimit-Reset"); reset != "" {
		if ts, parseErr := strconv.ParseInt(reset, 10, 64); parseErr == nil {
			err.Reset = time.Unix(ts, 0)
		}
	}

	return err
}

// NewNetworkError creates a new network error.
func NewNetworkError(err error) *NetworkError {
	return &NetworkError{
		APIError: &APIError{
			Code:    "network_error",
			Message: err.Error(),
			Err:     err,
		},
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(timeout time.Duration, err error) *TimeoutError {
	return &TimeoutError{
		APIError: &APIError{
			Code:    "timeout",
			Message: fmt.Sprintf("request timed out after %v", timeout),
			Err:     err,
		},
		TimeoutSeconds: timeout.Seconds(),
	}
}

// NewCircuitBreakerOpenError creates a new circuit breaker open error.
func NewCircuitBreakerOpenError() *CircuitBreakerOpenError {
	return &CircuitBreakerOpenError{
		APIError: &APIError{
			Code:    "circuit_breaker_open",
			Message: "circuit breaker is open",
		},
	}
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	return false
}

// IsNoResponse reports whether err describes a request that never got an
// HTTP response: network failures, timeouts and an open circuit.
func IsNoResponse(err error) bool {
	var netErr *NetworkError
	var timeoutErr *TimeoutError
	var cbErr *CircuitBreakerOpenError
	return errors.As(err, &netErr) || errors.As(err, &timeoutErr) || errors.As(err, &cbErr)
}

// IsAuthenticationError returns true if the error is a 401 error.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsNotFoundError returns true if the error is a 404 error.
func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsRateLimitError returns true if the error is a 429 error.
func IsRateLimitError(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsValidationError returns true if the error is a 400/422 error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// AsAPIError extracts the underlying API error.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
