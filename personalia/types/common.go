package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is wrapped by every client-side request validation error.
var ErrInvalidRequest = errors.New("invalid request")

// Int returns a pointer to an int.
func Int(v int) *int {
	return &v
}

// String returns a pointer to a string.
func String(v string) *string {
	return &v
}

// Bool returns a pointer to a bool.
func Bool(v bool) *bool {
	return &v
}

// ErrorID is a provider error identifier such as "117". The API sends it as
// a number in some payloads and as a string in others; both decode to the
// same value.
type ErrorID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ErrorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ErrorID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ErrorId: expected string or number, got %s", data)
	}
	*id = ErrorID(n.String())
	return nil
}

// String returns the identifier text.
func (id ErrorID) String() string {
	return string(id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
