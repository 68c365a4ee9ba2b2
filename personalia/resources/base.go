// Package resources provides REST resource implementations for the Personalia API.
package resources

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
)

// Logger is an interface for debug logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

// Base provides common functionality for all resources.
type Base struct {
	transport *httpx.Transport
	logger    Logger
}

// NewBase creates a new Base resource.
func NewBase(transport *httpx.Transport, logger Logger) *Base {
	return &Base{transport: transport, logger: logger}
}

// Get performs a GET request.
func (b *Base) Get(ctx context.Context, path string, query map[string]string, result any) error {
	resp, err := b.transport.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, result)
}

// GetOnce performs a GET request without transport retries. The poller
// owns retries for status checks, so each round is one HTTP request.
func (b *Base) GetOnce(ctx context.Context, path string, query map[string]string, result any) error {
	resp, err := b.transport.Do(ctx, &httpx.Request{
		Method:  http.MethodGet,
		Path:    path,
		Query:   query,
		NoRetry: true,
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, result)
}

// Post performs a POST request. It is never retried by the transport.
func (b *Base) Post(ctx context.Context, path string, body any, result any) error {
	resp, err := b.transport.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, result)
}

// PostIdempotent performs a POST request that the transport may retry.
func (b *Base) PostIdempotent(ctx context.Context, path string, body any, result any) error {
	resp, err := b.transport.Do(ctx, &httpx.Request{
		Method:     http.MethodPost,
		Path:       path,
		Body:       body,
		Idempotent: true,
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, result)
}

func (b *Base) log(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

// decodeResponse decodes a response into result if result is not nil.
// An empty body leaves result untouched. Decode failures keep the status
// and body of the response.
func decodeResponse(resp *httpx.Response, result any) error {
	if result == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return httpx.NewDecodeError(resp, err)
	}
	return nil
}

// pathParam encodes a single path segment.
func pathParam(name string, value string) (string, error) {
	return runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
}
