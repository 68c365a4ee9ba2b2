// Package httpx provides HTTP transport utilities for the Personalia SDK.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/personalia-io/personalia-sdk-go/internal/version"
)

// CorrelationHeader carries a client generated id for every logical request.
// Retries of the same request reuse the id.
const CorrelationHeader = "X-Correlation-ID"

// Transport wraps an http.Client with retry, circuit breaker, and auth handling.
type Transport struct {
	client         *http.Client
	baseURL        string
	apiKey         string
	userAgent      string
	headers        map[string]string
	retry          *RetryPolicy
	circuitBreaker *CircuitBreaker
	logger         Logger
}

// Logger is an interface for debug logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

// Config holds configuration for the transport.
type Config struct {
	BaseURL        string
	APIKey         string
	UserAgent      string
	Headers        map[string]string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Logger         Logger
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
	Jitter     bool
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	OnStateChange    StateChangeFunc
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Factor:     2.0,
		Jitter:     true,
	}
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
	}
}

// NewTransport creates a new Transport with the given configuration.
func NewTransport(cfg Config) *Transport {
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	t := &Transport{
		client:    httpClient,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		headers:   cfg.Headers,
		logger:    cfg.Logger,
	}

	// MaxRetries=0 is a valid config meaning no retries, so only an entirely
	// empty RetryConfig falls back to the defaults.
	retryConfig := cfg.Retry
	if retryConfig.BaseDelay == 0 && retryConfig.MaxDelay == 0 && retryConfig.Factor == 0 {
		retryConfig = DefaultRetryConfig()
	}
	t.retry = NewRetryPolicy(retryConfig)

	if cfg.CircuitBreaker.Enabled {
		cbCfg := cfg.CircuitBreaker
		userHook := cbCfg.OnStateChange
		cbCfg.OnStateChange = func(from, to CircuitState) {
			t.log("circuit breaker state changed", "from", from.String(), "to", to.String())
			if userHook != nil {
				userHook(from, to)
			}
		}
		t.circuitBreaker = NewCircuitBreaker(cbCfg)
	}

	return t
}

// CircuitBreaker returns the transport's circuit breaker, or nil when disabled.
func (t *Transport) CircuitBreaker() *CircuitBreaker {
	return t.circuitBreaker
}

// Request represents an HTTP request to be made.
type Request struct {
	Method     string
	Path       string
	Body       any
	Query      map[string]string
	Headers    map[string]string
	Idempotent bool // If true, can be retried for POST
	NoRetry    bool // Callers that retry on their own send each request once
}

// Response represents an HTTP response.
type Response struct {
	StatusCode    int
	Body          []byte
	Headers       http.Header
	RequestID     string
	CorrelationID string
}

// Do executes an HTTP request with retry and circuit breaker logic.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.circuitBreaker != nil && !t.circuitBreaker.Allow() {
		return nil, NewCircuitBreakerOpenError()
	}

	correlationID := uuid.NewString()
	var lastErr error
	maxAttempts := t.retry.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := t.retry.DelayFor(attempt-1, lastErr)
			t.log("retrying request", "attempt", attempt, "delay", delay, "path", req.Path, "correlation_id", correlationID)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := t.doOnce(ctx, req, correlationID)
		if err == nil {
			if t.circuitBreaker != nil {
				t.circuitBreaker.RecordSuccess()
			}
			return resp, nil
		}

		lastErr = err

		// Only transient failures count against the breaker. A 404 while a
		// job is still being indexed means the service is healthy.
		if t.circuitBreaker != nil {
			if IsRetryable(err) {
				t.circuitBreaker.RecordFailure()
			} else {
				t.circuitBreaker.RecordSuccess()
			}
		}

		if ctx.Err() != nil || !t.shouldRetry(req, err, attempt) {
			break
		}
	}

	return nil, lastErr
}

// doOnce executes a single HTTP request.
func (t *Transport) doOnce(ctx context.Context, req *Request, correlationID string) (*Response, error) {
	fullURL := t.baseURL + req.Path
	if len(req.Query) > 0 {
		q := url.Values{}
		for k, v := range req.Query {
			q.Set(k, v)
		}
		if encoded := q.Encode(); encoded != "" {
			fullURL += "?" + encoded
		}
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", t.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(CorrelationHeader, correlationID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "ApiKey "+t.apiKey)
	}

	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	t.log("executing request", "method", req.Method, "url", fullURL, "correlation_id", correlationID)
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(t.client.Timeout, ctx.Err())
		}
		return nil, NewNetworkError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("failed to read response body: %w", err))
	}

	resp := &Response{
		StatusCode:    httpResp.StatusCode,
		Body:          body,
		Headers:       httpResp.Header,
		RequestID:     httpResp.Header.Get("X-Request-ID"),
		CorrelationID: correlationID,
	}

	t.log("received response", "status", resp.StatusCode, "request_id", resp.RequestID, "correlation_id", correlationID)

	if httpResp.StatusCode >= 400 {
		return nil, ParseErrorFromResponse(httpResp.StatusCode, body, httpResp.Header)
	}

	return resp, nil
}

// shouldRetry determines if a request should be retried.
func (t *Transport) shouldRetry(req *Request, err error, attempt int) bool {
	if req.NoRetry || attempt >= t.retry.MaxRetries {
		return false
	}

	// Submissions create billable jobs; only retry them when marked.
	if req.Method == http.MethodPost && !req.Idempotent {
		return false
	}

	return IsRetryable(err)
}

// log logs a debug message.
func (t *Transport) log(msg string, keysAndValues ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, keysAndValues...)
	}
}

// JSON decodes a response body into a target value.
func JSON[T any](resp *Response) (*T, error) {
	if len(resp.Body) == 0 {
		return nil, nil
	}
	var result T
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, NewDecodeError(resp, err)
	}
	return &result, nil
}
