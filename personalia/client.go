package personalia

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/resources"
	"github.com/personalia-io/personalia-sdk-go/personalia/schema"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// Client is the main Personalia SDK client. It is safe for concurrent use.
type Client struct {
	cfg       *Config
	transport *httpx.Transport
	mu        sync.RWMutex
	closed    bool

	content   *resources.ContentResource
	templates *resources.TemplatesResource
}

// NewClient creates a new Personalia client with the given options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := resolveConfig(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAuth
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	var logger httpx.Logger
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	transport := httpx.NewTransport(httpx.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		UserAgent:  cfg.UserAgent,
		Headers:    cfg.Headers,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
		Retry: httpx.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
			Factor:     cfg.Retry.Factor,
			Jitter:     cfg.Retry.Jitter,
		},
		CircuitBreaker: httpx.CircuitBreakerConfig{
			Enabled:          cfg.CircuitBreaker.Enabled,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
			Timeout:          cfg.CircuitBreaker.Timeout,
			OnStateChange:    cfg.CircuitBreaker.OnStateChange,
		},
		Logger: logger,
	})

	c := &Client{
		cfg:       cfg,
		transport: transport,
	}
	c.initResources()

	return c, nil
}

// initResources initializes all resource accessors.
func (c *Client) initResources() {
	var logger resources.Logger
	if c.cfg.Logger != nil {
		logger = c.cfg.Logger
	}

	c.templates = resources.NewTemplatesResource(c.transport, c.cfg.TemplateCache, logger)

	pollOpts := []poll.Option{
		poll.WithMaxAttempts(c.cfg.Poll.MaxAttempts),
		poll.WithInterval(c.cfg.Poll.Interval),
	}
	if logger != nil {
		pollOpts = append(pollOpts, poll.WithLogger(logger))
	}
	switch len(c.cfg.PollObservers) {
	case 0:
	case 1:
		pollOpts = append(pollOpts, poll.WithObserver(c.cfg.PollObservers[0]))
	default:
		pollOpts = append(pollOpts, poll.WithObserver(poll.Observers(c.cfg.PollObservers)))
	}

	contentCfg := resources.ContentConfig{Logger: logger, Poll: pollOpts}
	if c.cfg.ValidateFields {
		contentCfg.Validator = schema.NewValidator(c.templates)
	}
	c.content = resources.NewContentResource(c.transport, contentCfg)
}

// Close marks the client closed. The client holds no connections of its
// own; a Redis template cache must be closed by its owner.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// GetConfig returns a copy of the client configuration.
func (c *Client) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.cfg
}

// Content returns the Content resource.
func (c *Client) Content() *resources.ContentResource {
	return c.content
}

// Templates returns the Templates resource.
func (c *Client) Templates() *resources.TemplatesResource {
	return c.templates
}

// CircuitState reports the circuit breaker state. A disabled breaker is
// always closed.
func (c *Client) CircuitState() CircuitState {
	if cb := c.transport.CircuitBreaker(); cb != nil {
		return cb.State()
	}
	return CircuitClosed
}

// Wait polls an existing request until it completes, using the client's
// polling defaults unless opts override them.
func (c *Client) Wait(ctx context.Context, requestID string, opts ...poll.Option) (*types.Content, error) {
	return c.content.Wait(ctx, requestID, opts...)
}
