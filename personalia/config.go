package personalia

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/internal/version"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/resources"
)

// Default configuration values
const (
	DefaultBaseURL         = "https://api.personalia.io"
	DefaultTimeout         = 30 * time.Second
	DefaultPollMaxAttempts = poll.DefaultMaxAttempts
	DefaultPollInterval    = poll.DefaultInterval
)

// RetryConfig configures transport retries. Submissions are never retried.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// BaseDelay is the initial delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
	// Factor is the exponential backoff multiplier.
	Factor float64
	// Jitter enables randomized jitter on retry delays.
	Jitter bool
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

// CircuitState is the state of the client's circuit breaker.
type CircuitState = httpx.CircuitState

const (
	CircuitClosed   = httpx.CircuitClosed
	CircuitOpen     = httpx.CircuitOpen
	CircuitHalfOpen = httpx.CircuitHalfOpen
)

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Enabled determines if circuit breaker is active.
	Enabled bool
	// FailureThreshold is the number of failures before opening the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close the circuit.
	SuccessThreshold int
	// Timeout is the duration the circuit stays open before allowing a test request.
	Timeout time.Duration
	// OnStateChange is called after every transition.
	OnStateChange func(from, to CircuitState)
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

// PollConfig sets the default polling budget for Wait and CreateAndWait.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// Logger is the interface for debug logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

// LoggerFunc is a function adapter for Logger.
type LoggerFunc func(msg string, keysAndValues ...any)

// Debug implements Logger.
func (f LoggerFunc) Debug(msg string, keysAndValues ...any) {
	f(msg, keysAndValues...)
}

// TemplateCache stores template info between lookups. See the cache
// package for memory and Redis implementations.
type TemplateCache = resources.TemplateCache

// Config holds the SDK configuration.
type Config struct {
	// APIKey is sent as "Authorization: ApiKey <key>".
	APIKey string
	// BaseURL is the base URL for the REST API.
	BaseURL string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// HTTPClient replaces the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Poll           PollConfig
	// PollObservers receive every polling round and result.
	PollObservers []poll.Observer

	// TemplateCache caches template info. Nil disables caching.
	TemplateCache TemplateCache
	// ValidateFields checks request fields against the template before
	// submitting. It costs one template lookup per request unless cached.
	ValidateFields bool

	// Headers are additional headers to include in all requests.
	Headers map[string]string
	// UserAgent is the custom user agent string.
	UserAgent string
	// Logger is the debug logger.
	Logger Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = strings.TrimSpace(key)
	}
}

// WithBaseURL sets the base URL for the REST API.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// WithRetry sets the retry configuration.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Config) {
		c.Retry = cfg
	}
}

// WithCircuitBreaker sets the circuit breaker configuration.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Config) {
		c.CircuitBreaker = cfg
	}
}

// WithPolling sets the default polling budget. Non-positive values keep
// the defaults of 30 attempts and 2 seconds.
func WithPolling(maxAttempts int, interval time.Duration) Option {
	return func(c *Config) {
		c.Poll = PollConfig{MaxAttempts: maxAttempts, Interval: interval}
	}
}

// WithPollObserver adds an observer for polling rounds.
func WithPollObserver(obs poll.Observer) Option {
	return func(c *Config) {
		c.PollObservers = append(c.PollObservers, obs)
	}
}

// WithTemplateCache sets the template info cache.
func WithTemplateCache(tc TemplateCache) Option {
	return func(c *Config) {
		c.TemplateCache = tc
	}
}

// WithFieldValidation enables checking request fields against the
// template's field definitions before sending.
func WithFieldValidation(enabled bool) Option {
	return func(c *Config) {
		c.ValidateFields = enabled
	}
}

// WithHeaders sets additional headers for all requests.
func WithHeaders(headers map[string]string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithLogger sets the debug logger.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithDebug enables colored debug logging to stderr.
func WithDebug(enabled bool) Option {
	return func(c *Config) {
		if enabled {
			handler := tint.NewHandler(os.Stderr, &tint.Options{
				Level:      slog.LevelDebug,
				TimeFormat: time.TimeOnly,
			})
			c.Logger = slog.New(handler).With("sdk", version.SDKName)
		}
	}
}

// newDefaultConfig creates a new config with default values.
func newDefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        DefaultTimeout,
		Retry:          DefaultRetryConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Poll: PollConfig{
			MaxAttempts: DefaultPollMaxAttempts,
			Interval:    DefaultPollInterval,
		},
		Headers:   make(map[string]string),
		UserAgent: version.UserAgent(),
	}
}

// resolveConfig applies options and resolves derived values.
func resolveConfig(opts ...Option) *Config {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = DefaultPollMaxAttempts
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	return cfg
}
