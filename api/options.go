package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// clientConfig holds mutable state during Client construction.
type clientConfig struct {
	apiKey        string
	timeout       time.Duration
	retryAttempts int
	retryDelay    time.Duration
	rateLimit     float64
	userAgent     string
	transport     http.RoundTripper
	logger        *slog.Logger
}

// ClientOption configures a [Client] during construction.
type ClientOption func(*clientConfig) error

// WithAPIKey sets the subscription key sent with every request.
// An empty key sends no key header.
func WithAPIKey(key string) ClientOption {
	return func(cfg *clientConfig) error {
		cfg.apiKey = key
		return nil
	}
}

// WithTimeout sets the per-request timeout. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) ClientOption {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithRetry sets how many times a GET that failed at the transport level is
// retried, and the delay between tries. Defaults to 3 retries 1 second apart.
// HTTP error statuses are never retried here.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(cfg *clientConfig) error {
		if attempts < 0 {
			return errors.New("retry attempts cannot be negative")
		}
		if delay < 0 {
			return errors.New("retry delay cannot be negative")
		}
		cfg.retryAttempts = attempts
		cfg.retryDelay = delay
		return nil
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(cfg *clientConfig) error {
		if perSecond < 0 {
			return errors.New("rate limit cannot be negative")
		}
		cfg.rateLimit = perSecond
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cfg *clientConfig) error {
		if ua == "" {
			return errors.New("user agent cannot be empty")
		}
		cfg.userAgent = ua
		return nil
	}
}

// WithTransport sets the underlying RoundTripper. Mainly useful in tests.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(cfg *clientConfig) error {
		cfg.transport = rt
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
