package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/pianista-dev/pianista/internal/httpx"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
	defaultUserAgent     = "pianista-go"

	// APIKeyHeader carries the subscription key expected by the API gateway.
	APIKeyHeader = "Ocp-Apim-Subscription-Key"
)

// Client talks to the Pianista planning and solving REST API.
//
// Client is a thin pass-through: it encodes requests, applies the API key
// and default headers, rate limits and retries transport failures on GET
// requests, and decodes responses. It never interprets job status codes
// beyond success versus error; long-running jobs are driven by the poller
// in the root package.
//
// A Client is safe for concurrent use.
type Client struct {
	baseURL       *url.URL
	apiKey        string
	userAgent     string
	timeout       time.Duration
	retryAttempts int
	retryDelay    time.Duration
	limiter       *rate.Limiter
	http          *httpx.Client
	logger        *slog.Logger
}

// NewClient creates a [Client] for the API at baseURL.
//
// Defaults: 30s request timeout, 3 retries 1s apart for transport errors on
// GET requests, no rate limit. Returns an error if baseURL is not an
// absolute http(s) URL or if any option is invalid.
//
// Example:
//
//	client, err := api.NewClient("https://pianista.example.com",
//	    api.WithAPIKey(os.Getenv("PIANISTA_API_KEY")),
//	    api.WithRateLimit(5),
//	)
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL must include a host, got %q", baseURL)
	}

	cfg := &clientConfig{
		timeout:       defaultTimeout,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		userAgent:     defaultUserAgent,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rateLimit), 1)
	}

	return &Client{
		baseURL:       u,
		apiKey:        cfg.apiKey,
		userAgent:     cfg.userAgent,
		timeout:       cfg.timeout,
		retryAttempts: cfg.retryAttempts,
		retryDelay:    cfg.retryDelay,
		limiter:       limiter,
		http:          httpx.NewClient(cfg.transport),
		logger:        logger,
	}, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// Root calls GET / and returns the decoded service banner.
// It is mostly useful as a connectivity check.
func (c *Client) Root(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// endpoint resolves path (and optional query) against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}

// do sends one request. Transport errors on GET requests are retried with a
// constant delay; any HTTP status is returned to the caller unchanged.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (httpx.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return httpx.Response{}, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	headers := map[string]string{
		"Cache-Control": "no-cache",
		"Accept":        "application/json",
		"User-Agent":    c.userAgent,
	}
	if payload != nil {
		headers["Content-Type"] = "application/json"
	}
	if c.apiKey != "" {
		headers[APIKeyHeader] = c.apiKey
	}

	req := httpx.Request{
		Method:  method,
		URL:     c.endpoint(path, query),
		Headers: headers,
		Body:    payload,
		Timeout: c.timeout,
	}

	var resp httpx.Response
	attempt := 0
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		resp = c.http.Do(ctx, req)
		if resp.Error == nil {
			return nil
		}
		// only idempotent reads are replayed
		if ctx.Err() != nil || method != http.MethodGet {
			return backoff.Permanent(resp.Error)
		}
		c.logger.Debug("api request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"error", resp.Error.Error(),
		)
		return resp.Error
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(c.retryDelay)
	policy = backoff.WithMaxRetries(policy, uint64(c.retryAttempts))
	policy = backoff.WithContext(policy, ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return resp, &TransportError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug("api request completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
	)
	return resp, nil
}

// getJSON performs a GET and decodes a 200/201 body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// postJSON performs a POST and decodes a 200/201 body into out.
func (c *Client) postJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, http.MethodPost, path, query, body)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// decode turns a non-success status into an *APIError and otherwise
// unmarshals the body into out (when out is non-nil).
func decode(resp httpx.Response, out any) error {
	if !IsSuccess(resp.StatusCode) {
		return newAPIError(resp.StatusCode, resp.Body)
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsSuccess reports whether code is one of the API's success codes (200, 201).
func IsSuccess(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated
}

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is (or wraps) a [TransportError].
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
