package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBodySize bounds how much of a response is read. Plans and
// MiniZinc solutions can be large, so this is well above a health payload.
const maxResponseBodySize = 16 << 20 // 16MB

// connection pooling limits; a CLI or gateway talks to a single API host
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Request describes one HTTP call made through [Client].
type Request struct {
	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// URL is the fully resolved request URL.
	URL string

	// Headers are set on the request in addition to any Content-Length.
	Headers map[string]string

	// Body is sent as-is. nil means no body.
	Body []byte

	// Timeout bounds the whole exchange. Zero means no per-request timeout.
	Timeout time.Duration
}

// Response holds the result of an HTTP request made by [Client].
//
// Response captures the body (size limited), status code, latency, and any
// transport error. A non-2xx status is not an error at this layer.
type Response struct {
	// Body contains the HTTP response body, limited to 16MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// Client is a pooled HTTP client with per-request timeouts.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so status checks and long-running submissions can use different limits.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new [Client] with connection pooling enabled.
//
// If transport is nil a pooled [http.Transport] is used. Passing a custom
// RoundTripper is mainly useful in tests.
func NewClient(transport http.RoundTripper) *Client {
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			DisableKeepAlives:   false,
		}
	}
	return &Client{
		// no default timeout - we use per-request timeouts via context
		httpClient: &http.Client{Transport: transport},
	}
}

// Do performs an HTTP request and returns a structured [Response].
//
// Do always returns a Response; errors are captured in the Error field
// rather than returned separately, which keeps retry loops simple.
func (c *Client) Do(ctx context.Context, r Request) Response {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
