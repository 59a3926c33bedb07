package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]ClientOption{WithLogger(testLogger()), WithRetry(0, 0)}, opts...)
	client, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "pianista.example.com"},
		{"ftp scheme", "ftp://pianista.example.com"},
		{"no host", "http://"},
		{"unparseable", "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url)
			assert.Error(t, err)
		})
	}
}

func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"zero timeout", WithTimeout(0)},
		{"negative retries", WithRetry(-1, time.Second)},
		{"negative retry delay", WithRetry(1, -time.Second)},
		{"negative rate", WithRateLimit(-1)},
		{"empty user agent", WithUserAgent("")},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("http://localhost:8000", tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestClient_DefaultHeaders(t *testing.T) {
	var got http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"message":"Pianista API"}`))
	}, WithAPIKey("secret"), WithUserAgent("pianista-test"))

	root, err := client.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pianista API", root["message"])

	assert.Equal(t, "secret", got.Get(APIKeyHeader))
	assert.Equal(t, "no-cache", got.Get("Cache-Control"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "pianista-test", got.Get("User-Agent"))
	assert.Empty(t, got.Get("Content-Type"), "GET without a body must not set Content-Type")
}

func TestClient_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	var present bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[http.CanonicalHeaderKey(APIKeyHeader)]
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Root(context.Background())
	require.NoError(t, err)
	assert.False(t, present)
}

func TestClient_BaseURLWithPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/gateway/", WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = client.Planners(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/gateway/planners", gotPath)
}

func TestClient_RetriesTransportErrorsOnGET(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return &http.Response{
			StatusCode: http.StatusAccepted,
			Body:       io.NopCloser(strings.NewReader(`{"detail":"processing"}`)),
			Header:     http.Header{},
			Request:    r,
		}, nil
	})

	client, err := NewClient("http://pianista.test",
		WithTransport(rt),
		WithRetry(3, time.Millisecond),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	resp, err := client.GetPlan(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	client, err := NewClient("http://pianista.test",
		WithTransport(rt),
		WithRetry(2, time.Millisecond),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	_, err = client.GetSolve(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Equal(t, int32(3), calls.Load(), "one try plus two retries")
}

func TestClient_DoesNotRetryPOST(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection reset")
	})

	client, err := NewClient("http://pianista.test",
		WithTransport(rt),
		WithRetry(3, time.Millisecond),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	_, err = client.SubmitPlan(context.Background(), PlanRequest{Domain: "(define (domain d))", Problem: "(define (problem p))"})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DoesNotRetryHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetry(3, time.Millisecond))

	_, err := client.Planners(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Solvers(context.Background())
		require.NoError(t, err)
	}

	// burst of one: the 2nd and 3rd requests each wait ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestClient_RateLimitRespectsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithRateLimit(0.1))

	_, err := client.Planners(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Planners(ctx)
	assert.Error(t, err)
}

func TestClient_Catalog(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/planners":
			_ = json.NewEncoder(w).Encode([]Planner{{ID: "lama", Name: "LAMA"}, {ID: "fd", Name: "Fast Downward"}})
		case "/planners/lama":
			_ = json.NewEncoder(w).Encode(Planner{ID: "lama", Name: "LAMA"})
		case "/solvers":
			_ = json.NewEncoder(w).Encode([]Solver{{ID: "gecode", Name: "Gecode"}})
		case "/solvers/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Solver not found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	planners, err := client.Planners(ctx)
	require.NoError(t, err)
	require.Len(t, planners, 2)
	assert.Equal(t, "Fast Downward", planners[1].Name)

	planner, err := client.Planner(ctx, "lama")
	require.NoError(t, err)
	assert.Equal(t, "LAMA", planner.Name)

	solvers, err := client.Solvers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Solver{{ID: "gecode", Name: "Gecode"}}, solvers)

	_, err = client.Solver(ctx, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Solver not found", apiErr.Detail)

	_, err = client.Planner(ctx, "")
	assert.ErrorIs(t, err, ErrMissingField)
}
