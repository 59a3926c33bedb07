package pianista

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pianista-dev/pianista/api"
	"github.com/pianista-dev/pianista/internal/server"
)

// fakePianista answers job status requests: each id reports pending for
// its configured number of polls, then succeeds. Unknown ids are 404.
type fakePianista struct {
	mu       sync.Mutex
	pendings map[string]int
	polls    map[string]int
}

func newFakePianista(pendings map[string]int) *fakePianista {
	return &fakePianista{pendings: pendings, polls: make(map[string]int)}
}

func (f *fakePianista) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		id := "submitted-" + strings.TrimPrefix(r.URL.Path, "/solve/")
		f.mu.Lock()
		f.pendings[id] = 1
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
		return
	}

	id := r.URL.Query().Get("id")
	f.mu.Lock()
	remaining, ok := f.pendings[id]
	f.polls[id]++
	if ok && remaining > 0 {
		f.pendings[id] = remaining - 1
	}
	f.mu.Unlock()

	switch {
	case !ok:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Job not found"}`))
	case remaining != 0:
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"detail":"still working"}`))
	default:
		_, _ = w.Write([]byte(`{"plan":"(move a b)","status":"SATISFIED"}`))
	}
}

func newTestMonitor(t *testing.T, handler http.Handler, opts ...MonitorOption) *Monitor {
	t.Helper()
	client := newAPIClient(t, handler.ServeHTTP)

	base := []MonitorOption{
		WithMonitorLogger(testLogger()),
		WithPollerOptions(WithBackoffPolicy(fastPolicy(1000))),
	}
	m, err := NewMonitor(client, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.stopAll)
	return m
}

func waitJobStatus(t *testing.T, m *Monitor, id string, want Status) JobUpdate {
	t.Helper()
	var last JobUpdate
	require.Eventually(t, func() bool {
		u, ok := m.Job(id)
		last = u
		return ok && u.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s (last %s)", id, want, last.Status)
	return last
}

func TestNewMonitor_Validation(t *testing.T) {
	client, err := api.NewClient("http://localhost:8000")
	require.NoError(t, err)

	_, err = NewMonitor(nil)
	assert.Error(t, err)

	tests := []struct {
		name string
		opt  MonitorOption
	}{
		{"port zero", WithPort(0)},
		{"port too high", WithPort(65536)},
		{"empty title", WithTitle("")},
		{"nil logger", WithMonitorLogger(nil)},
		{"max tracked zero", WithMaxTracked(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMonitor(client, tt.opt)
			assert.Error(t, err)
		})
	}

	m, err := NewMonitor(client, WithStatusCallback(nil), WithPort(65535))
	require.NoError(t, err)
	assert.Equal(t, 65535, m.Port())
	assert.Empty(t, m.statusCallbacks)
}

func TestNewMonitor_Defaults(t *testing.T) {
	client, err := api.NewClient("http://localhost:8000")
	require.NoError(t, err)

	m, err := NewMonitor(client)
	require.NoError(t, err)
	assert.Equal(t, defaultPort, m.Port())
	assert.Equal(t, defaultMaxTracked, m.maxTracked)
	assert.Empty(t, m.Jobs())
}

func TestMonitor_TrackPendingThenSucceeded(t *testing.T) {
	var (
		mu      sync.Mutex
		updates []JobUpdate
	)
	m := newTestMonitor(t, newFakePianista(map[string]int{"job-1": 2}),
		WithStatusCallback(func(u JobUpdate) {
			mu.Lock()
			updates = append(updates, u)
			mu.Unlock()
		}),
	)

	require.NoError(t, m.Track(JobKindPlan, "job-1"))
	final := waitJobStatus(t, m, "job-1", StatusSucceeded)

	assert.Equal(t, JobKindPlan, final.Kind)
	assert.Equal(t, 2, final.Attempt)
	assert.JSONEq(t, `{"plan":"(move a b)","status":"SATISFIED"}`, string(final.Result))
	assert.NoError(t, final.Err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StatusPending, updates[0].Status)
	assert.Equal(t, 1, updates[0].Attempt)
	assert.Equal(t, "still working", updates[0].Message)
	assert.Equal(t, StatusPending, updates[1].Status)
	assert.Equal(t, StatusSucceeded, updates[2].Status)
	assert.Equal(t, "job-1", updates[2].JobID)

	// a finished job no longer holds a tracking slot
	m.mu.Lock()
	assert.Empty(t, m.jobs)
	m.mu.Unlock()
}

func TestMonitor_TrackNotFoundFails(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{}))

	require.NoError(t, m.Track(JobKindSolve, "missing"))
	final := waitJobStatus(t, m, "missing", StatusFailed)

	require.Error(t, final.Err)
	assert.Contains(t, final.Err.Error(), "job not found")
	assert.False(t, m.Cancel("missing"), "a failed job is no longer polled")
}

func TestMonitor_TrackRejectsBadInput(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{}))

	assert.ErrorIs(t, m.Track(JobKindPlan, ""), ErrEmptyJobID)
	assert.Error(t, m.Track(JobKind("render"), "job-1"))
	assert.Empty(t, m.Jobs())
}

func TestMonitor_MaxTracked(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{"a": -1, "b": -1}), WithMaxTracked(1))

	require.NoError(t, m.Track(JobKindPlan, "a"))

	err := m.Track(JobKindPlan, "b")
	assert.ErrorIs(t, err, ErrTooManyJobs)
	assert.True(t, errors.Is(err, server.ErrTrackingUnavailable))

	// re-tracking the same job restarts it without needing a new slot
	require.NoError(t, m.Track(JobKindPlan, "a"))

	require.True(t, m.Cancel("a"))
	require.NoError(t, m.Track(JobKindPlan, "b"))
}

func TestMonitor_Cancel(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{"slow": -1}))

	require.NoError(t, m.Track(JobKindPlan, "slow"))
	waitJobStatus(t, m, "slow", StatusPending)

	assert.True(t, m.Cancel("slow"))
	assert.False(t, m.Cancel("slow"))

	// no later transition may overwrite the cancellation
	time.Sleep(100 * time.Millisecond)
	u, ok := m.Job("slow")
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, u.Status)
	assert.False(t, m.Cancel("never-tracked"))
}

func TestMonitor_SubmitPlanTracksPendingJob(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{}))

	u, err := m.SubmitPlan(context.Background(), api.PlanRequest{
		Domain:  "(define (domain d))",
		Problem: "(define (problem p))",
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted-pddl", u.JobID)
	assert.Equal(t, JobKindPlan, u.Kind)

	waitJobStatus(t, m, "submitted-pddl", StatusSucceeded)
}

func TestMonitor_SubmitSolveSynchronousResult(t *testing.T) {
	var polled atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			polled.Store(true)
		}
		_, _ = w.Write([]byte(`{"status":"OPTIMAL_SOLUTION","solution":{"x":3}}`))
	})
	m := newTestMonitor(t, handler)

	u, err := m.SubmitSolve(context.Background(), api.SolveRequest{Model: "var 1..3: x; solve maximize x;"})
	require.NoError(t, err)

	assert.NotEmpty(t, u.JobID, "a synchronous result gets a local id")
	assert.Equal(t, StatusSucceeded, u.Status)
	assert.JSONEq(t, `{"status":"OPTIMAL_SOLUTION","solution":{"x":3}}`, string(u.Result))
	assert.False(t, polled.Load())

	stored, ok := m.Job(u.JobID)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, stored.Status)
}

func TestMonitor_SubmitValidationError(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{}))

	_, err := m.SubmitPlan(context.Background(), api.PlanRequest{Domain: "(define (domain d))"})
	assert.ErrorIs(t, err, api.ErrMissingField)
	assert.Empty(t, m.Jobs())
}

func TestMonitor_StatusCallbackPanicRecovered(t *testing.T) {
	var calls atomic.Int32
	m := newTestMonitor(t, newFakePianista(map[string]int{"job-1": 0}),
		WithStatusCallback(func(JobUpdate) { panic("boom") }),
		WithStatusCallback(func(JobUpdate) { calls.Add(1) }),
	)

	require.NoError(t, m.Track(JobKindPlan, "job-1"))
	waitJobStatus(t, m, "job-1", StatusSucceeded)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_CallbackGetsOwnResultCopy(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{"job-1": 0}),
		WithStatusCallback(func(u JobUpdate) {
			for i := range u.Result {
				u.Result[i] = 'x'
			}
		}),
	)

	require.NoError(t, m.Track(JobKindPlan, "job-1"))
	u := waitJobStatus(t, m, "job-1", StatusSucceeded)
	assert.True(t, json.Valid(u.Result))
}

func TestMonitor_RawResultWrapsNonJSON(t *testing.T) {
	assert.Nil(t, rawResult(nil))
	assert.JSONEq(t, `{"a":1}`, string(rawResult([]byte(`{"a":1}`))))
	assert.Equal(t, `"plain text plan"`, string(rawResult([]byte("plain text plan"))))
}

func TestMonitor_HandlerServesJobs(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{}))
	gateway := httptest.NewServer(m.Handler())
	defer gateway.Close()

	body := strings.NewReader(`{"model_str":"var 1..3: x; solve satisfy;"}`)
	resp, err := http.Post(gateway.URL+"/api/solves", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, []int{http.StatusAccepted, http.StatusOK}, resp.StatusCode)

	waitJobStatus(t, m, "submitted-minizinc", StatusSucceeded)

	resp, err = http.Get(gateway.URL + "/api/jobs/submitted-minizinc")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec struct {
		ID     string `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "submitted-minizinc", rec.ID)
	assert.Equal(t, "solve", rec.Kind)
	assert.Equal(t, "succeeded", rec.Status)
}

func TestMonitor_StartBlocksUntilCancelled(t *testing.T) {
	// use a high port to avoid conflicts
	m := newTestMonitor(t, newFakePianista(map[string]int{"slow": -1}), WithPort(19081))
	require.NoError(t, m.Track(JobKindPlan, "slow"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:19081/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	u, ok := m.Job("slow")
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, u.Status)
}

func TestMonitor_StartReturnsIfContextAlreadyCancelled(t *testing.T) {
	m := newTestMonitor(t, newFakePianista(map[string]int{}), WithPort(19082))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start() should return immediately with a cancelled context")
	}
}
