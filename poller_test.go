package pianista

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastPolicy keeps retry delays in the tens of milliseconds.
func fastPolicy(maxAttempts int) BackoffPolicy {
	return BackoffPolicy{
		Initial:     10 * time.Millisecond,
		Max:         40 * time.Millisecond,
		Multiplier:  1.5,
		MaxAttempts: maxAttempts,
	}
}

// scriptedFetch replays responses in order; the last one repeats forever.
type scriptedFetch struct {
	mu     sync.Mutex
	script []Response
	calls  []string

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newScriptedFetch(script ...Response) *scriptedFetch {
	return &scriptedFetch{script: script}
}

func (f *scriptedFetch) Fetch(_ context.Context, jobID string) (Response, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, jobID)
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], nil
}

func (f *scriptedFetch) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recorder captures callback invocations.
type recorder struct {
	mu        sync.Mutex
	pending   []PendingStatus
	successes [][]byte
	errs      []error

	terminal chan struct{}
	once     sync.Once
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{})}
}

func (r *recorder) options() []Option {
	return []Option{
		WithOnPending(func(s PendingStatus) {
			r.mu.Lock()
			r.pending = append(r.pending, s)
			r.mu.Unlock()
		}),
		WithOnSuccess(func(payload []byte) {
			r.mu.Lock()
			r.successes = append(r.successes, payload)
			r.mu.Unlock()
			r.once.Do(func() { close(r.terminal) })
		}),
		WithOnError(func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.once.Do(func() { close(r.terminal) })
		}),
	}
}

func (r *recorder) waitTerminal(t *testing.T) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for terminal callback")
	}
}

func (r *recorder) snapshot() (pending []PendingStatus, successes [][]byte, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PendingStatus(nil), r.pending...),
		append([][]byte(nil), r.successes...),
		append([]error(nil), r.errs...)
}

func newTestPoller(t *testing.T, fetch FetchFunc, opts ...Option) *Poller {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	p, err := NewPoller(fetch, opts...)
	require.NoError(t, err)
	t.Cleanup(p.StopPolling)
	return p
}

func waitFinal(t *testing.T, p *Poller) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	st, err := p.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestPoller_PendingThenSuccess(t *testing.T) {
	fetch := newScriptedFetch(
		Response{StatusCode: 202, Data: []byte(`{"detail":"processing"}`)},
		Response{StatusCode: 202, Data: []byte(`{"detail":"processing"}`)},
		Response{StatusCode: 200, Data: []byte(`{"plan":"(move a b)"}`)},
	)
	rec := newRecorder()
	p := newTestPoller(t, fetch.Fetch, append(rec.options(), WithBackoffPolicy(fastPolicy(5)))...)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)
	rec.waitTerminal(t)

	pending, successes, errs := rec.snapshot()
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempt)
	assert.Equal(t, 2, pending[1].Attempt)
	assert.Equal(t, "processing", pending[0].Message)
	assert.Equal(t, 5, pending[0].MaxAttempts)

	require.Len(t, successes, 1)
	assert.JSONEq(t, `{"plan":"(move a b)"}`, string(successes[0]))
	assert.Empty(t, errs)

	assert.Equal(t, StatusSucceeded, st.Status)
	assert.False(t, st.Polling)
	assert.False(t, st.Loading)
	assert.False(t, st.IsActive())
	assert.Equal(t, 2, st.Attempt)
	assert.Equal(t, 3, fetch.Count())
	assert.Equal(t, int32(1), fetch.maxInflight.Load())

	snap := p.Snapshot()
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Nil(t, snap.Err)
}

func TestPoller_AttemptCeiling(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 202})
	rec := newRecorder()
	policy := fastPolicy(3)
	p := newTestPoller(t, fetch.Fetch, append(rec.options(), WithBackoffPolicy(policy))...)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)
	rec.waitTerminal(t)

	pending, successes, errs := rec.snapshot()
	assert.Len(t, pending, 3)
	assert.Empty(t, successes)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "3 attempts")
	assert.ErrorIs(t, errs[0], ErrTimeout)

	var te *TimeoutError
	require.ErrorAs(t, st.Err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.True(t, st.HasTimedOut())
	assert.Equal(t, StatusFailed, st.Status)
	assert.False(t, st.Polling)

	calls := fetch.Count()
	time.Sleep(3 * policy.Max)
	assert.Equal(t, calls, fetch.Count(), "no fetch after the attempt ceiling")
	assert.Equal(t, 4, calls)
}

func TestPoller_TransientServerErrors(t *testing.T) {
	fetch := newScriptedFetch(
		Response{StatusCode: 500},
		Response{StatusCode: 500},
		Response{StatusCode: 200, Data: []byte(`{"plan":"p"}`)},
	)
	rec := newRecorder()
	p := newTestPoller(t, fetch.Fetch, append(rec.options(), WithBackoffPolicy(fastPolicy(5)))...)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)
	rec.waitTerminal(t)

	pending, successes, errs := rec.snapshot()
	assert.Empty(t, errs, "transient errors must not surface")
	require.Len(t, successes, 1)
	require.Len(t, pending, 2)
	assert.Contains(t, pending[0].Message, "500")
	assert.Equal(t, StatusSucceeded, st.Status)
	assert.Equal(t, 2, st.Attempt, "500 retries count against the attempt ceiling")
}

func TestPoller_TransientCeiling(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 500, Data: []byte(`{"detail":"db down"}`)})
	rec := newRecorder()
	p := newTestPoller(t, fetch.Fetch, append(rec.options(), WithBackoffPolicy(fastPolicy(20)))...)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)
	rec.waitTerminal(t)

	pending, _, errs := rec.snapshot()
	assert.Len(t, pending, transientCeiling)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrTransientExhausted)
	assert.Contains(t, errs[0].Error(), "db down")

	var se *StatusError
	require.ErrorAs(t, st.Err, &se)
	assert.Equal(t, 500, se.Code)
	assert.Equal(t, transientCeiling+1, fetch.Count())
}

func TestPoller_TransientCeilingBoundedByMaxAttempts(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 500})
	rec := newRecorder()
	p := newTestPoller(t, fetch.Fetch, append(rec.options(), WithBackoffPolicy(fastPolicy(2)))...)

	require.NoError(t, p.StartPolling("job-1"))
	waitFinal(t, p)
	rec.waitTerminal(t)

	pending, _, errs := rec.snapshot()
	assert.Len(t, pending, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrTransientExhausted)
	assert.Equal(t, 3, fetch.Count())
}

func TestPoller_SupersededSessionIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls []string
	)
	var inflight, maxInflight atomic.Int32

	fetch := func(ctx context.Context, jobID string) (Response, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		if n > maxInflight.Load() {
			maxInflight.Store(n)
		}

		mu.Lock()
		calls = append(calls, jobID)
		mu.Unlock()

		if jobID == "job-1" {
			close(started)
			<-release // ignores ctx so the stale response arrives late
			return Response{StatusCode: 200, Data: []byte(`{"job":"1"}`)}, nil
		}
		return Response{StatusCode: 200, Data: []byte(`{"job":"2"}`)}, nil
	}

	rec := newRecorder()
	p := newTestPoller(t, fetch, append(rec.options(), WithBackoffPolicy(fastPolicy(5)))...)

	require.NoError(t, p.StartPolling("job-1"))
	<-started
	require.NoError(t, p.StartPolling("job-2"))

	snap := p.Snapshot()
	assert.Equal(t, "job-2", snap.JobID)
	assert.Equal(t, 0, snap.Attempt)
	assert.True(t, snap.Loading)

	close(release)
	st := waitFinal(t, p)
	rec.waitTerminal(t)

	// give a stray job-1 callback time to show up if the guard were broken
	time.Sleep(20 * time.Millisecond)

	_, successes, errs := rec.snapshot()
	require.Len(t, successes, 1)
	assert.JSONEq(t, `{"job":"2"}`, string(successes[0]))
	assert.Empty(t, errs)

	assert.Equal(t, "job-2", st.JobID)
	assert.JSONEq(t, `{"job":"2"}`, string(st.Result))
	assert.Equal(t, int32(1), maxInflight.Load(), "at most one fetch in flight")

	mu.Lock()
	assert.Equal(t, []string{"job-1", "job-2"}, calls)
	mu.Unlock()
}

func TestPoller_StopCancelsScheduledRetry(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 202})
	pendingCh := make(chan struct{}, 1)
	var terminal atomic.Int32

	p := newTestPoller(t, fetch.Fetch,
		WithBackoffPolicy(BackoffPolicy{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 1.5, MaxAttempts: 5}),
		WithOnPending(func(PendingStatus) { pendingCh <- struct{}{} }),
		WithOnSuccess(func([]byte) { terminal.Add(1) }),
		WithOnError(func(error) { terminal.Add(1) }),
	)

	require.NoError(t, p.StartPolling("job-1"))
	select {
	case <-pendingCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for pending callback")
	}

	p.StopPolling()

	snap := p.Snapshot()
	assert.False(t, snap.Polling)
	assert.False(t, snap.Loading)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, 0, snap.NextPollIn)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, fetch.Count(), "scheduled fetch must never fire")
	assert.Equal(t, int32(0), terminal.Load())

	st := waitFinal(t, p)
	assert.Equal(t, StatusCancelled, st.Status)
}

func TestPoller_StartPollingRejectsBadInput(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 200})

	p := newTestPoller(t, fetch.Fetch)
	assert.ErrorIs(t, p.StartPolling(""), ErrEmptyJobID)

	disabled := newTestPoller(t, fetch.Fetch, WithEnabled(false))
	assert.ErrorIs(t, disabled.StartPolling("job-1"), ErrPollingDisabled)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, fetch.Count())
	assert.Equal(t, StatusIdle, p.Snapshot().Status)
	assert.Equal(t, StatusIdle, disabled.Snapshot().Status)
}

func TestPoller_NotFound(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 404, Data: []byte(`{"detail":"Job not found"}`)})
	rec := newRecorder()
	p := newTestPoller(t, fetch.Fetch, rec.options()...)

	require.NoError(t, p.StartPolling("job-404"))
	st := waitFinal(t, p)
	rec.waitTerminal(t)

	assert.Equal(t, StatusFailed, st.Status)
	assert.ErrorIs(t, st.Err, ErrNotFound)

	var se *StatusError
	require.ErrorAs(t, st.Err, &se)
	assert.Equal(t, 404, se.Code)
	assert.Equal(t, "Job not found", se.Detail)
}

func TestPoller_NotFoundAfterCompletionIsBenign(t *testing.T) {
	fetch := newScriptedFetch(
		Response{StatusCode: 200, Data: []byte(`{"plan":"done"}`)},
		Response{StatusCode: 404},
	)
	p := newTestPoller(t, fetch.Fetch)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)
	require.Equal(t, StatusSucceeded, st.Status)

	require.NoError(t, p.StartPolling("job-1"))
	st = waitFinal(t, p)
	assert.Equal(t, StatusSucceeded, st.Status)
	assert.Nil(t, st.Err)
	assert.JSONEq(t, `{"plan":"done"}`, string(st.Result))
	assert.Equal(t, 2, fetch.Count())
}

func TestPoller_UnexpectedStatus(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 403, Data: []byte(`{"message":"forbidden"}`)})
	p := newTestPoller(t, fetch.Fetch)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)

	var se *StatusError
	require.ErrorAs(t, st.Err, &se)
	assert.Equal(t, 403, se.Code)
	assert.Equal(t, "unexpected status code: 403: forbidden", se.Error())
	assert.Equal(t, 1, fetch.Count())
}

func TestPoller_FetchError(t *testing.T) {
	errNetwork := errors.New("connection refused")
	var calls atomic.Int32
	p := newTestPoller(t, func(context.Context, string) (Response, error) {
		calls.Add(1)
		return Response{}, errNetwork
	})

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)

	assert.Equal(t, StatusFailed, st.Status)
	assert.ErrorIs(t, st.Err, errNetwork)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoller_FetchPanicIsRecovered(t *testing.T) {
	p := newTestPoller(t, func(context.Context, string) (Response, error) {
		panic("boom")
	})

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)

	assert.Equal(t, StatusFailed, st.Status)
	assert.ErrorContains(t, st.Err, "fetch panic")
}

func TestPoller_CallbackPanicDoesNotStopPolling(t *testing.T) {
	fetch := newScriptedFetch(
		Response{StatusCode: 202},
		Response{StatusCode: 200, Data: []byte(`{}`)},
	)
	done := make(chan struct{})
	p := newTestPoller(t, fetch.Fetch,
		WithBackoffPolicy(fastPolicy(5)),
		WithOnPending(func(PendingStatus) { panic("pending callback bug") }),
		WithOnSuccess(func([]byte) { close(done) }),
	)

	require.NoError(t, p.StartPolling("job-1"))
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("polling stopped after a callback panic")
	}
}

func TestPoller_RestartResetsCounters(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 202})
	pendingCh := make(chan PendingStatus, 64)
	p := newTestPoller(t, fetch.Fetch,
		WithBackoffPolicy(fastPolicy(50)),
		WithOnPending(func(s PendingStatus) {
			select {
			case pendingCh <- s:
			default:
			}
		}),
	)

	require.NoError(t, p.StartPolling("job-1"))
	for i := 0; i < 3; i++ {
		<-pendingCh
	}

	require.NoError(t, p.StartPolling("job-2"))
	snap := p.Snapshot()
	assert.Equal(t, "job-2", snap.JobID)
	assert.LessOrEqual(t, snap.Attempt, 1, "the new session may already have seen its first response")
	assert.Equal(t, 10*time.Millisecond, snap.CurrentInterval)

	// drain pending callbacks until job-2 reports its first attempt
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-pendingCh:
			if s.Attempt == 1 {
				return
			}
		case <-deadline:
			t.Fatal("job-2 never reported attempt 1")
		}
	}
}

func TestPoller_Reset(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 200, Data: []byte(`{"plan":"p"}`)})
	p := newTestPoller(t, fetch.Fetch)

	require.NoError(t, p.StartPolling("job-1"))
	waitFinal(t, p)

	p.Reset()
	snap := p.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.JobID)
	assert.Nil(t, snap.Result)
	assert.Nil(t, snap.Err)
	assert.Equal(t, 0, snap.Attempt)
	assert.Equal(t, p.Policy().MaxAttempts, snap.MaxAttempts)
}

func TestPoller_ResetRacingStartLeavesNoOrphanSession(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 200, Data: []byte(`{}`)})
	p := newTestPoller(t, fetch.Fetch)

	for i := 0; i < 200; i++ {
		require.NoError(t, p.StartPolling("job-1"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Reset()
		}()
		go func() {
			defer wg.Done()
			_ = p.StartPolling("job-2")

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := p.Wait(ctx)
			assert.NoError(t, err, "session started around Reset never finished")
		}()
		wg.Wait()
	}
}

func TestPoller_PendingCallbackDroppedAfterStop(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context, jobID string) (Response, error) {
		<-release
		return Response{StatusCode: 202}, nil
	}

	var pendingCalls atomic.Int32
	p := newTestPoller(t, fetch, WithOnPending(func(PendingStatus) { pendingCalls.Add(1) }))
	require.NoError(t, p.StartPolling("job-1"))

	// stop between recording a pending response and notifying it
	p.mu.Lock()
	_, notify := p.pendingLocked(p.session, "still running")
	p.mu.Unlock()
	p.StopPolling()
	notify()
	close(release)

	assert.Equal(t, int32(0), pendingCalls.Load())
	assert.Equal(t, StatusCancelled, p.Snapshot().Status)
}

func TestPoller_StopPollingIsIdempotent(t *testing.T) {
	p := newTestPoller(t, newScriptedFetch(Response{StatusCode: 202}).Fetch)

	p.StopPolling()
	assert.Equal(t, StatusIdle, p.Snapshot().Status, "stop without a session is a no-op")

	require.NoError(t, p.StartPolling("job-1"))
	p.StopPolling()
	p.StopPolling()
	assert.Equal(t, StatusCancelled, p.Snapshot().Status)
}

func TestPoller_SnapshotCountdown(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 202})
	pendingCh := make(chan PendingStatus, 1)
	p := newTestPoller(t, fetch.Fetch,
		WithBackoffPolicy(BackoffPolicy{Initial: 3 * time.Second, Max: 10 * time.Second, Multiplier: 2, MaxAttempts: 3}),
		WithOnPending(func(s PendingStatus) { pendingCh <- s }),
	)

	require.NoError(t, p.StartPolling("job-1"))
	status := <-pendingCh
	assert.Equal(t, 3, status.NextPollIn)

	snap := p.Snapshot()
	assert.Equal(t, StatusPending, snap.Status)
	assert.True(t, snap.Polling)
	assert.InDelta(t, 3, snap.NextPollIn, 1)
	assert.Equal(t, 3*time.Second, snap.CurrentInterval)
}

func TestPoller_TickCallback(t *testing.T) {
	if testing.Short() {
		t.Skip("countdown needs a retry delay longer than one second")
	}

	fetch := newScriptedFetch(
		Response{StatusCode: 202},
		Response{StatusCode: 200, Data: []byte(`{}`)},
	)
	var (
		mu    sync.Mutex
		ticks []int
	)
	p := newTestPoller(t, fetch.Fetch,
		WithBackoffPolicy(BackoffPolicy{Initial: 1500 * time.Millisecond, Max: 2 * time.Second, Multiplier: 1.5, MaxAttempts: 3}),
		WithOnTick(func(left int) {
			mu.Lock()
			ticks = append(ticks, left)
			mu.Unlock()
		}),
	)

	require.NoError(t, p.StartPolling("job-1"))
	st := waitFinal(t, p)
	require.Equal(t, StatusSucceeded, st.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1}, ticks)
}

func TestPoller_WaitRespectsContext(t *testing.T) {
	p := newTestPoller(t, newScriptedFetch(Response{StatusCode: 202}).Fetch,
		WithBackoffPolicy(BackoffPolicy{Initial: time.Second, Max: time.Second, Multiplier: 1, MaxAttempts: 3}),
	)
	require.NoError(t, p.StartPolling("job-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	st, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "job-1", st.JobID)
}

func TestPoller_WaitWithoutSession(t *testing.T) {
	p := newTestPoller(t, newScriptedFetch(Response{StatusCode: 200}).Fetch)

	st, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, st.Status)
}

func TestNewPoller_Validation(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 200}).Fetch

	_, err := NewPoller(nil)
	assert.Error(t, err)

	tests := []struct {
		name string
		opt  Option
	}{
		{"zero initial", WithInitialInterval(0)},
		{"negative max", WithMaxInterval(-time.Second)},
		{"zero attempts", WithMaxAttempts(0)},
		{"shrinking multiplier", WithBackoffMultiplier(0.5)},
		{"nil logger", WithLogger(nil)},
		{"bad policy", WithBackoffPolicy(BackoffPolicy{Initial: time.Second, Max: time.Millisecond, Multiplier: 2, MaxAttempts: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoller(fetch, tt.opt)
			assert.Error(t, err)
		})
	}

	// max below initial is only detectable once all options are applied
	_, err = NewPoller(fetch, WithInitialInterval(time.Minute), WithMaxInterval(time.Second))
	assert.Error(t, err)
}

func TestNewPoller_InitialIntervalRaisesMax(t *testing.T) {
	p, err := NewPoller(newScriptedFetch(Response{StatusCode: 200}).Fetch, WithInitialInterval(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, p.Policy().Initial)
	assert.Equal(t, time.Minute, p.Policy().Max)
	assert.Equal(t, time.Minute, p.Policy().Interval(3))
}

func TestNewPoller_Defaults(t *testing.T) {
	p, err := NewPoller(newScriptedFetch(Response{StatusCode: 200}).Fetch)
	require.NoError(t, err)

	assert.Equal(t, BackoffPolicy{
		Initial:     5 * time.Second,
		Max:         30 * time.Second,
		Multiplier:  1.5,
		MaxAttempts: 20,
	}, p.Policy())

	snap := p.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, 20, snap.MaxAttempts)
	assert.Equal(t, 5*time.Second, snap.CurrentInterval)
}

func TestNewPoller_NilCallbacksIgnored(t *testing.T) {
	fetch := newScriptedFetch(Response{StatusCode: 200, Data: []byte(`{}`)})
	p := newTestPoller(t, fetch.Fetch,
		WithOnSuccess(nil),
		WithOnError(nil),
		WithOnPending(nil),
		WithOnTick(nil),
	)

	require.NoError(t, p.StartPolling("job-1"))
	assert.Equal(t, StatusSucceeded, waitFinal(t, p).Status)
}
