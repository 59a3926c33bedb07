package pianista

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPendingMessage = "Job is still processing..."

// Poller drives repeated status checks for one long-running remote job at a
// time.
//
// A Poller owns at most one active session. [Poller.StartPolling] begins a
// session and issues the first request immediately; every 202 response
// schedules the next request after an exponentially growing delay, until the
// job succeeds, fails, exhausts its attempt budget, or is cancelled.
//
// Requests within a session are strictly sequential: the next request is only
// scheduled after the previous response has been fully processed. Starting a
// new session cancels the previous one, and any response that arrives for a
// superseded or cancelled session is discarded without side effects.
//
// All methods are safe for concurrent use. Callbacks run on the poller's
// background goroutine, outside its lock, so they may call back into the
// Poller (for example to stop it).
type Poller struct {
	fetch     FetchFunc
	policy    BackoffPolicy
	enabled   bool
	logger    *slog.Logger
	onSuccess func([]byte)
	onError   func(error)
	onPending func(PendingStatus)
	onTick    func(int)

	// gate admits one fetch at a time across sessions.
	gate chan struct{}

	mu      sync.Mutex
	session *session
	state   State

	// completed remembers success payloads by job id, so a later 404 for a
	// job the server has already cleaned up is not reported as an error.
	completed map[string][]byte
}

// session is one attempt sequence for a single job id.
type session struct {
	id     string
	jobID  string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	finished  bool
	final     State
	transient int
	fireAt    time.Time
}

// NewPoller creates a [Poller] that uses fetch to query job status.
//
// Defaults: 5s initial interval, 30s max interval, x1.5 multiplier, 20
// attempts, enabled. Returns an error if fetch is nil or any option is
// invalid.
//
// Example:
//
//	p, err := pianista.NewPoller(pianista.PlanFetcher(client),
//	    pianista.WithOnSuccess(func(payload []byte) { fmt.Println(string(payload)) }),
//	    pianista.WithOnError(func(err error) { slog.Error("plan failed", "error", err) }),
//	)
func NewPoller(fetch FetchFunc, opts ...Option) (*Poller, error) {
	if fetch == nil {
		return nil, fmt.Errorf("fetch function cannot be nil")
	}

	cfg := defaultPollerConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.policy.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		fetch:     fetch,
		policy:    cfg.policy,
		enabled:   cfg.enabled,
		logger:    logger,
		onSuccess: cfg.onSuccess,
		onError:   cfg.onError,
		onPending: cfg.onPending,
		onTick:    cfg.onTick,
		gate:      make(chan struct{}, 1),
		state:     idleState(cfg.policy),
		completed: make(map[string][]byte),
	}, nil
}

// Policy returns the poller's retry schedule.
func (p *Poller) Policy() BackoffPolicy {
	return p.policy
}

// StartPolling begins a new session for jobID.
//
// Any previous session is cancelled first: its scheduled retry never fires
// and its in-flight response, if any, is discarded. The attempt counter and
// interval are reset and the first request is issued immediately in the
// background.
//
// Returns [ErrEmptyJobID] or [ErrPollingDisabled] without side effects.
func (p *Poller) StartPolling(jobID string) error {
	if jobID == "" {
		return ErrEmptyJobID
	}
	if !p.enabled {
		return ErrPollingDisabled
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     uuid.NewString(),
		jobID:  jobID,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if prev := p.session; prev != nil && !prev.finished {
		prevState := p.state
		prevState.Status = StatusCancelled
		prevState.Loading = false
		prevState.Polling = false
		prevState.NextPollIn = 0
		p.finishLocked(prev, prevState)
		p.logger.Debug("poll session superseded", "job_id", prev.jobID, "session_id", prev.id)
	}
	p.session = s
	p.state = State{
		JobID:           jobID,
		Status:          StatusFetching,
		MaxAttempts:     p.policy.MaxAttempts,
		CurrentInterval: p.policy.Initial,
		Loading:         true,
	}
	p.mu.Unlock()

	p.logger.Debug("poll session started", "job_id", jobID, "session_id", s.id)

	go p.run(s)
	return nil
}

// StopPolling cancels the active session, if any.
//
// The pending retry is cancelled before StopPolling returns, and the loading
// and polling flags are cleared. Result and Err are left untouched.
// Calling StopPolling with no active session is a no-op.
func (p *Poller) StopPolling() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
}

// stopLocked cancels the active session, if any.
func (p *Poller) stopLocked() {
	s := p.session
	if s == nil || s.finished {
		return
	}

	p.state.Status = StatusCancelled
	p.state.Loading = false
	p.state.Polling = false
	p.state.NextPollIn = 0
	p.finishLocked(s, p.state)

	p.logger.Debug("poll session stopped", "job_id", s.jobID, "attempt", p.state.Attempt)
}

// Reset stops polling and returns the poller to its idle state, clearing
// the result, error and attempt count.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.session = nil
	p.state = idleState(p.policy)
}

// Snapshot returns the current state. NextPollIn is derived from the
// scheduled fire time, so it always agrees with the real retry timer.
func (p *Poller) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state
	if st.Status == StatusPending && p.session != nil {
		st.NextPollIn = ceilSeconds(time.Until(p.session.fireAt))
	}
	st.Result = copyBytes(st.Result)
	return st
}

// Wait blocks until the current session ends and returns its final state.
//
// If the session is superseded by another StartPolling call, Wait returns
// the cancelled state of the session it was waiting on. If no session was
// ever started, Wait returns the current state immediately. The error is
// non-nil only when ctx ends first.
func (p *Poller) Wait(ctx context.Context) (State, error) {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()

	if s == nil {
		return p.Snapshot(), nil
	}

	select {
	case <-s.done:
		p.mu.Lock()
		final := s.final
		p.mu.Unlock()
		final.Result = copyBytes(final.Result)
		return final, nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

// run is the session loop: fetch, interpret, wait, repeat.
func (p *Poller) run(s *session) {
	for {
		resp, fetched, err := p.doFetch(s)
		if !fetched {
			return
		}

		delay, again := p.handle(s, resp, err)
		if !again {
			return
		}

		if !p.sleep(s, delay) {
			return
		}

		p.mu.Lock()
		if !p.liveLocked(s) {
			p.mu.Unlock()
			return
		}
		p.state.Status = StatusFetching
		p.state.NextPollIn = 0
		p.mu.Unlock()
	}
}

// doFetch performs one request once the fetch gate is free.
// fetched is false when the session was cancelled before the request started.
func (p *Poller) doFetch(s *session) (resp Response, fetched bool, err error) {
	select {
	case p.gate <- struct{}{}:
	case <-s.ctx.Done():
		return Response{}, false, nil
	}
	defer func() { <-p.gate }()

	if s.ctx.Err() != nil {
		return Response{}, false, nil
	}

	resp, err = p.safeFetch(s)
	return resp, true, err
}

// safeFetch calls the fetch function with panic recovery.
func (p *Poller) safeFetch(s *session) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("fetch panic",
				"correlation_id", correlationID,
				"job_id", s.jobID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("fetch panic (correlation_id: %s)", correlationID)
		}
	}()
	return p.fetch(s.ctx, s.jobID)
}

// handle applies one response to the session state and reports whether
// another request should follow after delay.
func (p *Poller) handle(s *session, resp Response, fetchErr error) (delay time.Duration, again bool) {
	p.mu.Lock()
	if !p.liveLocked(s) {
		p.mu.Unlock()
		p.logger.Debug("discarding stale response", "job_id", s.jobID, "session_id", s.id)
		return 0, false
	}

	var notify func()
	switch {
	case fetchErr != nil:
		notify = p.failLocked(s, fetchErr)

	case resp.StatusCode == 200 || resp.StatusCode == 201:
		notify = p.succeedLocked(s, resp.Data)

	case resp.StatusCode == 202:
		if p.state.Attempt >= p.policy.MaxAttempts {
			notify = p.failLocked(s, &TimeoutError{Attempts: p.policy.MaxAttempts})
			break
		}
		msg := detailFromBody(resp.Data)
		if msg == "" {
			msg = defaultPendingMessage
		}
		delay, notify = p.pendingLocked(s, msg)
		again = true

	case resp.StatusCode == 500:
		s.transient++
		switch {
		case s.transient > min(transientCeiling, p.policy.MaxAttempts):
			notify = p.failLocked(s, &StatusError{
				Code:   resp.StatusCode,
				Detail: detailFromBody(resp.Data),
				Err:    ErrTransientExhausted,
			})
		case p.state.Attempt >= p.policy.MaxAttempts:
			notify = p.failLocked(s, &TimeoutError{Attempts: p.policy.MaxAttempts})
		default:
			delay, notify = p.pendingLocked(s, fmt.Sprintf("Server error (HTTP %d), retrying", resp.StatusCode))
			again = true
		}

	case resp.StatusCode == 404:
		if payload, ok := p.completed[s.jobID]; ok {
			p.logger.Debug("job already cleaned up after completion", "job_id", s.jobID)
			notify = p.succeedLocked(s, payload)
			break
		}
		notify = p.failLocked(s, &StatusError{
			Code:   resp.StatusCode,
			Detail: detailFromBody(resp.Data),
			Err:    ErrNotFound,
		})

	default:
		notify = p.failLocked(s, &StatusError{
			Code:   resp.StatusCode,
			Detail: detailFromBody(resp.Data),
		})
	}
	p.mu.Unlock()

	notify()
	return delay, again
}

// pendingLocked records a retryable response and schedules the next attempt.
func (p *Poller) pendingLocked(s *session, message string) (time.Duration, func()) {
	p.state.Attempt++
	delay := p.policy.Interval(p.state.Attempt)

	p.state.Status = StatusPending
	p.state.CurrentInterval = delay
	p.state.NextPollIn = ceilSeconds(delay)
	p.state.Loading = false
	p.state.Polling = true
	s.fireAt = time.Now().Add(delay)

	status := PendingStatus{
		Attempt:     p.state.Attempt,
		MaxAttempts: p.policy.MaxAttempts,
		NextPollIn:  ceilSeconds(delay),
		Message:     message,
	}

	p.logger.Debug("job pending",
		"job_id", s.jobID,
		"attempt", status.Attempt,
		"max_attempts", status.MaxAttempts,
		"next_poll_in", delay.String(),
	)

	return delay, func() {
		if p.onPending == nil {
			return
		}
		// a stop can land between unlock and notify
		p.mu.Lock()
		live := p.liveLocked(s)
		p.mu.Unlock()
		if live {
			p.invokeSafe("pending", s.jobID, func() { p.onPending(status) })
		}
	}
}

// succeedLocked moves the session to StatusSucceeded.
func (p *Poller) succeedLocked(s *session, payload []byte) func() {
	payload = copyBytes(payload)
	p.completed[s.jobID] = payload

	p.state.Status = StatusSucceeded
	p.state.Result = payload
	p.state.Err = nil
	p.state.Loading = false
	p.state.Polling = false
	p.state.NextPollIn = 0
	p.finishLocked(s, p.state)

	p.logger.Info("job completed", "job_id", s.jobID, "attempt", p.state.Attempt)

	return func() {
		if p.onSuccess != nil {
			p.invokeSafe("success", s.jobID, func() { p.onSuccess(copyBytes(payload)) })
		}
	}
}

// failLocked moves the session to StatusFailed.
func (p *Poller) failLocked(s *session, err error) func() {
	p.state.Status = StatusFailed
	p.state.Err = err
	p.state.Loading = false
	p.state.Polling = false
	p.state.NextPollIn = 0
	p.finishLocked(s, p.state)

	attrs := []any{"job_id", s.jobID, "attempt", p.state.Attempt, "error", err.Error()}
	if se, ok := err.(*StatusError); ok {
		attrs = append(attrs, "status_code", se.Code, "status_text", statusText(se.Code))
	}
	p.logger.Warn("job polling failed", attrs...)

	return func() {
		if p.onError != nil {
			p.invokeSafe("error", s.jobID, func() { p.onError(err) })
		}
	}
}

// finishLocked ends a session exactly once.
func (p *Poller) finishLocked(s *session, final State) {
	if s.finished {
		return
	}
	s.finished = true
	s.final = final
	s.cancel()
	close(s.done)
}

// liveLocked reports whether s is still the poller's active, unfinished session.
func (p *Poller) liveLocked(s *session) bool {
	return p.session == s && !s.finished && s.ctx.Err() == nil
}

// sleep waits for the retry delay, firing the countdown callback once per
// second from the same loop so the countdown cannot drift from the timer.
// Returns false if the session was cancelled while waiting.
func (p *Poller) sleep(s *session, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	var tick <-chan time.Time
	if p.onTick != nil {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-tick:
			p.mu.Lock()
			live := p.liveLocked(s)
			left := ceilSeconds(time.Until(s.fireAt))
			p.mu.Unlock()
			if live && left > 0 {
				p.invokeSafe("tick", s.jobID, func() { p.onTick(left) })
			}
		}
	}
}

// invokeSafe calls a user callback with panic recovery.
// Panics are logged with a correlation id but do not propagate.
func (p *Poller) invokeSafe(kind, jobID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll callback panicked",
				"correlation_id", uuid.NewString(),
				"callback", kind,
				"job_id", jobID,
				"panic", r,
			)
		}
	}()
	fn()
}

func idleState(policy BackoffPolicy) State {
	return State{
		Status:          StatusIdle,
		MaxAttempts:     policy.MaxAttempts,
		CurrentInterval: policy.Initial,
	}
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
