package pianista

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pianista-dev/pianista/api"
	"github.com/pianista-dev/pianista/dashboard"
	"github.com/pianista-dev/pianista/internal/server"
	"github.com/pianista-dev/pianista/internal/store"
)

// ErrTooManyJobs is returned when the monitor is already polling as many
// jobs as [WithMaxTracked] allows.
var ErrTooManyJobs = fmt.Errorf("%w: too many jobs in progress", server.ErrTrackingUnavailable)

// JobKind identifies which Pianista endpoint a job belongs to.
type JobKind string

const (
	// JobKindPlan is a PDDL planning job (/solve/pddl).
	JobKindPlan JobKind = "plan"

	// JobKindSolve is a MiniZinc job (/solve/minizinc).
	JobKindSolve JobKind = "solve"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	return k == JobKindPlan || k == JobKindSolve
}

// JobUpdate is passed to status callbacks on every job transition.
type JobUpdate struct {
	JobID       string
	Kind        JobKind
	Status      Status
	Attempt     int
	MaxAttempts int
	NextPollIn  int
	Message     string

	// Result is the raw success payload. Set only when Status is StatusSucceeded.
	Result []byte

	// Err is set only when Status is StatusFailed.
	Err error

	UpdatedAt time.Time
}

// Monitor submits jobs to Pianista, polls each one with its own [Poller]
// and publishes every transition to a local HTTP gateway with a live
// dashboard.
//
// The typical lifecycle is:
//
//	client, _ := api.NewClient("https://api.pianista.example")
//	m, _ := pianista.NewMonitor(client, pianista.WithPort(9090))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// Jobs can be tracked before Start is called; they are polled immediately
// and show up on the dashboard once it is served.
type Monitor struct {
	client          *api.Client
	title           string
	port            int
	maxTracked      int
	logger          *slog.Logger
	pollerOpts      []Option
	kindOpts        map[JobKind][]Option
	statusCallbacks []func(JobUpdate)

	store *store.MemoryStore

	mu   sync.Mutex
	jobs map[string]*trackedJob
}

// trackedJob is one job the monitor is still polling.
type trackedJob struct {
	id          string
	kind        JobKind
	poller      *Poller
	submittedAt time.Time
	stopped     bool
}

// NewMonitor creates a [Monitor] for client.
//
// Defaults:
//   - Port: 8080
//   - Max tracked jobs: 100
//   - Plan jobs use [PlanPolicy], solve jobs [SolvePolicy]
func NewMonitor(client *api.Client, opts ...MonitorOption) (*Monitor, error) {
	if client == nil {
		return nil, errors.New("api client cannot be nil")
	}

	cfg := &monitorConfig{
		port:       defaultPort,
		maxTracked: defaultMaxTracked,
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

	kindOpts := map[JobKind][]Option{
		JobKindPlan:  cfg.planOpts,
		JobKindSolve: cfg.solveOpts,
	}

	return &Monitor{
		client:          client,
		title:           cfg.title,
		port:            cfg.port,
		maxTracked:      cfg.maxTracked,
		logger:          logger,
		pollerOpts:      cfg.pollerOpts,
		kindOpts:        kindOpts,
		statusCallbacks: cfg.statusCallbacks,
		store:           store.NewMemoryStore(),
		jobs:            make(map[string]*trackedJob),
	}, nil
}

// Port returns the configured HTTP port for the gateway.
func (m *Monitor) Port() int {
	return m.port
}

// Track starts polling an already submitted job.
//
// Tracking a job id that is already being polled restarts its session.
// Returns [ErrTooManyJobs] when the tracking limit is reached.
func (m *Monitor) Track(kind JobKind, jobID string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown job kind %q", kind)
	}
	if jobID == "" {
		return ErrEmptyJobID
	}

	job := &trackedJob{id: jobID, kind: kind, submittedAt: time.Now()}
	p, err := m.newJobPoller(job)
	if err != nil {
		return err
	}
	job.poller = p

	m.mu.Lock()
	prev := m.jobs[jobID]
	if prev == nil && len(m.jobs) >= m.maxTracked {
		m.mu.Unlock()
		return ErrTooManyJobs
	}
	if prev != nil {
		prev.stopped = true
		job.submittedAt = prev.submittedAt
	}
	m.jobs[jobID] = job
	// the fetching record goes out before the first request so a fast
	// terminal transition cannot be overwritten by it
	m.store.Update(m.recordLocked(job, JobUpdate{
		Status:      StatusFetching,
		MaxAttempts: p.Policy().MaxAttempts,
	}))
	m.mu.Unlock()

	if prev != nil {
		prev.poller.StopPolling()
	}

	if err := p.StartPolling(jobID); err != nil {
		m.mu.Lock()
		if m.jobs[jobID] == job {
			delete(m.jobs, jobID)
		}
		m.mu.Unlock()
		m.store.Delete(jobID)
		return err
	}

	m.logger.Info("job tracked", "job_id", jobID, "kind", string(kind))
	return nil
}

// Cancel stops polling jobID and marks it cancelled.
// Returns false if the job is not currently being polled.
func (m *Monitor) Cancel(jobID string) bool {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	job.stopped = true
	delete(m.jobs, jobID)
	m.mu.Unlock()

	job.poller.StopPolling()
	st := job.poller.Snapshot()
	m.emit(job, JobUpdate{
		Status:      StatusCancelled,
		Attempt:     st.Attempt,
		MaxAttempts: st.MaxAttempts,
	}, true)

	m.logger.Info("job cancelled", "job_id", jobID)
	return true
}

// SubmitPlan submits a planning job and tracks it.
//
// If the API answers synchronously the result is recorded as succeeded
// straight away and no poller is started.
func (m *Monitor) SubmitPlan(ctx context.Context, req api.PlanRequest) (JobUpdate, error) {
	if err := m.checkCapacity(); err != nil {
		return JobUpdate{}, err
	}
	sub, err := m.client.SubmitPlan(ctx, req)
	if err != nil {
		return JobUpdate{}, err
	}
	return m.accept(JobKindPlan, sub)
}

// SubmitSolve submits a MiniZinc job and tracks it. See [Monitor.SubmitPlan].
func (m *Monitor) SubmitSolve(ctx context.Context, req api.SolveRequest) (JobUpdate, error) {
	if err := m.checkCapacity(); err != nil {
		return JobUpdate{}, err
	}
	sub, err := m.client.SubmitSolve(ctx, req)
	if err != nil {
		return JobUpdate{}, err
	}
	return m.accept(JobKindSolve, sub)
}

// Job returns the latest known state of jobID.
func (m *Monitor) Job(jobID string) (JobUpdate, bool) {
	rec, ok := m.store.Get(jobID)
	if !ok || rec.Status == store.StatusRemoved {
		return JobUpdate{}, false
	}
	return updateFromRecord(rec), true
}

// Jobs returns every known job, most recently updated first.
func (m *Monitor) Jobs() []JobUpdate {
	records := m.store.GetAll()
	out := make([]JobUpdate, 0, len(records))
	for _, rec := range records {
		out = append(out, updateFromRecord(rec))
	}
	return out
}

// Handler returns the gateway's HTTP handler, for mounting the dashboard
// and job API into an existing server instead of calling [Monitor.Start].
func (m *Monitor) Handler() http.Handler {
	return m.newServer().Handler()
}

// Start serves the gateway and dashboard until ctx is cancelled.
//
// On return every job still being polled is stopped and marked cancelled.
// Returns nil on graceful shutdown, or an error if the server fails to start.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("pianista monitor starting", "api", m.client.BaseURL())
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	if err := m.newServer().Start(ctx); err != nil {
		m.stopAll()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	m.stopAll()
	m.logger.Info("pianista monitor stopped")
	return nil
}

func (m *Monitor) newServer() *server.Server {
	return server.NewServer(m.store, tracker{m}, m.port, dashboard.Assets, m.title, m.logger)
}

func (m *Monitor) stopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Cancel(id)
	}
}

func (m *Monitor) checkCapacity() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) >= m.maxTracked {
		return ErrTooManyJobs
	}
	return nil
}

// accept tracks a pending submission or records a synchronous result.
func (m *Monitor) accept(kind JobKind, sub api.Submission) (JobUpdate, error) {
	if sub.Pending() {
		if err := m.Track(kind, sub.ID); err != nil {
			return JobUpdate{}, err
		}
		u, _ := m.Job(sub.ID)
		return u, nil
	}

	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	job := &trackedJob{id: id, kind: kind, submittedAt: time.Now()}
	m.logger.Info("job completed synchronously", "job_id", id, "kind", string(kind))
	return m.emit(job, JobUpdate{Status: StatusSucceeded, Result: copyBytes(sub.Body)}, true), nil
}

// newJobPoller builds the poller for one job. Monitor callbacks go last so
// they replace any set through WithPollerOptions.
func (m *Monitor) newJobPoller(job *trackedJob) (*Poller, error) {
	kindOpts := m.kindOpts[job.kind]
	opts := make([]Option, 0, len(m.pollerOpts)+len(kindOpts)+4)
	opts = append(opts, WithLogger(m.logger))
	opts = append(opts, m.pollerOpts...)
	opts = append(opts, kindOpts...)
	opts = append(opts,
		WithOnPending(func(ps PendingStatus) {
			m.emit(job, JobUpdate{
				Status:      StatusPending,
				Attempt:     ps.Attempt,
				MaxAttempts: ps.MaxAttempts,
				NextPollIn:  ps.NextPollIn,
				Message:     ps.Message,
			}, false)
		}),
		WithOnSuccess(func(payload []byte) {
			m.finish(job, JobUpdate{Status: StatusSucceeded, Result: payload})
		}),
		WithOnError(func(err error) {
			m.finish(job, JobUpdate{Status: StatusFailed, Err: err})
		}),
	)

	switch job.kind {
	case JobKindPlan:
		return NewPlanPoller(m.client, opts...)
	default:
		return NewSolvePoller(m.client, opts...)
	}
}

// finish records a terminal transition and releases the tracking slot.
func (m *Monitor) finish(job *trackedJob, u JobUpdate) {
	st := job.poller.Snapshot()
	u.Attempt = st.Attempt
	u.MaxAttempts = st.MaxAttempts
	if m.emit(job, u, false).Status == "" {
		return
	}

	m.mu.Lock()
	if m.jobs[job.id] == job {
		delete(m.jobs, job.id)
	}
	m.mu.Unlock()
}

// emit writes a transition to the store, then invokes status callbacks.
// Transitions from a stopped job are dropped unless force is set; the
// returned update is zero when dropped.
func (m *Monitor) emit(job *trackedJob, u JobUpdate, force bool) JobUpdate {
	m.mu.Lock()
	if job.stopped && !force {
		m.mu.Unlock()
		return JobUpdate{}
	}
	rec := m.recordLocked(job, u)
	m.store.Update(rec)
	m.mu.Unlock()

	u.JobID = job.id
	u.Kind = job.kind
	u.UpdatedAt = rec.UpdatedAt

	attrs := []any{"job_id", job.id, "kind", string(job.kind), "status", u.Status.String(), "attempt", u.Attempt}
	if u.Err != nil {
		m.logger.Warn("job transition", append(attrs, "error", u.Err.Error())...)
	} else {
		m.logger.Debug("job transition", attrs...)
	}

	for _, cb := range m.statusCallbacks {
		invokeCallbackSafe(cb, cloneUpdate(u), m.logger)
	}
	return u
}

// recordLocked converts an update into the stored representation.
func (m *Monitor) recordLocked(job *trackedJob, u JobUpdate) store.JobRecord {
	var errStr *string
	if u.Err != nil {
		s := u.Err.Error()
		errStr = &s
	}

	return store.JobRecord{
		ID:          job.id,
		Kind:        string(job.kind),
		Status:      u.Status.String(),
		Attempt:     u.Attempt,
		MaxAttempts: u.MaxAttempts,
		NextPollIn:  u.NextPollIn,
		Message:     u.Message,
		Error:       errStr,
		Result:      rawResult(u.Result),
		SubmittedAt: job.submittedAt,
		UpdatedAt:   time.Now(),
	}
}

// rawResult embeds a payload in a record. Non-JSON payloads are stored as
// a JSON string.
func rawResult(payload []byte) json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	if json.Valid(payload) {
		return json.RawMessage(copyBytes(payload))
	}
	quoted, err := json.Marshal(string(payload))
	if err != nil {
		return nil
	}
	return quoted
}

func updateFromRecord(rec store.JobRecord) JobUpdate {
	u := JobUpdate{
		JobID:       rec.ID,
		Kind:        JobKind(rec.Kind),
		Status:      Status(rec.Status),
		Attempt:     rec.Attempt,
		MaxAttempts: rec.MaxAttempts,
		NextPollIn:  rec.NextPollIn,
		Message:     rec.Message,
		Result:      copyBytes(rec.Result),
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Error != nil {
		u.Err = errors.New(*rec.Error)
	}
	return u
}

// cloneUpdate gives each callback its own copy of the mutable fields.
func cloneUpdate(u JobUpdate) JobUpdate {
	u.Result = copyBytes(u.Result)
	return u
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(JobUpdate), u JobUpdate, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"job_id", u.JobID,
			)
		}
	}()
	cb(u)
}

// tracker exposes a Monitor to the gateway.
type tracker struct {
	m *Monitor
}

func (t tracker) SubmitPlan(ctx context.Context, req api.PlanRequest) (store.JobRecord, error) {
	u, err := t.m.SubmitPlan(ctx, req)
	if err != nil {
		return store.JobRecord{}, err
	}
	return t.record(u), nil
}

func (t tracker) SubmitSolve(ctx context.Context, req api.SolveRequest) (store.JobRecord, error) {
	u, err := t.m.SubmitSolve(ctx, req)
	if err != nil {
		return store.JobRecord{}, err
	}
	return t.record(u), nil
}

func (t tracker) Cancel(id string) bool {
	return t.m.Cancel(id)
}

// record prefers the stored record, which may already be further along
// than the update returned by the submission.
func (t tracker) record(u JobUpdate) store.JobRecord {
	if rec, ok := t.m.store.Get(u.JobID); ok {
		return rec
	}
	return store.JobRecord{ID: u.JobID, Kind: string(u.Kind), Status: u.Status.String(), UpdatedAt: u.UpdatedAt}
}
