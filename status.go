package pianista

import (
	"context"
	"time"
)

// Status represents the lifecycle state of a poll session.
//
// Status is a string type so it serializes cleanly to JSON and reads well in
// logs. A session starts [StatusIdle], moves to [StatusFetching] for every
// request, and ends in one of the terminal states [StatusSucceeded],
// [StatusFailed] or [StatusCancelled].
type Status string

const (
	// StatusIdle indicates no session has been started (or the poller was reset).
	StatusIdle Status = "idle"

	// StatusFetching indicates a status request is in flight.
	StatusFetching Status = "fetching"

	// StatusPending indicates the job is still processing and a retry is scheduled.
	StatusPending Status = "pending"

	// StatusSucceeded indicates the job completed and its payload is available.
	StatusSucceeded Status = "succeeded"

	// StatusFailed indicates the session ended with an error.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the session was stopped, reset or superseded.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further fetch will be issued in this state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Response is the outcome of a single job status request.
//
// StatusCode carries HTTP semantics: 200/201 mean the job finished, 202 means
// it is still processing, anything else is classified as an error by the
// [Poller]. Data holds the raw response body (usually JSON).
type Response struct {
	StatusCode int
	Data       []byte
}

// FetchFunc queries the status of a remote job.
//
// Implementations must be idempotent and safe to call repeatedly for the same
// job id. A non-nil error means the request itself failed (network error,
// cancelled context) and is treated as a terminal failure unless the session
// has already been cancelled.
type FetchFunc func(ctx context.Context, jobID string) (Response, error)

// PendingStatus is passed to the pending callback each time the job reports
// it is still processing (or a transient server error is being retried).
type PendingStatus struct {
	// Attempt is the 1-based number of pending responses seen so far.
	Attempt int

	// MaxAttempts is the attempt ceiling for the session.
	MaxAttempts int

	// NextPollIn is the delay before the next request, in whole seconds (rounded up).
	NextPollIn int

	// Message is the server's detail message, or a generic one.
	Message string
}

// State is a point-in-time view of a [Poller].
type State struct {
	// JobID is the job being polled. Empty when idle.
	JobID string

	// Status is the session status.
	Status Status

	// Attempt counts retries consumed by pending and transient responses.
	Attempt int

	// MaxAttempts is the configured attempt ceiling.
	MaxAttempts int

	// CurrentInterval is the delay used for the most recent retry.
	CurrentInterval time.Duration

	// NextPollIn is the number of whole seconds until the next request.
	// Zero unless Status is StatusPending.
	NextPollIn int

	// Result is the success payload. Set only when Status is StatusSucceeded
	// (or retained from an earlier session after StopPolling).
	Result []byte

	// Err is the terminal error. Set only when Status is StatusFailed.
	Err error

	// Loading is true while the first request of a session is in flight.
	Loading bool

	// Polling is true while retries are scheduled.
	Polling bool
}

// IsActive reports whether the session is loading or polling.
func (s State) IsActive() bool {
	return s.Loading || s.Polling
}

// HasTimedOut reports whether the attempt ceiling was reached.
func (s State) HasTimedOut() bool {
	return s.MaxAttempts > 0 && s.Attempt >= s.MaxAttempts
}
