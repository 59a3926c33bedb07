package store

import (
	"encoding/json"
	"time"
)

// StatusRemoved is published to subscribers when a record is deleted.
const StatusRemoved = "removed"

// JobRecord is the stored view of one tracked Pianista job.
//
// JobRecord is optimized for JSON serialization (used by the REST API and
// SSE). It is decoupled from the poller's State so the wire format can
// evolve independently.
type JobRecord struct {
	// ID is the job id issued by the Pianista API.
	ID string `json:"id"`

	// Kind is "plan" or "solve".
	Kind string `json:"kind"`

	// Status is the poll session status ("fetching", "pending", "succeeded", ...).
	Status string `json:"status"`

	// Attempt and MaxAttempts report progress against the attempt ceiling.
	Attempt     int `json:"attempt"`
	MaxAttempts int `json:"max_attempts"`

	// NextPollIn is the number of seconds until the next status request.
	NextPollIn int `json:"next_poll_in"`

	// Message is the latest pending message from the server.
	Message string `json:"message,omitempty"`

	// Error contains the terminal error message, if the job failed.
	Error *string `json:"error"`

	// Result is the raw success payload.
	Result json.RawMessage `json:"result,omitempty"`

	// SubmittedAt is when tracking started.
	SubmittedAt time.Time `json:"submitted_at"`

	// UpdatedAt is the time of the last transition.
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the record will not change any more.
func (r JobRecord) Terminal() bool {
	switch r.Status {
	case "succeeded", "failed", "cancelled", StatusRemoved:
		return true
	}
	return false
}

// Store defines the interface for storing and subscribing to job updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a record and notifies all subscribers.
	// Records are keyed by ID, so later updates replace earlier ones.
	Update(record JobRecord)

	// Get returns the record for id.
	Get(id string) (JobRecord, bool)

	// GetAll returns all records, most recently updated first.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []JobRecord

	// Delete removes the record for id and publishes a removal.
	// Returns false if there was no such record.
	Delete(id string) bool

	// Subscribe returns a channel that receives record updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan JobRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan JobRecord)
}
