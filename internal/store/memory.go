package store

import (
	"sort"
	"sync"
	"time"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by job id, with new records replacing previous values.
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]JobRecord
	subscribers map[chan JobRecord]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]JobRecord),
		subscribers: make(map[chan JobRecord]struct{}),
	}
}

// Update stores a [JobRecord] and notifies all subscribers.
//
// A zero UpdatedAt is set to now. SubmittedAt is carried over from the
// previous record for the same id when the new one leaves it zero.
func (m *MemoryStore) Update(record JobRecord) {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}

	m.mu.Lock()
	if prev, ok := m.jobs[record.ID]; ok && record.SubmittedAt.IsZero() {
		record.SubmittedAt = prev.SubmittedAt
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = record.UpdatedAt
	}
	m.jobs[record.ID] = record
	m.mu.Unlock()

	m.notifySubscribers(record)
}

// Get returns the record stored for id.
func (m *MemoryStore) Get(id string) (JobRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[id]
	return r, ok
}

// GetAll returns a snapshot of all records, most recently updated first.
// Ties are broken by id so the order is stable.
func (m *MemoryStore) GetAll() []JobRecord {
	m.mu.RLock()
	records := make([]JobRecord, 0, len(m.jobs))
	for _, r := range m.jobs {
		records = append(records, r)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

// Delete removes the record for id and publishes a [StatusRemoved] record.
func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	prev, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()

	if !ok {
		return false
	}

	m.notifySubscribers(JobRecord{
		ID:          id,
		Kind:        prev.Kind,
		Status:      StatusRemoved,
		SubmittedAt: prev.SubmittedAt,
		UpdatedAt:   time.Now(),
	})
	return true
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan JobRecord {
	ch := make(chan JobRecord, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan JobRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers is non-blocking: a full subscriber buffer drops the
// message for that subscriber.
func (m *MemoryStore) notifySubscribers(record JobRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// subscriber is slow, drop the message
		}
	}
}
