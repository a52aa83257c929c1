package batch

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// retryEntry is a failed, retryable batch waiting for another attempt.
type retryEntry struct {
	batch         *point.Batch
	attempts      int
	firstBuffered time.Time
	lastAttempt   time.Time
}

// newRetryEntry wraps a batch whose first send just failed.
func newRetryEntry(b *point.Batch, now time.Time) *retryEntry {
	return &retryEntry{
		batch:         b,
		attempts:      1,
		firstBuffered: now,
		lastAttempt:   now,
	}
}

// retryBuffer is a bounded FIFO of retry entries, oldest first.
//
// Insertion beyond capacity is rejected; existing entries are never evicted
// to make room.
type retryBuffer struct {
	mu       sync.Mutex
	capacity int
	interval time.Duration
	entries  []*retryEntry
}

func newRetryBuffer(capacity int, interval time.Duration) *retryBuffer {
	return &retryBuffer{capacity: capacity, interval: interval}
}

// tryEnqueue appends e, or returns false if the buffer is full.
func (r *retryBuffer) tryEnqueue(e *retryEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.capacity {
		return false
	}
	r.entries = append(r.entries, e)
	return true
}

// drainDue removes and returns the entries whose retry interval has elapsed,
// preserving insertion order. Entries not yet due stay buffered.
func (r *retryBuffer) drainDue(now time.Time) []*retryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due, keep []*retryEntry
	for _, e := range r.entries {
		if r.isDue(e, now) {
			due = append(due, e)
		} else {
			keep = append(keep, e)
		}
	}
	r.entries = keep
	return due
}

// drainAll removes and returns every entry regardless of due time.
func (r *retryBuffer) drainAll() []*retryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.entries
	r.entries = nil
	return out
}

// hasDue reports whether at least one entry is due at now.
func (r *retryBuffer) hasDue(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if r.isDue(e, now) {
			return true
		}
	}
	return false
}

func (r *retryBuffer) isDue(e *retryEntry, now time.Time) bool {
	return !now.Before(e.lastAttempt.Add(r.interval))
}

// len returns the number of buffered entries.
func (r *retryBuffer) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// points returns the number of points across all buffered entries.
func (r *retryBuffer) points() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		n += e.batch.Len()
	}
	return n
}
