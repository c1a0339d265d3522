package swing

import (
	"sync"

	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// SnapshotStore holds the most recently finalized capture window plus a
// ready flag. It is the only state shared by value between the acquisition
// goroutine (Publish) and the event sender (TakeCopy/Clear); the mutex is
// held only for field copies, never for serialization or I/O.
//
// The ready flag is cleared only after a confirmed delivery, so an unsent
// event is never lost to an overwrite: Publish refuses while a snapshot is
// still pending.
type SnapshotStore struct {
	mu        sync.Mutex
	samples   []sample.Sample
	count     int
	triggerMS int64
	ready     bool
}

// NewSnapshotStore creates a store sized for windows of up to capacity
// samples.
func NewSnapshotStore(capacity int) *SnapshotStore {
	return &SnapshotStore{samples: make([]sample.Sample, capacity)}
}

// Publish copies the finalized window into the store and marks it ready.
// Returns false without touching the store if a previous snapshot has not
// been delivered yet.
func (st *SnapshotStore) Publish(window []sample.Sample, triggerMS int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.ready {
		return false
	}
	st.count = copy(st.samples, window)
	st.triggerMS = triggerMS
	st.ready = true
	return true
}

// Pending reports whether a snapshot is awaiting delivery.
func (st *SnapshotStore) Pending() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ready
}

// TakeCopy copies the pending snapshot into dst and returns the sample
// count and trigger timestamp. ok is false when nothing is pending. The
// flag is NOT cleared; callers clear it with Clear after confirmed
// delivery.
func (st *SnapshotStore) TakeCopy(dst []sample.Sample) (n int, triggerMS int64, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.ready {
		return 0, 0, false
	}
	n = copy(dst, st.samples[:st.count])
	return n, st.triggerMS, true
}

// Clear marks the snapshot as delivered, freeing the slot for the next
// trigger.
func (st *SnapshotStore) Clear() {
	st.mu.Lock()
	st.ready = false
	st.mu.Unlock()
}
