package cache

import (
	"sync"
	"time"

	"github.com/fisdash/fisdash/query"
)

// Status describes where a cache entry is in its fetch lifecycle.
type Status int

const (
	// StatusIdle means the entry exists but no fetch has been issued.
	StatusIdle Status = iota
	// StatusLoading means the first fetch for the key is in flight.
	StatusLoading
	// StatusValidating means a revalidation is in flight while the
	// previous value remains visible.
	StatusValidating
	// StatusSuccess means the entry holds a resolved value.
	StatusSuccess
	// StatusError means the last fetch cycle failed. Any previously
	// resolved value is preserved alongside the error.
	StatusError
)

// String implements fmt.Stringer for log output.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusValidating:
		return "validating"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Snapshot is an immutable view of a cache entry handed to listeners.
// Consumers snapshot a whole value per notification; the store never
// edits a delivered snapshot in place.
type Snapshot struct {
	Key           query.Key
	Data          any
	Err           error
	Status        Status
	LastFetchedAt time.Time
}

// HasData reports whether the snapshot carries a resolved value. It is
// true even when Status is StatusError, because a failed revalidation
// keeps the last good value visible.
func (s Snapshot) HasData() bool {
	return s.Data != nil
}

// IsValidating reports whether a background refetch is running.
func (s Snapshot) IsValidating() bool {
	return s.Status == StatusValidating
}

// inflight represents the single outstanding fetch for a key. Late
// joiners wait on done instead of issuing a duplicate request.
type inflight struct {
	done chan struct{}
	data any
	err  error
}

// subscriber pairs a listener with its delivery cursor. Deliveries are
// serialized per subscriber and stamped with the entry version, so a
// snapshot captured earlier can never arrive after one capturing a
// later state.
type subscriber struct {
	mu   sync.Mutex
	fn   Listener
	seen uint64
}

// deliver invokes the listener with snap unless a snapshot stamped with
// the same or a later version has already been delivered.
func (s *subscriber) deliver(snap Snapshot, version uint64) {
	if s.fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if version <= s.seen {
		return
	}
	s.seen = version
	s.fn(snap)
}

// entry is the store-owned state for one key. All fields are guarded by
// mu; listeners are always invoked outside the lock with a snapshot.
type entry struct {
	mu sync.Mutex

	key           query.Key
	fetcher       Fetcher
	data          any
	err           error
	status        Status
	stale         bool
	lastFetchedAt time.Time
	version       uint64

	subscribers map[string]*subscriber
	inflight    *inflight
}

func newEntry(key query.Key) *entry {
	return &entry{
		key:         key,
		status:      StatusIdle,
		subscribers: make(map[string]*subscriber),
	}
}

// snapshotLocked builds a Snapshot from the current state.
// Callers must hold e.mu.
func (e *entry) snapshotLocked() Snapshot {
	return Snapshot{
		Key:           e.key,
		Data:          e.data,
		Err:           e.err,
		Status:        e.status,
		LastFetchedAt: e.lastFetchedAt,
	}
}

// listenersLocked copies the registered subscribers so notification can
// happen after the lock is released. Callers must hold e.mu.
func (e *entry) listenersLocked() []*subscriber {
	if len(e.subscribers) == 0 {
		return nil
	}
	out := make([]*subscriber, 0, len(e.subscribers))
	for _, l := range e.subscribers {
		out = append(out, l)
	}
	return out
}

// publishLocked stamps the current state with a fresh version and
// returns everything needed to notify subscribers once the lock is
// released. Callers must hold e.mu.
func (e *entry) publishLocked() ([]*subscriber, Snapshot, uint64) {
	e.version++
	return e.listenersLocked(), e.snapshotLocked(), e.version
}

// freshLocked reports whether the resolved value is inside the dedupe
// window relative to now. Callers must hold e.mu.
func (e *entry) freshLocked(now time.Time, window time.Duration) bool {
	if e.data == nil || e.stale {
		return false
	}
	return now.Sub(e.lastFetchedAt) < window
}
