package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/fisdash/fisdash/query"
)

// Fetcher loads the value for a key from the source of truth.
// It must be idempotent and side-effect-free; failures are returned,
// never panicked across the boundary.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives a snapshot every time the entry it subscribed to
// changes state.
type Listener func(Snapshot)

// TimeSource provides the current time. Injectable so staleness can be
// tested deterministically.
type TimeSource interface {
	Now() time.Time
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time { return time.Now() }

// MetricsRecorder receives cache activity counts. A nil recorder is valid.
type MetricsRecorder interface {
	CacheHit(resource string)
	CacheMiss(resource string)
	CacheRevalidation(resource string)
	CacheFetchError(resource string)
}

// ErrNoFetcher is returned when an operation needs to fetch a key that
// has never been given a fetcher.
var ErrNoFetcher = errors.New("cache: no fetcher registered for key")

// Store is the process-wide owner of all fetched query results. It is
// an explicit injectable object with a defined lifecycle: construct it
// once at application start, pass it by reference to every controller,
// and Close it on shutdown. Views never cache independently.
//
// Guarantees:
//   - at most one in-flight fetch per key (request deduplication)
//   - a fetch that fails keeps the last resolved value visible
//   - cached values are replaced wholesale, never edited in place
type Store struct {
	cfg     Config
	entries *xsync.MapOf[query.Key, *entry]
	clock   TimeSource
	logger  *zap.Logger
	metrics MetricsRecorder

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures optional Store collaborators.
type Option func(*Store)

// WithLogger attaches a zap logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeSource replaces the wall clock, for tests.
func WithTimeSource(clock TimeSource) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore validates the configuration and builds an empty store.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:     cfg,
		entries: xsync.NewMapOf[query.Key, *entry](),
		clock:   systemTimeSource{},
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close stops background fetch retries. Entries remain readable.
func (s *Store) Close() {
	s.cancel()
}

// Len returns the number of live cache entries.
func (s *Store) Len() int {
	return s.entries.Size()
}

// SubscriberCount returns the number of subscribers registered for key.
func (s *Store) SubscriberCount(key query.Key) int {
	e, ok := s.entries.Load(key)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

// Subscription is the handle a consumer holds while it is interested in
// a key. Releasing it makes the entry eligible for eviction once no
// other subscribers remain.
type Subscription struct {
	id  string
	key query.Key
}

// Key returns the key this subscription is bound to.
func (s *Subscription) Key() query.Key {
	return s.key
}

func (s *Store) getEntry(key query.Key) *entry {
	e, _ := s.entries.LoadOrCompute(key, func() *entry {
		return newEntry(key)
	})
	return e
}

// Subscribe registers interest in key. If no resolved value exists the
// first fetch is triggered; a fresh value (inside the dedupe window) is
// served as-is; a stale value is served immediately while a background
// refetch runs (stale-while-revalidate). The listener, if non-nil, is
// called with the current snapshot before Subscribe returns, unless the
// entry has already moved on and delivered a later snapshot, and again
// on every later state change. Per listener, snapshots always arrive in
// state order.
func (s *Store) Subscribe(key query.Key, fetcher Fetcher, listener Listener) *Subscription {
	e := s.getEntry(key)
	sub := &Subscription{id: uuid.NewString(), key: key}
	subr := &subscriber{fn: listener}

	e.mu.Lock()
	if fetcher != nil {
		e.fetcher = fetcher
	}
	e.subscribers[sub.id] = subr

	now := s.clock.Now()
	switch {
	case e.inflight != nil:
		// Attach to the outstanding fetch instead of issuing another.
	case e.freshLocked(now, s.cfg.DedupeWindow):
		s.recordHit(key)
	case e.data == nil:
		s.recordMiss(key)
		s.startFetchLocked(e)
	default:
		s.recordRevalidation(key)
		s.startFetchLocked(e)
	}
	e.version++
	version := e.version
	snap := e.snapshotLocked()
	e.mu.Unlock()

	// If the fetch resolved between unlock and here, the completion
	// snapshot carries a later version and this one is dropped.
	subr.deliver(snap, version)
	return sub
}

// Unsubscribe releases a subscription handle. When the last subscriber
// leaves and EvictionGrace is configured, the entry is evicted after
// the grace period unless someone resubscribes in the meantime.
func (s *Store) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	e, ok := s.entries.Load(sub.key)
	if !ok {
		return
	}

	e.mu.Lock()
	delete(e.subscribers, sub.id)
	empty := len(e.subscribers) == 0
	e.mu.Unlock()

	if empty && s.cfg.EvictionGrace > 0 {
		time.AfterFunc(s.cfg.EvictionGrace, func() {
			s.evictIfIdle(sub.key)
		})
	}
}

func (s *Store) evictIfIdle(key query.Key) {
	e, ok := s.entries.Load(key)
	if !ok {
		return
	}
	e.mu.Lock()
	idle := len(e.subscribers) == 0 && e.inflight == nil
	e.mu.Unlock()
	if idle {
		s.entries.Delete(key)
	}
}

// Snapshot returns the current state of the entry for key without
// subscribing or triggering a fetch.
func (s *Store) Snapshot(key query.Key) (Snapshot, bool) {
	e, ok := s.entries.Load(key)
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(), true
}

// Fetch is the synchronous read-through used by request-scoped callers
// such as HTTP handlers. A fresh value returns immediately; a stale one
// is returned while a background refetch runs; with no value at all the
// call joins the (deduplicated) in-flight fetch and waits for it.
func (s *Store) Fetch(ctx context.Context, key query.Key, fetcher Fetcher) (any, error) {
	e := s.getEntry(key)

	e.mu.Lock()
	if fetcher != nil {
		e.fetcher = fetcher
	}
	now := s.clock.Now()

	if e.freshLocked(now, s.cfg.DedupeWindow) {
		data := e.data
		e.mu.Unlock()
		s.recordHit(key)
		return data, nil
	}

	if e.data != nil {
		// Stale-while-revalidate: hand back the old value and refresh
		// in the background.
		s.recordRevalidation(key)
		s.startFetchLocked(e)
		data := e.data
		e.mu.Unlock()
		return data, nil
	}

	s.recordMiss(key)
	s.startFetchLocked(e)
	fl := e.inflight
	e.mu.Unlock()

	if fl == nil {
		return nil, ErrNoFetcher
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-fl.done:
		return fl.data, fl.err
	}
}

// Mutate updates the entry for key. With non-nil data the cached value
// is replaced optimistically without a network round-trip, and a
// background refetch reconciles it when revalidate is true. With nil
// data an immediate refetch is forced regardless of freshness and the
// call waits for its result.
func (s *Store) Mutate(ctx context.Context, key query.Key, data any, revalidate bool) (any, error) {
	e := s.getEntry(key)

	if data != nil {
		e.mu.Lock()
		e.data = data
		e.err = nil
		e.status = StatusSuccess
		e.stale = false
		e.lastFetchedAt = s.clock.Now()
		if revalidate {
			s.startFetchLocked(e)
		}
		listeners, snap, version := e.publishLocked()
		e.mu.Unlock()

		for _, l := range listeners {
			l.deliver(snap, version)
		}
		return data, nil
	}

	e.mu.Lock()
	e.stale = true
	s.startFetchLocked(e)
	fl := e.inflight
	listeners, snap, version := e.publishLocked()
	e.mu.Unlock()

	for _, l := range listeners {
		l.deliver(snap, version)
	}

	if fl == nil {
		return nil, ErrNoFetcher
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-fl.done:
		return fl.data, fl.err
	}
}

// InvalidateMatching marks every entry whose key satisfies pred as
// stale. Entries with at least one subscriber are revalidated right
// away; entries with none are only marked, so the next subscription
// refetches lazily. The call waits for every triggered revalidation to
// settle and reports all individual failures together instead of
// failing fast.
func (s *Store) InvalidateMatching(ctx context.Context, pred func(query.Key) bool) error {
	var waits []*inflight

	s.entries.Range(func(k query.Key, e *entry) bool {
		if !pred(k) {
			return true
		}

		e.mu.Lock()
		e.stale = true
		var listeners []*subscriber
		var snap Snapshot
		var version uint64
		if len(e.subscribers) > 0 {
			s.recordRevalidation(k)
			s.startFetchLocked(e)
			if e.inflight != nil {
				waits = append(waits, e.inflight)
			}
			listeners, snap, version = e.publishLocked()
		}
		e.mu.Unlock()

		for _, l := range listeners {
			l.deliver(snap, version)
		}
		return true
	})

	var errs []error
	for _, fl := range waits {
		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		case <-fl.done:
			if fl.err != nil {
				errs = append(errs, fl.err)
			}
		}
	}
	return errors.Join(errs...)
}

// startFetchLocked launches the fetch goroutine for e unless one is
// already outstanding or no fetcher is known. Callers must hold e.mu.
func (s *Store) startFetchLocked(e *entry) {
	if e.inflight != nil || e.fetcher == nil {
		return
	}
	fl := &inflight{done: make(chan struct{})}
	e.inflight = fl
	if e.data == nil {
		e.status = StatusLoading
	} else {
		e.status = StatusValidating
	}
	go s.runFetch(e, fl, e.fetcher)
}

// runFetch executes one fetch cycle with bounded retries and applies
// the result. A failure after the last attempt preserves the previous
// data and surfaces the error through the entry status.
func (s *Store) runFetch(e *entry, fl *inflight, fetcher Fetcher) {
	var data any
	var err error

attempts:
	for attempt := 1; attempt <= s.cfg.RetryCount; attempt++ {
		data, err = fetcher(s.ctx)
		if err == nil {
			break
		}
		s.logger.Warn("cache fetch attempt failed",
			zap.String("key", e.key.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.cfg.RetryCount),
			zap.Error(err),
		)
		if attempt == s.cfg.RetryCount {
			break
		}
		select {
		case <-s.ctx.Done():
			err = s.ctx.Err()
			break attempts
		case <-time.After(s.cfg.RetryInterval):
		}
	}

	e.mu.Lock()
	if err == nil {
		e.data = data
		e.err = nil
		e.status = StatusSuccess
		e.stale = false
		e.lastFetchedAt = s.clock.Now()
	} else {
		e.err = err
		e.status = StatusError
		s.recordFetchError(e.key)
	}
	fl.data, fl.err = data, err
	e.inflight = nil
	listeners, snap, version := e.publishLocked()
	e.mu.Unlock()

	close(fl.done)
	for _, l := range listeners {
		l.deliver(snap, version)
	}
}

func (s *Store) recordHit(key query.Key) {
	if s.metrics != nil {
		s.metrics.CacheHit(string(key.Resource))
	}
}

func (s *Store) recordMiss(key query.Key) {
	if s.metrics != nil {
		s.metrics.CacheMiss(string(key.Resource))
	}
}

func (s *Store) recordRevalidation(key query.Key) {
	if s.metrics != nil {
		s.metrics.CacheRevalidation(string(key.Resource))
	}
}

func (s *Store) recordFetchError(key query.Key) {
	if s.metrics != nil {
		s.metrics.CacheFetchError(string(key.Resource))
	}
}
