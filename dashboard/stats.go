package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fisdash/fisdash/cache"
	"github.com/fisdash/fisdash/datasource"
	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/query"
)

// Periodic refresh presets for the statistics view.
const (
	RefreshFast   = 30 * time.Second
	RefreshNormal = 2 * time.Minute
	RefreshSlow   = 10 * time.Minute
)

// StatsState is an immutable snapshot of the statistics view.
type StatsState struct {
	Data         *fis.Statistics
	Err          error
	IsLoading    bool
	IsValidating bool
}

// HasData reports whether a resolved value is available.
func (s StatsState) HasData() bool { return s.Data != nil }

// IsEmpty reports whether the dashboard holds no receipts at all. It is
// only meaningful once HasData is true.
func (s StatsState) IsEmpty() bool {
	return s.Data != nil && s.Data.TotalRecords == 0
}

// StatsController owns the aggregate statistics view. The underlying
// query has a single cache key, so every consumer shares one entry. An
// optional periodic refresh keeps the numbers current without user
// interaction.
type StatsController struct {
	store  *cache.Store
	source datasource.Source
	logger *zap.Logger

	mu     sync.Mutex
	sub    *cache.Subscription
	data   *fis.Statistics
	err    error
	status cache.Status
	stop   chan struct{}
}

// StatsOption configures a StatsController.
type StatsOption func(*StatsController)

// WithStatsLogger attaches a zap logger. The default is a no-op logger.
func WithStatsLogger(logger *zap.Logger) StatsOption {
	return func(c *StatsController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewStatsController subscribes to the statistics key and starts
// loading it.
func NewStatsController(store *cache.Store, source datasource.Source, opts ...StatsOption) *StatsController {
	c := &StatsController{
		store:  store,
		source: source,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	fetcher := func(ctx context.Context) (any, error) {
		return c.source.FetchStats(ctx)
	}
	c.sub = store.Subscribe(query.StatsKey(), fetcher, c.onSnapshot)
	return c
}

// Close stops the periodic refresh and releases the subscription.
func (c *StatsController) Close() {
	c.Stop()

	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	c.store.Unsubscribe(sub)
}

// State returns the current view state.
func (c *StatsController) State() StatsState {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetching := c.status == cache.StatusLoading || c.status == cache.StatusValidating
	return StatsState{
		Data:         c.data,
		Err:          c.err,
		IsLoading:    fetching && c.data == nil,
		IsValidating: fetching,
	}
}

// Refresh forces an immediate refetch and waits for its result.
func (c *StatsController) Refresh(ctx context.Context) error {
	_, err := c.store.Mutate(ctx, query.StatsKey(), nil, true)
	return err
}

// Start begins refreshing the statistics every interval. Calling Start
// again replaces the previous interval.
func (c *StatsController) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}

	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if err := c.Refresh(ctx); err != nil {
					c.logger.Warn("periodic statistics refresh failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

// Stop halts the periodic refresh. The cached value stays available.
func (c *StatsController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *StatsController) onSnapshot(snap cache.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = snap.Status
	c.err = snap.Err
	if stats, ok := snap.Data.(*fis.Statistics); ok && stats != nil {
		c.data = stats
	}
}
