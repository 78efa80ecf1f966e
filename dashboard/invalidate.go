package dashboard

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fisdash/fisdash/cache"
	"github.com/fisdash/fisdash/query"
)

// Invalidator keeps the list and statistics views consistent after a
// write. Both resources are invalidated in parallel; a failure on one
// never prevents the other from refreshing, and all failures are
// reported together.
type Invalidator struct {
	store  *cache.Store
	logger *zap.Logger
}

// NewInvalidator builds an invalidator over the given store. A nil
// logger is replaced with a no-op one.
func NewInvalidator(store *cache.Store, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{store: store, logger: logger}
}

// OnWriteCompleted invalidates every list query variant and the
// statistics entry after a successful write, typically a completed
// upload. Watched entries revalidate immediately; unwatched ones are
// marked stale and refetch lazily on the next subscription.
func (inv *Invalidator) OnWriteCompleted(ctx context.Context) error {
	targets := []query.Resource{query.ResourceList, query.ResourceStats}

	var wg sync.WaitGroup
	errs := make([]error, len(targets))

	for i, res := range targets {
		wg.Add(1)
		go func(i int, res query.Resource) {
			defer wg.Done()
			err := inv.store.InvalidateMatching(ctx, func(k query.Key) bool {
				return k.Matches(res)
			})
			if err != nil {
				inv.logger.Warn("invalidation target failed",
					zap.String("resource", string(res)),
					zap.Error(err),
				)
				errs[i] = err
			}
		}(i, res)
	}
	wg.Wait()

	return errors.Join(errs...)
}
