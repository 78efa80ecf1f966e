package datasource

import (
	"context"
	"fmt"

	"github.com/fisdash/fisdash/cache"
	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/query"
)

// Interface assertion to ensure CachedSource implements Source.
var _ Source = (*CachedSource)(nil)

// CachedSource decorates a base Source with read-through caching. It is
// a drop-in replacement for request-scoped callers such as the HTTP
// handlers: reads go through the shared cache store, so concurrent
// requests for the same query collapse into one backend fetch and
// stale values are served while a refresh runs in the background.
type CachedSource struct {
	base  Source
	store *cache.Store
}

// NewCachedSource wraps base with the given cache store.
func NewCachedSource(base Source, store *cache.Store) *CachedSource {
	return &CachedSource{base: base, store: store}
}

// FetchList resolves the list query through the cache.
func (c *CachedSource) FetchList(ctx context.Context, params query.Params) (*fis.PaginatedResult[fis.Fis], error) {
	p := query.Normalize(params)
	key := query.Key{Resource: query.ResourceList, Params: p}

	v, err := c.store.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return c.base.FetchList(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	res, ok := v.(*fis.PaginatedResult[fis.Fis])
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T for %s", v, key.String())
	}
	return res, nil
}

// FetchStats resolves the statistics query through the cache.
func (c *CachedSource) FetchStats(ctx context.Context) (*fis.Statistics, error) {
	key := query.StatsKey()

	v, err := c.store.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return c.base.FetchStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	stats, ok := v.(*fis.Statistics)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T for %s", v, key.String())
	}
	return stats, nil
}
