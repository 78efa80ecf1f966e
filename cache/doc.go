// Package cache implements the client-side data-synchronization layer
// of the receipt dashboard: a keyed store of query results with
// subscriber tracking, request deduplication, stale-while-revalidate
// freshness and predicate-based invalidation.
//
// # Overview
//
// The Store is the single process-wide owner of fetched data. Views
// bind to it through subscriptions and only ever observe immutable
// snapshots; all mutation is whole-value replacement performed by the
// store itself.
//
//	store, err := cache.NewStore(cache.DefaultConfig())
//	if err != nil { ... }
//	defer store.Close()
//
//	key := query.NewListKey(query.Params{Page: 1, Limit: 20})
//	sub := store.Subscribe(key, fetchPage, func(snap cache.Snapshot) {
//		// re-render with snap
//	})
//	defer store.Unsubscribe(sub)
//
// # Freshness
//
// A resolved entry younger than Config.DedupeWindow is served without a
// refetch. An older entry is served immediately while a background
// refetch runs, so consumers keep showing data during revalidation. A
// fetch that ultimately fails (after Config.RetryCount attempts spaced
// Config.RetryInterval apart) sets the error status but never clears
// previously resolved data.
//
// # Invalidation
//
// After a write, InvalidateMatching marks every matching entry stale.
// Entries somebody is watching revalidate immediately; abandoned
// entries refetch lazily on their next subscription. The call waits for
// every triggered revalidation and reports failures together rather
// than aborting on the first one.
package cache
