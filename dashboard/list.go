// Package dashboard holds the view controllers that sit between the
// HTTP surface and the cache store: the paginated receipt list, the
// aggregate statistics view, and the coordinator that invalidates both
// after a completed upload.
package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fisdash/fisdash/cache"
	"github.com/fisdash/fisdash/datasource"
	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/query"
)

// ListState is an immutable snapshot of the list view.
type ListState struct {
	// Data is the last resolved page. During a page or filter change it
	// keeps holding the previous result until the new one arrives, so
	// the view never flashes empty.
	Data *fis.PaginatedResult[fis.Fis]
	Err  error
	// IsLoading is true only while the very first value for the current
	// query is being fetched and nothing older is available to show.
	IsLoading bool
	// IsValidating is true whenever a fetch for the current query is in
	// flight, including background revalidations.
	IsValidating bool
}

// ListController owns the query state of the receipt list view:
// pagination, sorting and filters. Every state change resolves to a new
// cache key and a resubscription; results for superseded queries are
// discarded by generation, so a slow response can never overwrite a
// newer one.
type ListController struct {
	store  *cache.Store
	source datasource.Source
	logger *zap.Logger

	mu     sync.Mutex
	params query.Params
	gen    uint64
	sub    *cache.Subscription

	data   *fis.PaginatedResult[fis.Fis]
	err    error
	status cache.Status
}

// ListOption configures a ListController.
type ListOption func(*ListController)

// WithListLogger attaches a zap logger. The default is a no-op logger.
func WithListLogger(logger *zap.Logger) ListOption {
	return func(c *ListController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewListController subscribes to the default first page and starts
// loading it.
func NewListController(store *cache.Store, source datasource.Source, opts ...ListOption) *ListController {
	c := &ListController{
		store:  store,
		source: source,
		logger: zap.NewNop(),
		params: query.Normalize(query.Params{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resubscribe()
	return c
}

// Close releases the controller's cache subscription.
func (c *ListController) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.gen++
	c.mu.Unlock()
	c.store.Unsubscribe(sub)
}

// Params returns the current normalized query parameters.
func (c *ListController) Params() query.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// State returns the current view state.
func (c *ListController) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetching := c.status == cache.StatusLoading || c.status == cache.StatusValidating
	return ListState{
		Data:         c.data,
		Err:          c.err,
		IsLoading:    fetching && c.data == nil,
		IsValidating: fetching,
	}
}

// SetPage moves to the given page. Values below one clamp to the first
// page; values beyond the known page count clamp to the last page.
func (c *ListController) SetPage(page int) {
	c.update(func(p *query.Params) {
		if page < 1 {
			page = 1
		}
		if c.data != nil && c.data.TotalPages > 0 && page > c.data.TotalPages {
			page = c.data.TotalPages
		}
		p.Page = page
	})
}

// NextPage advances one page when a next page exists.
func (c *ListController) NextPage() {
	c.update(func(p *query.Params) {
		if c.data != nil && c.data.HasNextPage {
			p.Page++
		}
	})
}

// PrevPage goes back one page when a previous page exists.
func (c *ListController) PrevPage() {
	c.update(func(p *query.Params) {
		if c.data != nil && c.data.HasPrevPage {
			p.Page--
		}
	})
}

// FirstPage jumps to page one.
func (c *ListController) FirstPage() {
	c.update(func(p *query.Params) { p.Page = 1 })
}

// LastPage jumps to the last known page.
func (c *ListController) LastPage() {
	c.update(func(p *query.Params) {
		if c.data != nil && c.data.TotalPages > 0 {
			p.Page = c.data.TotalPages
		}
	})
}

// SetLimit changes the page size and resets to the first page.
func (c *ListController) SetLimit(limit int) {
	c.update(func(p *query.Params) {
		p.Limit = limit
		p.Page = 1
	})
}

// SetSort replaces the sort field and direction and resets to the
// first page, since reordering rearranges which records fall on which
// page.
func (c *ListController) SetSort(field fis.SortField, order fis.SortOrder) {
	c.update(func(p *query.Params) {
		p.SortBy = field
		p.SortOrder = order
		p.Page = 1
	})
}

// SortByField implements the column-header click behavior: clicking the
// current sort column toggles the direction, clicking another column
// sorts by it descending. Either way the view returns to the first
// page.
func (c *ListController) SortByField(field fis.SortField) {
	c.update(func(p *query.Params) {
		p.Page = 1
		if p.SortBy == field {
			if p.SortOrder == fis.SortAsc {
				p.SortOrder = fis.SortDesc
			} else {
				p.SortOrder = fis.SortAsc
			}
			return
		}
		p.SortBy = field
		p.SortOrder = fis.SortDesc
	})
}

// SetFilters validates and applies a new filter set. On success the
// page resets to one; on validation failure nothing changes and no
// fetch is issued.
func (c *ListController) SetFilters(f Filters) error {
	if err := f.Validate(); err != nil {
		return err
	}
	c.update(func(p *query.Params) {
		*p = f.Apply(*p)
		p.Page = 1
	})
	return nil
}

// ClearFilters drops every filter and resets to the first page.
func (c *ListController) ClearFilters() {
	c.update(func(p *query.Params) {
		p.Search = ""
		p.DateFrom = ""
		p.DateTo = ""
		p.RecordNo = ""
		p.MinAmount = 0
		p.MaxAmount = 0
		p.Page = 1
	})
}

// HasActiveFilters reports whether any filter is in effect.
func (c *ListController) HasActiveFilters() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.params
	return p.Search != "" || p.DateFrom != "" || p.DateTo != "" ||
		p.RecordNo != "" || p.MinAmount != 0 || p.MaxAmount != 0
}

// Refresh forces an immediate refetch of the current query and waits
// for its result.
func (c *ListController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	key := query.Key{Resource: query.ResourceList, Params: c.params}
	c.mu.Unlock()

	_, err := c.store.Mutate(ctx, key, nil, true)
	return err
}

// update applies mutate to a copy of the current parameters and, if the
// normalized result differs, moves the subscription to the new key.
func (c *ListController) update(mutate func(*query.Params)) {
	c.mu.Lock()
	p := c.params
	mutate(&p)
	p = query.Normalize(p)
	if p == c.params {
		c.mu.Unlock()
		return
	}
	c.params = p
	c.mu.Unlock()

	c.resubscribe()
}

// resubscribe moves the cache subscription to the key for the current
// parameters. The previous data is kept on screen until the new query
// resolves; snapshots from the superseded subscription are dropped by
// the generation check.
func (c *ListController) resubscribe() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	params := c.params
	old := c.sub
	c.sub = nil
	c.mu.Unlock()

	if old != nil {
		c.store.Unsubscribe(old)
	}

	key := query.Key{Resource: query.ResourceList, Params: params}
	fetcher := func(ctx context.Context) (any, error) {
		return c.source.FetchList(ctx, params)
	}
	sub := c.store.Subscribe(key, fetcher, func(snap cache.Snapshot) {
		c.onSnapshot(gen, snap)
	})

	c.mu.Lock()
	if gen == c.gen {
		c.sub = sub
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	// A newer update won the race; this subscription is already obsolete.
	c.store.Unsubscribe(sub)
}

func (c *ListController) onSnapshot(gen uint64, snap cache.Snapshot) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.status = snap.Status
	c.err = snap.Err

	var clampTo int
	if res, ok := snap.Data.(*fis.PaginatedResult[fis.Fis]); ok && res != nil {
		c.data = res
		if res.TotalPages > 0 && c.params.Page > res.TotalPages {
			clampTo = res.TotalPages
		}
	}
	c.mu.Unlock()

	if clampTo > 0 {
		// The current page fell off the end, typically after records
		// were deleted. Move back onto the last page asynchronously so
		// the snapshot delivery path never re-enters the store.
		c.logger.Debug("clamping list page down",
			zap.Int("page", clampTo),
		)
		go c.SetPage(clampTo)
	}
}
