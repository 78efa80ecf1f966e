// Package datasource implements the read contract the dashboard
// consumes: a filtered, sorted, offset/limit paginated receipt list
// with an exact total count, and the aggregate statistics query.
//
// The adapter has no retry or caching logic of its own; it issues one
// query per call and returns a result or a structured error. Freshness
// and deduplication are the cache store's job.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/query"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("datasource: record not found")

// Source is the data-source contract consumed by the controllers and
// the cache store fetchers. Both operations are idempotent and
// side-effect-free; failures come back as errors, never panics.
type Source interface {
	FetchList(ctx context.Context, params query.Params) (*fis.PaginatedResult[fis.Fis], error)
	FetchStats(ctx context.Context) (*fis.Statistics, error)
}

// RecordSource looks up a single receipt. It is a separate contract
// because detail lookups are not part of the shared query cache.
type RecordSource interface {
	FetchByID(ctx context.Context, id string) (*fis.Fis, error)
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time { return time.Now() }

// BunSource implements Source on top of a bun.DB (Postgres in
// production, SQLite in tests).
type BunSource struct {
	db    *bun.DB
	clock TimeSource
}

// BunOption configures optional BunSource collaborators.
type BunOption func(*BunSource)

// WithTimeSource replaces the wall clock, for deterministic
// "today" and "trailing 30 days" windows in tests.
func WithTimeSource(clock TimeSource) BunOption {
	return func(s *BunSource) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewBunSource creates a Source backed by the given database handle.
func NewBunSource(db *bun.DB, opts ...BunOption) *BunSource {
	s := &BunSource{db: db, clock: systemTimeSource{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchList runs the list query described by params. Parameters are
// normalized first, so unset optional filters are simply not applied.
// The search and record-number filters both substring-match the
// fis_no column; record-number is applied second when both are set.
func (s *BunSource) FetchList(ctx context.Context, params query.Params) (*fis.PaginatedResult[fis.Fis], error) {
	p := query.Normalize(params)

	var records []fis.Fis
	q := s.db.NewSelect().Model(&records)

	if p.Search != "" {
		q = q.Where("fis_no LIKE ?", "%"+p.Search+"%")
	}
	if p.RecordNo != "" {
		q = q.Where("fis_no LIKE ?", "%"+p.RecordNo+"%")
	}
	if p.DateFrom != "" {
		q = q.Where("tarih_saat >= ?", p.DateFrom)
	}
	if p.DateTo != "" {
		q = q.Where("tarih_saat <= ?", p.DateTo)
	}
	if p.MinAmount > 0 {
		q = q.Where("total >= ?", p.MinAmount)
	}
	if p.MaxAmount > 0 {
		q = q.Where("total <= ?", p.MaxAmount)
	}

	// p.SortBy is validated by Normalize, so interpolating the column
	// name cannot carry user input.
	dir := "ASC"
	if p.SortOrder == fis.SortDesc {
		dir = "DESC"
	}
	q = q.Order(string(p.SortBy) + " " + dir)

	offset := (p.Page - 1) * p.Limit
	count, err := q.Limit(p.Limit).Offset(offset).ScanAndCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	return fis.NewPaginatedResult(records, count, p.Page, p.Limit), nil
}

// FetchByID loads one receipt by its primary key.
func (s *BunSource) FetchByID(ctx context.Context, id string) (*fis.Fis, error) {
	var record fis.Fis
	err := s.db.NewSelect().Model(&record).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading receipt %s: %w", id, err)
	}
	return &record, nil
}

// FetchStats computes the aggregate view: total record count, total
// amount, today's record count, the per-record average amount, and the
// average records per day over the trailing 30 days.
func (s *BunSource) FetchStats(ctx context.Context) (*fis.Statistics, error) {
	totalRecords, err := s.db.NewSelect().Model((*fis.Fis)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting receipts: %w", err)
	}

	// SUM over zero rows is NULL; scanning through NullFloat64 keeps the
	// empty table a zero total instead of a scan error.
	var totalSum sql.NullFloat64
	err = s.db.NewSelect().Model((*fis.Fis)(nil)).
		ColumnExpr("SUM(total)").
		Scan(ctx, &totalSum)
	if err != nil {
		return nil, fmt.Errorf("summing receipt totals: %w", err)
	}
	totalAmount := totalSum.Float64

	now := s.clock.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	todayRecords, err := s.db.NewSelect().Model((*fis.Fis)(nil)).
		Where("created_at >= ?", startOfDay).
		Where("created_at < ?", startOfDay.AddDate(0, 0, 1)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting today's receipts: %w", err)
	}

	recentRecords, err := s.db.NewSelect().Model((*fis.Fis)(nil)).
		Where("created_at >= ?", now.AddDate(0, 0, -30)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting recent receipts: %w", err)
	}

	averageAmount := 0.0
	if totalRecords > 0 {
		averageAmount = totalAmount / float64(totalRecords)
	}

	return &fis.Statistics{
		TotalRecords:        totalRecords,
		TotalAmount:         totalAmount,
		TodayRecords:        todayRecords,
		AverageAmount:       averageAmount,
		AverageDailyRecords: float64(recentRecords) / 30,
	}, nil
}
