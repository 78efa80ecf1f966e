// Package testsupport provides receipt fixtures and an in-memory data
// source for tests that need a working backend without a database.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fisdash/fisdash/datasource"
	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/query"
)

// SampleFis builds one receipt with the given identity and amount.
func SampleFis(id, recordNo string, createdAt time.Time, total float64) fis.Fis {
	eventTime := createdAt
	return fis.Fis{
		ID:        id,
		RecordNo:  &recordNo,
		EventTime: &eventTime,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Total:     &total,
		TotalTax:  ptr(total * 0.18),
		Items: []fis.Item{
			{Name: "kalem", Quantity: 1, UnitPrice: total, TaxRate: 0.18, LineTotal: total},
		},
	}
}

// SampleReceipts builds n receipts spaced one minute apart, newest
// last, with ascending record numbers and amounts.
func SampleReceipts(n int, start time.Time) []fis.Fis {
	receipts := make([]fis.Fis, 0, n)
	for i := 0; i < n; i++ {
		receipts = append(receipts, SampleFis(
			fmt.Sprintf("fis-%03d", i),
			fmt.Sprintf("FIS-2026-%03d", i),
			start.Add(time.Duration(i)*time.Minute),
			float64(10*(i+1)),
		))
	}
	return receipts
}

func ptr[T any](v T) *T { return &v }

// MemorySource is an in-memory implementation of datasource.Source and
// datasource.RecordSource. It applies the same filter, sort and
// pagination rules as the database-backed source, so tests above the
// data layer behave realistically.
type MemorySource struct {
	mu       sync.Mutex
	receipts []fis.Fis
	listErr  error
	statsErr error
	clock    func() time.Time
}

var (
	_ datasource.Source       = (*MemorySource)(nil)
	_ datasource.RecordSource = (*MemorySource)(nil)
)

// NewMemorySource builds a source preloaded with the given receipts.
func NewMemorySource(receipts ...fis.Fis) *MemorySource {
	return &MemorySource{receipts: receipts, clock: time.Now}
}

// SetClock replaces the wall clock used by FetchStats.
func (m *MemorySource) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = now
}

// Add appends a receipt.
func (m *MemorySource) Add(f fis.Fis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, f)
}

// FailList makes subsequent FetchList calls return err. Pass nil to
// restore normal behavior.
func (m *MemorySource) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// FailStats makes subsequent FetchStats calls return err.
func (m *MemorySource) FailStats(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsErr = err
}

// FetchList implements datasource.Source.
func (m *MemorySource) FetchList(_ context.Context, params query.Params) (*fis.PaginatedResult[fis.Fis], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	p := query.Normalize(params)

	matched := make([]fis.Fis, 0, len(m.receipts))
	for _, f := range m.receipts {
		if matches(f, p) {
			matched = append(matched, f)
		}
	}
	sortReceipts(matched, p.SortBy, p.SortOrder)

	total := len(matched)
	start := (p.Page - 1) * p.Limit
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}

	page := make([]fis.Fis, end-start)
	copy(page, matched[start:end])
	return fis.NewPaginatedResult(page, total, p.Page, p.Limit), nil
}

// FetchByID implements datasource.RecordSource.
func (m *MemorySource) FetchByID(_ context.Context, id string) (*fis.Fis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.receipts {
		if m.receipts[i].ID == id {
			record := m.receipts[i]
			return &record, nil
		}
	}
	return nil, datasource.ErrNotFound
}

// FetchStats implements datasource.Source.
func (m *MemorySource) FetchStats(context.Context) (*fis.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return nil, m.statsErr
	}

	now := m.clock()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cutoff := now.AddDate(0, 0, -30)

	stats := &fis.Statistics{TotalRecords: len(m.receipts)}
	recent := 0
	for _, f := range m.receipts {
		if f.Total != nil {
			stats.TotalAmount += *f.Total
		}
		if !f.CreatedAt.Before(startOfDay) && f.CreatedAt.Before(startOfDay.AddDate(0, 0, 1)) {
			stats.TodayRecords++
		}
		if !f.CreatedAt.Before(cutoff) {
			recent++
		}
	}
	if stats.TotalRecords > 0 {
		stats.AverageAmount = stats.TotalAmount / float64(stats.TotalRecords)
	}
	stats.AverageDailyRecords = float64(recent) / 30
	return stats, nil
}

func matches(f fis.Fis, p query.Params) bool {
	recordNo := ""
	if f.RecordNo != nil {
		recordNo = *f.RecordNo
	}
	if p.Search != "" && !strings.Contains(recordNo, p.Search) {
		return false
	}
	if p.RecordNo != "" && !strings.Contains(recordNo, p.RecordNo) {
		return false
	}
	if p.DateFrom != "" || p.DateTo != "" {
		if f.EventTime == nil {
			return false
		}
		day := f.EventTime.Format("2006-01-02")
		if p.DateFrom != "" && day < p.DateFrom {
			return false
		}
		if p.DateTo != "" && day > p.DateTo {
			return false
		}
	}
	if p.MinAmount > 0 && (f.Total == nil || *f.Total < p.MinAmount) {
		return false
	}
	if p.MaxAmount > 0 && (f.Total == nil || *f.Total > p.MaxAmount) {
		return false
	}
	return true
}

func sortReceipts(receipts []fis.Fis, field fis.SortField, order fis.SortOrder) {
	less := func(a, b fis.Fis) bool {
		switch field {
		case fis.SortByUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case fis.SortByEventTime:
			return timeOrZero(a.EventTime).Before(timeOrZero(b.EventTime))
		case fis.SortByTotal:
			return floatOrZero(a.Total) < floatOrZero(b.Total)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		if order == fis.SortDesc {
			return less(receipts[j], receipts[i])
		}
		return less(receipts[i], receipts[j])
	})
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
