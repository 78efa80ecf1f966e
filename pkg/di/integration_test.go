package di

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fisdash/fisdash/fis"
	"github.com/fisdash/fisdash/internal/config"
	"github.com/fisdash/fisdash/internal/server"
	"github.com/fisdash/fisdash/query"
)

func seedReceipts(t *testing.T, c *Container, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		no := fmt.Sprintf("FIS-%03d", i)
		total := float64(10 * (i + 1))
		createdAt := base.Add(time.Duration(i) * time.Minute)
		f := &fis.Fis{
			ID:        uuid.NewString(),
			RecordNo:  &no,
			EventTime: &createdAt,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
			Total:     &total,
		}
		_, err := c.DB().NewInsert().Model(f).Exec(context.Background())
		require.NoError(t, err)
	}
}

// The full stack against a real SQLite database: container wiring, the
// HTTP server, the cache in the middle.
func TestIntegration_ListThroughFullStack(t *testing.T) {
	c := newTestContainer(t)
	seedReceipts(t, c, 25)

	srv := server.New(config.ServerConfig{Addr: ":0"}, server.Deps{
		Logger:      c.Logger(),
		Metrics:     c.Metrics(),
		Source:      c.Source(),
		Records:     c.Records(),
		Uploader:    c.Uploader(),
		Invalidator: c.Invalidator(),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/fisler?limit=10&page=3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res fis.PaginatedResult[fis.Fis]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 25, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.Items, 5)
	assert.False(t, res.HasNextPage)
}

func TestIntegration_ControllersAndInvalidation(t *testing.T) {
	c := newTestContainer(t)
	seedReceipts(t, c, 5)

	list := c.NewListController()
	defer list.Close()
	stats := c.NewStatsController()
	defer stats.Close()

	require.Eventually(t, func() bool {
		return list.State().Data != nil && stats.State().HasData()
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 5, list.State().Data.TotalCount)
	require.Equal(t, 5, stats.State().Data.TotalRecords)

	// A write lands behind the cache's back.
	seedReceipts(t, c, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Invalidator().OnWriteCompleted(ctx))

	require.Eventually(t, func() bool {
		return list.State().Data.TotalCount == 6 &&
			stats.State().Data.TotalRecords == 6
	}, 2*time.Second, 5*time.Millisecond, "both views converge after invalidation")
}

func BenchmarkCachedListRead(b *testing.B) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Addr: ":0"},
		Database: config.DatabaseConfig{Driver: "sqlite3", DSN: b.TempDir() + "/bench.db"},
		Cache: config.CacheConfig{
			DedupeWindow:  time.Minute,
			RetryCount:    1,
			RetryInterval: time.Millisecond,
		},
		Upload: config.UploadConfig{Timeout: time.Minute},
	}
	c, err := NewContainer(cfg, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()
	if _, err := c.DB().NewCreateTable().Model((*fis.Fis)(nil)).Exec(context.Background()); err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	if _, err := c.Source().FetchList(ctx, query.Params{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.Source().FetchList(ctx, query.Params{}); err != nil {
				b.Fatal(err)
			}
		}
	})
}
