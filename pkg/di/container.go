// Package di wires the application components together. It manages the
// singleton instances that must be shared process-wide, most
// importantly the cache store, and provides factory methods for the
// per-view controllers.
package di

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/fisdash/fisdash/cache"
	"github.com/fisdash/fisdash/dashboard"
	"github.com/fisdash/fisdash/datasource"
	"github.com/fisdash/fisdash/internal/config"
	"github.com/fisdash/fisdash/internal/observability"
	"github.com/fisdash/fisdash/upload"
)

// Container holds the shared singletons: one database handle, one
// cache store, one metrics registry. Controllers are created per view
// through the factory methods and all observe the same store.
type Container struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	db          *bun.DB
	store       *cache.Store
	base        *datasource.BunSource
	source      datasource.Source
	uploader    *upload.Client
	invalidator *dashboard.Invalidator
}

// NewContainer builds the full dependency graph from the configuration.
// The upload client is only created when a webhook URL is configured;
// without one the upload endpoint reports a configuration error.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()

	store, err := cache.NewStore(cache.Config{
		DedupeWindow:  cfg.Cache.DedupeWindow,
		RetryCount:    cfg.Cache.RetryCount,
		RetryInterval: cfg.Cache.RetryInterval,
		EvictionGrace: cfg.Cache.EvictionGrace,
	}, cache.WithLogger(logger), cache.WithMetrics(metrics))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building cache store: %w", err)
	}

	base := datasource.NewBunSource(db)

	c := &Container{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		db:          db,
		store:       store,
		base:        base,
		source:      datasource.NewCachedSource(base, store),
		invalidator: dashboard.NewInvalidator(store, logger),
	}

	if cfg.Upload.WebhookURL != "" {
		uploader, err := upload.NewClient(cfg.Upload.WebhookURL,
			upload.WithLogger(logger),
			upload.WithTimeout(cfg.Upload.Timeout),
		)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("building upload client: %w", err)
		}
		c.uploader = uploader
	}

	return c, nil
}

func openDatabase(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	switch cfg.Driver {
	case "postgres":
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "sqlite3":
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		sqldb.Close()
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Close releases the shared resources in reverse construction order.
func (c *Container) Close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}

// Logger returns the shared logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Metrics returns the shared metrics registry.
func (c *Container) Metrics() *observability.Metrics { return c.metrics }

// DB returns the shared database handle.
func (c *Container) DB() *bun.DB { return c.db }

// Store returns the shared cache store.
func (c *Container) Store() *cache.Store { return c.store }

// Source returns the cached read-through data source.
func (c *Container) Source() datasource.Source { return c.source }

// Records returns the uncached single-record lookup source.
func (c *Container) Records() datasource.RecordSource { return c.base }

// Uploader returns the webhook client, or nil when not configured.
func (c *Container) Uploader() *upload.Client { return c.uploader }

// Invalidator returns the cross-view invalidation coordinator.
func (c *Container) Invalidator() *dashboard.Invalidator { return c.invalidator }

// NewListController creates a list view controller bound to the shared
// store.
func (c *Container) NewListController() *dashboard.ListController {
	return dashboard.NewListController(c.store, c.base,
		dashboard.WithListLogger(c.logger))
}

// NewStatsController creates a statistics view controller bound to the
// shared store.
func (c *Container) NewStatsController() *dashboard.StatsController {
	return dashboard.NewStatsController(c.store, c.base,
		dashboard.WithStatsLogger(c.logger))
}
