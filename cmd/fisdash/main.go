package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/fisdash/fisdash/internal/config"
	"github.com/fisdash/fisdash/internal/observability"
	"github.com/fisdash/fisdash/internal/server"
	"github.com/fisdash/fisdash/pkg/di"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fisdash:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("fisdash", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file (yaml or json)")
	flags.String("server.addr", "", "HTTP listen address")
	flags.String("database.dsn", "", "database connection string")
	flags.String("log.level", "", "log level (debug, info, warn, error)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	container, err := di.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	// Keep the statistics entry warm so dashboards open instantly.
	stats := container.NewStatsController()
	stats.Start(cfg.Stats.RefreshInterval)
	defer stats.Close()

	srv := server.New(cfg.Server, server.Deps{
		Logger:      logger,
		Metrics:     container.Metrics(),
		Source:      container.Source(),
		Records:     container.Records(),
		Uploader:    container.Uploader(),
		Invalidator: container.Invalidator(),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
