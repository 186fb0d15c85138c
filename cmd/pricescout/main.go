// Command pricescout serves marketplace price and cover-image lookups
// over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shelfmark/pricescout/internal/api"
	"github.com/shelfmark/pricescout/internal/batch"
	"github.com/shelfmark/pricescout/internal/config"
	"github.com/shelfmark/pricescout/internal/fetch"
	"github.com/shelfmark/pricescout/internal/fingerprint"
	"github.com/shelfmark/pricescout/internal/history"
	"github.com/shelfmark/pricescout/internal/history/jsonfile"
	"github.com/shelfmark/pricescout/internal/history/postgres"
	"github.com/shelfmark/pricescout/internal/history/sqlite"
	"github.com/shelfmark/pricescout/internal/lookup"
	"github.com/shelfmark/pricescout/internal/metrics"
	"github.com/shelfmark/pricescout/pkg/breaker"
	"github.com/shelfmark/pricescout/pkg/pacer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hist, err := newHistoryBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open history backend: %w", err)
	}
	defer hist.Close()

	fetcher, err := fetch.New(fetch.Config{
		Timeout:     cfg.FetchTimeout,
		Fingerprint: fingerprint.Profile(cfg.Fingerprint),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		History:     hist,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	br := breaker.New(breaker.Config{
		MaxFailures:   cfg.BreakerMaxFailures,
		FailureWindow: cfg.BreakerWindow,
		Cooldown:      cfg.BreakerCooldown,
	}, time.Now)

	svc := lookup.NewService(br, fetcher, logger)
	runner := batch.NewRunner(svc, pacer.NewRandom(cfg.PaceMin, cfg.PaceMax), logger)
	handler := api.New(svc, runner, staticItems{}, logger).WithHistory(hist)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	metricsServer := metrics.Start(cfg.MetricsPort, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return metricsServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("service stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

func newHistoryBackend(ctx context.Context, cfg *config.Config) (history.Backend, error) {
	switch cfg.HistoryBackend {
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	case "jsonfile":
		return jsonfile.New(cfg.JSONFilePath)
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN)
	default:
		return history.NewMemory(history.DefaultMemoryCap), nil
	}
}

// staticItems backs POST /v1/batch when no catalog integration is
// configured: item IDs are treated as titles verbatim.
type staticItems struct{}

func (staticItems) Items(_ context.Context, ids []string) ([]batch.Item, error) {
	items := make([]batch.Item, len(ids))
	for i, id := range ids {
		items[i] = batch.Item{ID: id, Title: id}
	}
	return items, nil
}
