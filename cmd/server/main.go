// Command server serves the assessment scoring HTTP API.
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

	"github.com/twmb/franz-go/pkg/kgo"

	httpserver "github.com/fairyhunter13/psychometric-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/psychometric-engine/internal/app"
	"github.com/fairyhunter13/psychometric-engine/internal/config"
	"github.com/fairyhunter13/psychometric-engine/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.BuildEngine(cfg)
	if err != nil {
		return err
	}

	rdb, err := app.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	resultCache := app.BuildCache(cfg, rdb)

	svc := usecase.NewAssessmentService(engine, nil, nil, resultCache, nil, nil)
	results := usecase.NewResultService(nil, nil)
	var dbPing, brokerPing, cachePing app.Pinger
	if rc, ok := resultCache.(app.Pinger); ok {
		cachePing = rc
	}
	if cfg.DriftWindow > 0 {
		svc.Drift = observability.NewTraitDriftMonitor(cfg.DriftWindow, cfg.DriftThreshold)
	}

	if cfg.PersistenceEnabled() {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.WaitReady(ctx, pool, 30*time.Second); err != nil {
			return err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		subs := postgres.NewSubmissionRepo(pool)
		res := postgres.NewResultRepo(pool)
		svc.Submissions, svc.Results = subs, res
		results = usecase.NewResultService(subs, res)
		dbPing = pool

		if cfg.DataRetentionDays > 0 {
			go postgres.NewCleanupService(pool, cfg.DataRetentionDays).RunPeriodic(ctx, cfg.CleanupInterval)
			slog.Info("cleanup service started", slog.Int("retention_days", cfg.DataRetentionDays), slog.Duration("interval", cfg.CleanupInterval))
		}
		go app.NewStaleSubmissionSweeper(subs, cfg.StaleSubmissionAge, cfg.StaleSweepInterval).Run(ctx)
	}

	if cfg.QueueEnabled() {
		client, err := newKafka(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		svc.Queue = redpanda.NewProducer(client)
		svc.Events = redpanda.NewEventPublisher(client, app.PublishBackoff(cfg))
		brokerPing = client
	}

	srv := httpserver.NewServer(cfg, svc, results, usecase.NewCalibrationService(engine, app.ScoringOverrides(cfg)),
		app.BuildReadinessChecks(engine, dbPing, cachePing, brokerPing)...)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, srv, app.BuildLimiter(cfg, rdb)),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting",
			slog.Int("port", cfg.Port),
			slog.Bool("persistence", cfg.PersistenceEnabled()),
			slog.Bool("queue", cfg.QueueEnabled()))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("op=server.listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	return srvHTTP.Shutdown(shutdownCtx)
}

func newKafka(ctx context.Context, cfg config.Config) (*kgo.Client, error) {
	client, err := redpanda.NewClient(cfg.KafkaBrokers)
	if err != nil {
		return nil, err
	}
	if err := redpanda.EnsureTopics(ctx, client, 3, redpanda.TopicScore, redpanda.TopicScoreDLQ, redpanda.TopicScored); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

