// Command worker scores queued submissions from the assessment-score topic.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/psychometric-engine/internal/app"
	"github.com/fairyhunter13/psychometric-engine/internal/config"
	"github.com/fairyhunter13/psychometric-engine/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", slog.Any("error", err))
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

	if !cfg.PersistenceEnabled() || !cfg.QueueEnabled() {
		return errors.New("op=worker.run: DB_URL and KAFKA_BROKERS are required")
	}

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

	producer, err := redpanda.NewClient(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer producer.Close()
	if err := redpanda.EnsureTopics(ctx, producer, 3, redpanda.TopicScore, redpanda.TopicScoreDLQ, redpanda.TopicScored); err != nil {
		return err
	}
	consumerClient, err := redpanda.NewClient(cfg.KafkaBrokers, redpanda.ConsumerOpts(cfg.ConsumerGroup, redpanda.TopicScore)...)
	if err != nil {
		return err
	}
	defer consumerClient.Close()

	svc := usecase.NewAssessmentService(engine,
		postgres.NewSubmissionRepo(pool),
		postgres.NewResultRepo(pool),
		app.BuildCache(cfg, rdb),
		nil,
		redpanda.NewEventPublisher(producer, app.PublishBackoff(cfg)))
	if cfg.DriftWindow > 0 {
		svc.Drift = observability.NewTraitDriftMonitor(cfg.DriftWindow, cfg.DriftThreshold)
	}
	consumer := redpanda.NewConsumer(consumerClient, producer, svc, cfg.GetRetryConfig(), cfg.ConsumerMaxConcurrency)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	slog.Info("starting worker",
		slog.String("env", cfg.AppEnv),
		slog.String("group", cfg.ConsumerGroup),
		slog.Int("concurrency", cfg.ConsumerMaxConcurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("op=worker.metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("worker stopped")
	return nil
}
