// Package postgres persists submissions and scored results in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool the repositories depend on.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

//go:embed schema.sql
var schemaSQL string

// NewPool creates a traced pgx connection pool from the provided DSN.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.NewPool: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.NewPool: %w", err)
	}
	return pool, nil
}

// WaitReady pings the pool until it answers or maxWait elapses.
func WaitReady(ctx context.Context, pool interface{ Ping(context.Context) error }, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 3 * time.Second
	bo.MaxElapsedTime = maxWait
	op := func() error {
		if err := pool.Ping(ctx); err != nil {
			slog.Debug("postgres not ready", slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("op=postgres.WaitReady: %w", err)
	}
	return nil
}

// EnsureSchema creates the submissions and results tables when missing.
func EnsureSchema(ctx context.Context, p PgxPool) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=postgres.EnsureSchema: %w", err)
	}
	return nil
}
