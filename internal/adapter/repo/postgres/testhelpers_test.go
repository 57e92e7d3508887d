package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

type execCall struct {
	sql  string
	args []any
}

// poolStub implements postgres.PgxPool and records every Exec.
type poolStub struct {
	execTag  pgconn.CommandTag
	execErr  error
	row      rowStub
	tx       *txStub
	beginErr error
	execs    []execCall
	queries  []execCall
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.queries = append(p.queries, execCall{sql: sql, args: args})
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Begin(_ context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return p.tx, nil
}

// txStub overrides the pgx.Tx methods the cleanup service calls.
type txStub struct {
	pgx.Tx
	execErrAt  int
	tags       []pgconn.CommandTag
	execs      []execCall
	committed  bool
	rolledBack bool
}

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	n := len(t.execs)
	if t.execErrAt == n {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	if n <= len(t.tags) {
		return t.tags[n-1], nil
	}
	return pgconn.CommandTag{}, nil
}

func (t *txStub) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *txStub) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
