package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/repo/postgres"
)

func TestNewCleanupService_DefaultRetention(t *testing.T) {
	assert.Equal(t, 90, postgres.NewCleanupService(&poolStub{}, 0).RetentionDays)
	assert.Equal(t, 7, postgres.NewCleanupService(&poolStub{}, 7).RetentionDays)
}

func TestCleanupOldData_DeletesInOneTransaction(t *testing.T) {
	tx := &txStub{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 2"), pgconn.NewCommandTag("DELETE 3")}}
	svc := postgres.NewCleanupService(&poolStub{tx: tx}, 30)

	require.NoError(t, svc.CleanupOldData(context.Background()))
	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0].sql, "DELETE FROM results")
	assert.Contains(t, tx.execs[1].sql, "DELETE FROM submissions")
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	cutoff := tx.execs[1].args[0].(time.Time)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), cutoff, time.Minute)
}

func TestCleanupOldData_RollsBackOnFailure(t *testing.T) {
	tx := &txStub{execErrAt: 2}
	svc := postgres.NewCleanupService(&poolStub{tx: tx}, 30)

	err := svc.CleanupOldData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=cleanup.submissions")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestCleanupOldData_BeginError(t *testing.T) {
	svc := postgres.NewCleanupService(&poolStub{beginErr: errors.New("pool closed")}, 30)
	err := svc.CleanupOldData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=cleanup.begin")
}

func TestRunPeriodic_StopsOnCancel(t *testing.T) {
	tx := &txStub{}
	svc := postgres.NewCleanupService(&poolStub{tx: tx}, 30)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunPeriodic(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
}
