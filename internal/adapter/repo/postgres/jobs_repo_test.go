package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/opportunity-miner/internal/adapter/repo/postgres"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

func TestJobRepo_Create_Idempotent(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool)

	err := repo.Create(context.Background(), domain.Job{
		ID:     "job-1",
		Status: domain.JobPending,
		Params: domain.MineParams{Platform: "all"},
	})
	require.NoError(t, err)

	require.Len(t, pool.execCalls, 1)
	assert.Contains(t, pool.execCalls[0].sql, "ON CONFLICT (id) DO NOTHING")
	assert.Equal(t, "job-1", pool.execCalls[0].args[0])
	assert.Equal(t, domain.JobPending, pool.execCalls[0].args[1])
}

func TestJobRepo_SetFailed(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool)

	at := time.Now()
	err := repo.SetFailed(context.Background(), "job-1", at, "boom")
	require.NoError(t, err)

	require.Len(t, pool.execCalls, 1)
	call := pool.execCalls[0]
	assert.Equal(t, "job-1", call.args[0])
	assert.Equal(t, domain.JobFailed, call.args[1])
	assert.Equal(t, "boom", call.args[3])
}

func TestJobRepo_SetCompleted_ClearsError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool)

	err := repo.SetCompleted(context.Background(), "job-1", time.Now(), domain.Result{IdeasInserted: 2})
	require.NoError(t, err)
	assert.Contains(t, pool.execCalls[0].sql, "error=NULL")
}

func TestJobRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewJobRepo(pool)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepo_Get_OtherErrorsPassThrough(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(...any) error { return errors.New("conn reset") }}}
	repo := postgres.NewJobRepo(pool)

	_, err := repo.Get(context.Background(), "j1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepo_SweepStuck(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool)

	n, err := repo.SweepStuck(context.Background(), 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	call := pool.execCalls[0]
	assert.Equal(t, domain.JobFailed, call.args[0])
	assert.Equal(t, domain.JobRunning, call.args[2])
	assert.Equal(t, "1200 seconds", call.args[3])
}
