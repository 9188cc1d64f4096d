package app_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/signalforge/opportunity-miner/internal/app"
)

type countingStore struct {
	calls  atomic.Int64
	maxAge atomic.Int64
}

func (s *countingStore) SweepStuck(_ context.Context, maxAge time.Duration) (int, error) {
	s.calls.Add(1)
	s.maxAge.Store(int64(maxAge))
	return 1, nil
}

func TestStuckJobSweeper_RunsUntilCancelled(t *testing.T) {
	t.Parallel()
	store := &countingStore{}
	sw := &app.StuckJobSweeper{
		Store:    store,
		MaxAge:   20 * time.Minute,
		Interval: time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sw.Run(ctx)

	assert.Positive(t, store.calls.Load())
	assert.Equal(t, int64(20*time.Minute), store.maxAge.Load())
}
