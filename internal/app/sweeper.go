package app

import (
	"context"
	"log/slog"
	"time"
)

// StuckJobStore is the slice of the job repository the sweeper needs.
type StuckJobStore interface {
	SweepStuck(ctx context.Context, maxAge time.Duration) (int, error)
}

// StuckJobSweeper periodically fails jobs that sat in running past their
// processing budget, so a crashed worker never leaves a job running forever.
type StuckJobSweeper struct {
	Store    StuckJobStore
	MaxAge   time.Duration
	Interval time.Duration
	Logger   *slog.Logger
}

// Run blocks until the context is cancelled.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Store.SweepStuck(ctx, s.MaxAge)
			if err != nil {
				s.Logger.Error("stuck job sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				s.Logger.Warn("swept stuck jobs", slog.Int("count", n))
			}
		}
	}
}
