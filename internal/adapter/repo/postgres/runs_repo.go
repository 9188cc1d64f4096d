package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// RunRepo persists run header rows.
type RunRepo struct{ Pool PgxPool }

// NewRunRepo constructs a RunRepo with the given pool.
func NewRunRepo(p PgxPool) *RunRepo { return &RunRepo{Pool: p} }

// CreateRun inserts a run header and returns its id.
func (r *RunRepo) CreateRun(ctx domain.Context, platform string, periodDays, sourceLimit int, notes string) (string, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.CreateRun")
	defer span.End()

	id := uuid.New().String()
	q := `INSERT INTO runs (id, platform, period_days, source_limit, notes, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.Pool.Exec(ctx, q, id, platform, periodDays, sourceLimit, notes, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=run.create: %w", err)
	}
	return id, nil
}
