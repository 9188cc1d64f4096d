package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// JobRepo persists and loads job lifecycle rows.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Create upserts the pending job row. job_id doubles as an idempotency key:
// re-triggering with the same id leaves the existing row untouched.
func (r *JobRepo) Create(ctx domain.Context, j domain.Job) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()

	q := `INSERT INTO jobs (id, status, created_at, parameters)
	      VALUES ($1, $2, $3, $4)
	      ON CONFLICT (id) DO NOTHING`
	_, err := r.Pool.Exec(ctx, q, j.ID, j.Status, time.Now().UTC(), j.Params)
	if err != nil {
		return fmt.Errorf("op=job.create: %w", err)
	}
	return nil
}

// SetRunning marks the job running and stamps started_at.
func (r *JobRepo) SetRunning(ctx domain.Context, jobID string, at time.Time) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetRunning")
	defer span.End()

	q := `UPDATE jobs SET status=$2, started_at=$3 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, jobID, domain.JobRunning, at.UTC())
	if err != nil {
		return fmt.Errorf("op=job.set_running: %w", err)
	}
	return nil
}

// SetProgress patches the advisory progress blob. Callers log failures and
// continue; progress never gates the pipeline.
func (r *JobRepo) SetProgress(ctx domain.Context, jobID string, p domain.Progress) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetProgress")
	defer span.End()

	q := `UPDATE jobs SET progress=$2 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, jobID, p)
	if err != nil {
		return fmt.Errorf("op=job.set_progress: %w", err)
	}
	return nil
}

// SetCompleted writes the terminal result and stamps completed_at.
func (r *JobRepo) SetCompleted(ctx domain.Context, jobID string, at time.Time, res domain.Result) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetCompleted")
	defer span.End()

	q := `UPDATE jobs SET status=$2, completed_at=$3, result=$4, error=NULL WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, jobID, domain.JobCompleted, at.UTC(), res)
	if err != nil {
		return fmt.Errorf("op=job.set_completed: %w", err)
	}
	return nil
}

// SetFailed writes the terminal error and stamps completed_at.
func (r *JobRepo) SetFailed(ctx domain.Context, jobID string, at time.Time, msg string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetFailed")
	defer span.End()

	q := `UPDATE jobs SET status=$2, completed_at=$3, error=$4 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, jobID, domain.JobFailed, at.UTC(), msg)
	if err != nil {
		return fmt.Errorf("op=job.set_failed: %w", err)
	}
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, jobID string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()

	q := `SELECT id, status, created_at, started_at, completed_at,
	             parameters, progress, result, COALESCE(error, '')
	      FROM jobs WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, jobID)
	var j domain.Job
	if err := row.Scan(&j.ID, &j.Status, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		&j.Params, &j.Progress, &j.Result, &j.Error); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// SweepStuck fails jobs that have sat in running longer than maxAge. Returns
// the number of rows swept.
func (r *JobRepo) SweepStuck(ctx domain.Context, maxAge time.Duration) (int, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SweepStuck")
	defer span.End()

	q := `UPDATE jobs SET status=$1, completed_at=now(), error=$2
	      WHERE status=$3 AND started_at < now() - $4::interval`
	interval := fmt.Sprintf("%d seconds", int(maxAge.Seconds()))
	tag, err := r.Pool.Exec(ctx, q, domain.JobFailed,
		"job exceeded processing budget and was swept", domain.JobRunning, interval)
	if err != nil {
		return 0, fmt.Errorf("op=job.sweep_stuck: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
