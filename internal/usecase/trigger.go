package usecase

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

// TriggerService is the synchronous trigger surface: it validates the
// request, creates the pending job row, and hands the task to the queue.
type TriggerService struct {
	jobs     domain.JobRepository
	queue    domain.Queue
	defaults domain.ParamDefaults
	validate *validator.Validate
}

// NewTriggerService constructs a TriggerService.
func NewTriggerService(jobs domain.JobRepository, queue domain.Queue, defaults domain.ParamDefaults) *TriggerService {
	return &TriggerService{
		jobs:     jobs,
		queue:    queue,
		defaults: defaults,
		validate: validator.New(),
	}
}

// GenerateIdeas accepts a mining request and returns the job id immediately.
// The orchestration itself runs on the worker. An enqueue failure fails the
// job row so the caller never waits on a job that will not run.
func (s *TriggerService) GenerateIdeas(ctx domain.Context, params domain.MineParams) (string, error) {
	lg := observability.LoggerFromContext(ctx)

	if err := s.validate.Struct(params); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	params.ApplyDefaults(s.defaults)

	jobID := params.JobID
	if jobID == "" {
		jobID = uuid.New().String()
		params.JobID = jobID
	}

	if err := s.jobs.Create(ctx, domain.Job{
		ID:     jobID,
		Status: domain.JobPending,
		Params: params,
	}); err != nil {
		return "", fmt.Errorf("op=trigger.create_job: %w", err)
	}

	payload := domain.MineTaskPayload{
		JobID:     jobID,
		Params:    params,
		RequestID: observability.RequestIDFromContext(ctx),
	}
	if err := s.queue.EnqueueMine(ctx, payload); err != nil {
		lg.Error("enqueue failed", "job_id", jobID, "error", err)
		if ferr := s.jobs.SetFailed(ctx, jobID, timeNow(), "enqueue failed: "+err.Error()); ferr != nil {
			lg.Error("failed to fail job after enqueue error", "job_id", jobID, "error", ferr)
		}
		return jobID, fmt.Errorf("op=trigger.enqueue: %w", err)
	}
	observability.EnqueueJob("mine")
	lg.Info("job enqueued", "job_id", jobID, "platform", params.Platform)
	return jobID, nil
}
