package usecase

import (
	"time"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

func timeNow() time.Time { return time.Now() }

// StatusService reads job lifecycle rows for the status endpoint.
type StatusService struct {
	jobs domain.JobRepository
}

// NewStatusService constructs a StatusService.
func NewStatusService(jobs domain.JobRepository) *StatusService {
	return &StatusService{jobs: jobs}
}

// Get returns the job row for the given id.
func (s *StatusService) Get(ctx domain.Context, jobID string) (domain.Job, error) {
	return s.jobs.Get(ctx, jobID)
}
