package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

// Server wires the usecase services into HTTP handlers.
type Server struct {
	Trigger *usecase.TriggerService
	Status  *usecase.StatusService
	Version string

	startTime time.Time
}

// NewServer constructs a Server.
func NewServer(trigger *usecase.TriggerService, status *usecase.StatusService, version string) *Server {
	return &Server{
		Trigger:   trigger,
		Status:    status,
		Version:   version,
		startTime: time.Now(),
	}
}

// Root returns the service banner.
func (s *Server) Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "opportunity-miner",
			"version": s.Version,
			"status":  "ok",
			"endpoints": []string{
				"GET /",
				"GET /health",
				"POST /generate-ideas",
				"GET /jobs/{id}",
				"GET /metrics",
			},
		})
	}
}

// Health reports liveness with uptime and memory statistics.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(s.startTime).String(),
			"memory": map[string]any{
				"alloc_mb": m.Alloc / 1024 / 1024,
				"sys_mb":   m.Sys / 1024 / 1024,
				"num_gc":   m.NumGC,
			},
		})
	}
}

// GenerateIdeas triggers a mining job and returns 202 with its id.
func (s *Server) GenerateIdeas() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params domain.MineParams
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				writeError(w, r, errors.Join(domain.ErrInvalidArgument, err), nil)
				return
			}
		}

		jobID, err := s.Trigger.GenerateIdeas(r.Context(), params)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				writeError(w, r, err, nil)
				return
			}
			LoggerFrom(r).Error("trigger failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   err.Error(),
				"job_id":  jobID,
			})
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"job_id":  jobID,
		})
	}
}

// jobResponse is the wire shape of a job row.
type jobResponse struct {
	ID          string            `json:"id"`
	Status      domain.JobStatus  `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Parameters  domain.MineParams `json:"parameters"`
	Progress    *domain.Progress  `json:"progress,omitempty"`
	Result      *domain.Result    `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// JobStatus returns the lifecycle row of one job.
func (s *Server) JobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, domain.ErrInvalidArgument, "missing job id")
			return
		}
		job, err := s.Status.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, jobResponse{
			ID:          job.ID,
			Status:      job.Status,
			CreatedAt:   job.CreatedAt,
			StartedAt:   job.StartedAt,
			CompletedAt: job.CompletedAt,
			Parameters:  job.Params,
			Progress:    job.Progress,
			Result:      job.Result,
			Error:       job.Error,
		})
	}
}
