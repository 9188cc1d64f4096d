package httpserver_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/signalforge/opportunity-miner/internal/adapter/httpserver"
	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

type stubJobs struct {
	jobs      map[string]domain.Job
	failedMsg string
}

func (s *stubJobs) Create(_ domain.Context, job domain.Job) error {
	if s.jobs == nil {
		s.jobs = map[string]domain.Job{}
	}
	s.jobs[job.ID] = job
	return nil
}
func (s *stubJobs) SetRunning(domain.Context, string, time.Time) error      { return nil }
func (s *stubJobs) SetProgress(domain.Context, string, domain.Progress) error { return nil }
func (s *stubJobs) SetCompleted(domain.Context, string, time.Time, domain.Result) error {
	return nil
}
func (s *stubJobs) SetFailed(_ domain.Context, _ string, _ time.Time, msg string) error {
	s.failedMsg = msg
	return nil
}
func (s *stubJobs) Get(_ domain.Context, id string) (domain.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return job, nil
}

type stubQueue struct{ err error }

func (s *stubQueue) EnqueueMine(domain.Context, domain.MineTaskPayload) error { return s.err }

func newTestRouter(jobs *stubJobs, queue *stubQueue) http.Handler {
	trigger := usecase.NewTriggerService(jobs, queue, domain.ParamDefaults{
		Platform: "all", Days: 14, Limit: 1000, MinSaaSScore: 30,
		SimilarityThreshold: 0.3, MinClusterSize: 2,
		ValidationThreshold: 70, MaxValidationIdeas: 10,
		IdeationModel: "big", ValidationModel: "small",
	})
	status := usecase.NewStatusService(jobs)
	srv := httpserver.NewServer(trigger, status, "test")

	r := chi.NewRouter()
	r.Get("/", srv.Root())
	r.Get("/health", srv.Health())
	r.Post("/generate-ideas", srv.GenerateIdeas())
	r.Get("/jobs/{id}", srv.JobStatus())
	return r
}

func TestRoot_Banner(t *testing.T) {
	t.Parallel()
	h := newTestRouter(&stubJobs{}, &stubQueue{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "opportunity-miner", body["service"])
	assert.Equal(t, "test", body["version"])
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h := newTestRouter(&stubJobs{}, &stubQueue{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "memory")
}

func TestGenerateIdeas_Accepted(t *testing.T) {
	t.Parallel()
	jobs := &stubJobs{}
	h := newTestRouter(jobs, &stubQueue{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-ideas",
		strings.NewReader(`{"platform": "reddit", "days": 7}`))
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	created := jobs.jobs[jobID]
	assert.Equal(t, domain.JobPending, created.Status)
	assert.Equal(t, "reddit", created.Params.Platform)
	assert.Equal(t, 7, created.Params.Days)
}

func TestGenerateIdeas_EmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()
	jobs := &stubJobs{}
	h := newTestRouter(jobs, &stubQueue{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-ideas", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, jobs.jobs, 1)
	for _, job := range jobs.jobs {
		assert.Equal(t, "all", job.Params.Platform)
		assert.Equal(t, 14, job.Params.Days)
	}
}

func TestGenerateIdeas_ValidationError(t *testing.T) {
	t.Parallel()
	h := newTestRouter(&stubJobs{}, &stubQueue{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-ideas",
		strings.NewReader(`{"days": 9999}`))
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj, _ := body["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "INVALID_ARGUMENT", errObj["code"])
}

func TestGenerateIdeas_MalformedJSON(t *testing.T) {
	t.Parallel()
	h := newTestRouter(&stubJobs{}, &stubQueue{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-ideas",
		strings.NewReader(`{"days": `))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateIdeas_EnqueueFailure(t *testing.T) {
	t.Parallel()
	jobs := &stubJobs{}
	h := newTestRouter(jobs, &stubQueue{err: errors.New("brokers down")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-ideas", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["job_id"])
	assert.Contains(t, jobs.failedMsg, "enqueue failed")
}

func TestJobStatus_Found(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	jobs := &stubJobs{jobs: map[string]domain.Job{
		"j1": {
			ID:        "j1",
			Status:    domain.JobCompleted,
			CreatedAt: now,
			Result:    &domain.Result{IdeasInserted: 3, RunID: "run-1"},
		},
	}}
	h := newTestRouter(jobs, &stubQueue{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/j1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "j1", body["id"])
	assert.Equal(t, "completed", body["status"])
	result, _ := body["result"].(map[string]any)
	require.NotNil(t, result)
	assert.EqualValues(t, 3, result["ideas_inserted"])
}

func TestJobStatus_NotFound(t *testing.T) {
	t.Parallel()
	h := newTestRouter(&stubJobs{}, &stubQueue{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj, _ := body["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}
