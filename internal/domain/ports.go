package domain

import (
	"encoding/json"
	"time"
)

// PostRepository reads the ingested corpus. All reads are scoped to one job
// and never mutate the store.
type PostRepository interface {
	// SelectPosts returns posts with non-null title, body and embedding,
	// created on or after since, ordered saas_score DESC NULLS LAST,
	// created_at DESC. platform "all" disables the platform filter.
	SelectPosts(ctx Context, platform string, since time.Time, minSaaSScore *int, limit int) ([]Post, error)
	// SelectSimilarityRows returns the stored similarity edges for each id.
	// Posts with no rows are absent from the map.
	SelectSimilarityRows(ctx Context, ids []int64) (map[int64][]SimilarityScore, error)
	// RecentIdeaNames returns (name, target_user) pairs of recently
	// persisted ideas for deduplication.
	RecentIdeaNames(ctx Context, lookbackDays, limit int) ([]IdeaNameRef, error)
}

// RunRepository creates run header rows.
type RunRepository interface {
	CreateRun(ctx Context, platform string, periodDays, sourceLimit int, notes string) (string, error)
}

// IdeaRepository persists generated ideas.
type IdeaRepository interface {
	// InsertIdeas writes the batch under runID and returns the number of
	// rows actually inserted. Conflicts on (run_id, name_norm) keep the
	// existing row.
	InsertIdeas(ctx Context, runID string, ideas []Idea) (int, error)
}

// JobRepository owns the job lifecycle rows. SetProgress is advisory: callers
// log its errors and continue.
type JobRepository interface {
	Create(ctx Context, job Job) error
	SetRunning(ctx Context, jobID string, at time.Time) error
	SetProgress(ctx Context, jobID string, p Progress) error
	SetCompleted(ctx Context, jobID string, at time.Time, res Result) error
	SetFailed(ctx Context, jobID string, at time.Time, msg string) error
	Get(ctx Context, jobID string) (Job, error)
}

// Queue hands mine tasks from the trigger surface to the worker.
type Queue interface {
	EnqueueMine(ctx Context, payload MineTaskPayload) error
}

// ChatRequest is one chat-completion call. Kind tags the cost ledger entry.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	Kind        string
}

// ChatClient issues JSON-mode chat completions with retry, model fallback and
// cost accounting. Implementations return the parsed JSON object body.
type ChatClient interface {
	Complete(ctx Context, req ChatRequest) (json.RawMessage, error)
	// FallbackMode reports whether the running failure rate tripped the
	// degraded mode for this job. The orchestrator skips validation when set.
	FallbackMode() bool
}
