package domain

import "time"

// JobStatus is the lifecycle state of one mining job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// TotalSteps is the number of orchestrator stages reported in progress rows.
const TotalSteps = 10

// Progress is the advisory per-stage snapshot written into the job row.
// Readers must tolerate missing fields.
type Progress struct {
	CurrentStep    string `json:"current_step"`
	TotalSteps     int    `json:"total_steps"`
	CompletedSteps int    `json:"completed_steps"`

	PostsFetched   int `json:"posts_fetched,omitempty"`
	Opportunities  int `json:"opportunities,omitempty"`
	ClustersFound  int `json:"clusters_found,omitempty"`
	ThemesNamed    int `json:"themes_named,omitempty"`
	IdeasGenerated int `json:"ideas_generated,omitempty"`
	IdeasValidated int `json:"ideas_validated,omitempty"`
	IdeasInserted  int `json:"ideas_inserted,omitempty"`
}

// CostSummary is the ledger snapshot embedded into the terminal result.
type CostSummary struct {
	TotalUSD      float64              `json:"total_usd"`
	IdeationUSD   float64              `json:"ideation_usd"`
	ValidationUSD float64              `json:"validation_usd"`
	LimitUSD      float64              `json:"limit_usd"`
	PerModel      map[string]ModelCost `json:"per_model,omitempty"`
}

// ModelCost is the per-model slice of a CostSummary.
type ModelCost struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is the terminal summary written when a job completes.
type Result struct {
	IdeasGenerated    int         `json:"ideas_generated"`
	IdeasInserted     int         `json:"ideas_inserted"`
	ClustersProcessed int         `json:"clusters_processed"`
	PostsProcessed    int         `json:"posts_processed"`
	RunID             string      `json:"run_id,omitempty"`
	RateLimited       bool        `json:"rate_limited,omitempty"`
	FallbackMode      bool        `json:"fallback_mode,omitempty"`
	Message           string      `json:"message,omitempty"`
	DurationMS        int64       `json:"duration_ms"`
	Cost              CostSummary `json:"cost"`
}

// Job is the observable lifecycle row of one orchestration.
type Job struct {
	ID          string
	Status      JobStatus
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Params      MineParams
	Progress    *Progress
	Result      *Result
	Error       string
}

// MineParams are the per-request tunables of one job. Unset fields mean
// "use the configured default"; ApplyDefaults resolves them. Fields where
// zero is a meaningful request (a score floor of 0, a threshold of 0) are
// pointers so absence and an explicit zero stay distinguishable.
type MineParams struct {
	JobID                string   `json:"job_id,omitempty"`
	Platform             string   `json:"platform,omitempty"`
	Days                 int      `json:"days,omitempty" validate:"omitempty,min=1,max=365"`
	Limit                int      `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`
	MinSaaSScore         *int     `json:"min_saas_score,omitempty" validate:"omitempty,min=0,max=100"`
	SimilarityThreshold  *float64 `json:"similarity_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	MinClusterSize       int      `json:"min_cluster_size,omitempty" validate:"omitempty,min=1"`
	MaxClustersToProcess int      `json:"max_clusters_to_process,omitempty" validate:"omitempty,min=1"`
	EnableAutomation     *bool    `json:"enable_automation_boost,omitempty"`
	EnableValidation     *bool    `json:"enable_validation,omitempty"`
	ValidationThreshold  int      `json:"validation_threshold,omitempty" validate:"omitempty,min=0,max=100"`
	MaxValidationIdeas   int      `json:"max_validation_ideas,omitempty" validate:"omitempty,min=0"`
	IdeationModel        string   `json:"ideation_model,omitempty"`
	ValidationModel      string   `json:"validation_model,omitempty"`

	ComplaintSentimentMax float64 `json:"complaint_sentiment_max,omitempty" validate:"omitempty,gte=-1,lte=1"`
}

// ParamDefaults carries the configured fallbacks applied to a request.
type ParamDefaults struct {
	Platform            string
	Days                int
	Limit               int
	MinSaaSScore        int
	SimilarityThreshold float64
	MinClusterSize      int
	ValidationThreshold int
	MaxValidationIdeas  int
	IdeationModel       string
	ValidationModel     string
}

// ApplyDefaults fills unset fields from d. Booleans default to true.
func (p *MineParams) ApplyDefaults(d ParamDefaults) {
	if p.Platform == "" {
		p.Platform = d.Platform
	}
	if p.Days == 0 {
		p.Days = d.Days
	}
	if p.Limit == 0 {
		p.Limit = d.Limit
	}
	if p.MinSaaSScore == nil {
		v := d.MinSaaSScore
		p.MinSaaSScore = &v
	}
	if p.SimilarityThreshold == nil {
		v := d.SimilarityThreshold
		p.SimilarityThreshold = &v
	}
	if p.MinClusterSize == 0 {
		p.MinClusterSize = d.MinClusterSize
	}
	if p.ValidationThreshold == 0 {
		p.ValidationThreshold = d.ValidationThreshold
	}
	if p.MaxValidationIdeas == 0 {
		p.MaxValidationIdeas = d.MaxValidationIdeas
	}
	if p.IdeationModel == "" {
		p.IdeationModel = d.IdeationModel
	}
	if p.ValidationModel == "" {
		p.ValidationModel = d.ValidationModel
	}
	t := true
	if p.EnableAutomation == nil {
		p.EnableAutomation = &t
	}
	if p.EnableValidation == nil {
		p.EnableValidation = &t
	}
}

// MinSaaS returns the resolved score floor; unset means no floor.
func (p MineParams) MinSaaS() int {
	if p.MinSaaSScore != nil {
		return *p.MinSaaSScore
	}
	return 0
}

// SimilarityTau returns the resolved clustering threshold.
func (p MineParams) SimilarityTau() float64 {
	if p.SimilarityThreshold != nil {
		return *p.SimilarityThreshold
	}
	return 0
}

// AutomationEnabled reports the resolved automation-boost toggle.
func (p MineParams) AutomationEnabled() bool {
	return p.EnableAutomation == nil || *p.EnableAutomation
}

// ValidationEnabled reports the resolved validation toggle.
func (p MineParams) ValidationEnabled() bool {
	return p.EnableValidation == nil || *p.EnableValidation
}

// MineTaskPayload is the message carried on the queue from the trigger
// surface to the worker.
type MineTaskPayload struct {
	JobID     string     `json:"job_id"`
	Params    MineParams `json:"params"`
	RequestID string     `json:"request_id,omitempty"`
}
