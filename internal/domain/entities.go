// Package domain holds the core entities and ports of the opportunity miner.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
	ErrDailyLimitExceeded = errors.New("daily request limit exceeded")
	ErrMalformedResponse  = errors.New("malformed model response")
	ErrCircuitOpen        = errors.New("circuit open")
	ErrBudgetExceeded     = errors.New("cost budget exceeded")
	ErrInternal           = errors.New("internal error")
)

// Context is an alias so adapters and usecases share one context type.
type Context = context.Context

// SimilarityScore is one pre-computed pairwise similarity edge stored on a post.
type SimilarityScore struct {
	OtherPostID int64   `json:"other_post_id"`
	Score       float64 `json:"score"`
}

// Post is a single item of ingested social-media content. Posts are created by
// the external crawlers and are immutable to this service.
type Post struct {
	ID          int64
	Platform    string
	CreatedAt   time.Time
	Title       string
	Body        string
	Sentiment   float64 // -1..1
	IsComplaint bool
	SaaSScore   *int // 0..100, nil when the scoring pipeline has not run
	PainPoints  []string
	Similarity  []SimilarityScore
	Embedding   []float64
}

// Opportunity types assigned by the classifier.
const (
	OppComplaint          = "complaint"
	OppFeatureRequest     = "feature_request"
	OppDIYSolution        = "diy_solution"
	OppToolGap            = "tool_gap"
	OppMarketResearch     = "market_research"
	OppBusinessProcess    = "business_process"
	OppFrustration        = "frustration"
	OppWorkflowAutomation = "workflow_automation"
	OppIntegration        = "integration_platform"
	OppCompliance         = "compliance_tool"
	OppAnalytics          = "analytics_dashboard"
)

// OpportunityPost is a post the classifier judged commercially interesting.
// Derived in-memory per job; never persisted.
type OpportunityPost struct {
	Post
	OpportunityType string
	Signals         []string
}

// Cluster is a connected component of opportunity posts in the similarity
// graph above the job's threshold.
type Cluster struct {
	ID string
	// Representative holds the members sorted by ascending sentiment
	// (most negative first).
	Representative []OpportunityPost
	Size           int
	Centroid       []float64
	ThemeSummary   string
}

// PostIDs returns the member post ids of the cluster.
func (c Cluster) PostIDs() []int64 {
	ids := make([]int64, 0, len(c.Representative))
	for _, p := range c.Representative {
		ids = append(ids, p.ID)
	}
	return ids
}

// IdeaNameRef is a (name, target_user) pair used for deduplication against
// previously persisted ideas.
type IdeaNameRef struct {
	Name       string
	TargetUser string
}

// IdeaValidation carries the second-pass market analysis attached by the
// validator. Fields the model returned but we do not type end up in the
// idea's Payload blob.
type IdeaValidation struct {
	MarketSize               string         `json:"market_size,omitempty"`
	Competition              []string       `json:"competition,omitempty"`
	DoesExist                string         `json:"does_exist,omitempty"`
	ReviewPositive           []string       `json:"review_positive,omitempty"`
	ReviewNegative           []string       `json:"review_negative,omitempty"`
	ImprovementOpportunities []string       `json:"improvement_opportunities,omitempty"`
	Differentiation          string         `json:"differentiation,omitempty"`
	Feasibility              string         `json:"feasibility,omitempty"`
	Risks                    []string       `json:"risks,omitempty"`
	GoToMarketHint           string         `json:"go_to_market_hint,omitempty"`
	SanityCheck              string         `json:"sanity_check,omitempty"`
	MarketValidation         map[string]any `json:"market_validation,omitempty"`
	ValidatedAt              time.Time      `json:"validated_at"`
	ValidatedByModel         string         `json:"validated_by_model"`
}

// Idea is one generated product concept, linked to exactly one cluster and,
// once persisted, exactly one run.
type Idea struct {
	Name                  string
	NameNorm              string
	Score                 int // 0..100 after clamping
	OneLiner              string
	TargetUser            string
	CoreFeatures          []string
	WhyNow                string
	PricingHint           string
	Rationale             string
	RepresentativePostIDs []int64
	PatternEvidence       string
	SimilarTo             string
	GapsFilled            string
	DoesNotExist          string // yes | no | unknown

	ClusterID    string
	ClusterTheme string
	ClusterSize  int

	AutomationCategory string
	AutomationSignals  []string
	OriginalScore      int
	AutomationBoost    int

	Validation *IdeaValidation
	// Payload preserves the raw model output for forensic replay.
	Payload map[string]any
}

// NormalizeIdeaName lowercases a name and collapses every run of
// non-alphanumeric characters to a single space, trimmed. It is a fixed
// point: NormalizeIdeaName(NormalizeIdeaName(s)) == NormalizeIdeaName(s).
func NormalizeIdeaName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// CoerceDoesNotExist maps free-form model prose onto the persisted tri-valued
// enum. The original prose is preserved in the payload blob by the caller.
func CoerceDoesNotExist(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true":
		return "yes"
	case "no", "false":
		return "no"
	default:
		return "unknown"
	}
}

// ClampScore bounds a model-returned score to [0,100], rounding to int.
func ClampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v + 0.5)
}

// Run groups all ideas produced by one successful orchestration.
type Run struct {
	ID          string
	Platform    string
	PeriodDays  int
	SourceLimit int
	Notes       string
	CreatedAt   time.Time
}
