package usecase

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

// estValidationCostUSD is the rough per-call spend used for the budget gate.
const estValidationCostUSD = 0.05

const validationSystemPrompt = `You are a skeptical market analyst stress-testing SaaS product ideas. Respond with strict JSON shaped as:
{"ideas_analysis": [{"revised_score": 0-100, "market_size": "...", "competition": ["..."], "does_exist": "yes|no|unknown", "review_sentiment": {"positive": ["..."], "negative": ["..."]}, "improvement_opportunities": ["..."], "differentiation": "...", "feasibility": "...", "risks": ["..."], "go_to_market_hint": "...", "sanity_check": "...", "market_validation": {"financial_impact": "...", "time_waste_quantified": "...", "business_systems_mentioned": ["..."], "willingness_to_pay": "...", "pain_frequency": "...", "target_persona_validated": "...", "market_maturity": "...", "adoption_barriers": ["..."]}}]}
Analyze exactly the one idea given. No markdown.`

// Validator runs the optional second-pass market analysis over the
// highest-scoring ideas, bounded by the cost ledger.
type Validator struct {
	Client domain.ChatClient
	Ledger *domain.CostLedger

	// InterCallDelay paces validator calls; tests zero it.
	InterCallDelay time.Duration
	Sleep          func(ctx domain.Context, d time.Duration) error
	Now            func() time.Time
}

// Validate mutates the selected ideas in place and returns how many were
// validated. Per-idea failures keep the original idea untouched.
func (v *Validator) Validate(ctx domain.Context, ideas []domain.Idea, params domain.MineParams) int {
	lg := observability.LoggerFromContext(ctx)

	// Selection: score >= threshold, descending, capped.
	idx := make([]int, 0, len(ideas))
	for i := range ideas {
		if ideas[i].Score >= params.ValidationThreshold {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ideas[idx[a]].Score > ideas[idx[b]].Score
	})
	if len(idx) > params.MaxValidationIdeas {
		idx = idx[:params.MaxValidationIdeas]
	}

	// Budget gate: shrink the batch to what the ledger can still afford.
	affordable := 0
	for range idx {
		if !v.Ledger.CanAfford(estValidationCostUSD * float64(affordable+1)) {
			break
		}
		affordable++
	}
	if affordable < len(idx) {
		lg.Warn("validation batch reduced by cost budget",
			"selected", len(idx), "affordable", affordable)
		idx = idx[:affordable]
	}

	validated := 0
	for n, i := range idx {
		if err := v.validateOne(ctx, &ideas[i], params); err != nil {
			lg.Warn("idea validation failed, keeping original",
				"idea", ideas[i].Name, "error", err)
		} else {
			validated++
		}
		if n < len(idx)-1 && v.InterCallDelay > 0 {
			if err := v.Sleep(ctx, v.InterCallDelay); err != nil {
				break
			}
		}
	}
	return validated
}

func (v *Validator) validateOne(ctx domain.Context, idea *domain.Idea, params domain.MineParams) error {
	prompt := v.buildPrompt(*idea)
	raw, err := v.Client.Complete(ctx, domain.ChatRequest{
		Model:       params.ValidationModel,
		System:      validationSystemPrompt,
		User:        prompt,
		MaxTokens:   2000,
		Temperature: 0.2,
		Kind:        domain.CallValidation,
	})
	if err != nil {
		return err
	}

	var envelope struct {
		IdeasAnalysis []map[string]any `json:"ideas_analysis"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.IdeasAnalysis) == 0 {
		return fmt.Errorf("op=validator.parse: %w", domain.ErrMalformedResponse)
	}
	a := envelope.IdeasAnalysis[0]

	val := &domain.IdeaValidation{
		MarketSize:               asString(a["market_size"]),
		Competition:              asStringSlice(a["competition"]),
		DoesExist:                domain.CoerceDoesNotExist(asString(a["does_exist"])),
		ImprovementOpportunities: asStringSlice(a["improvement_opportunities"]),
		Differentiation:          asString(a["differentiation"]),
		Feasibility:              asString(a["feasibility"]),
		Risks:                    asStringSlice(a["risks"]),
		GoToMarketHint:           asString(a["go_to_market_hint"]),
		SanityCheck:              asString(a["sanity_check"]),
		ValidatedAt:              v.Now().UTC(),
		ValidatedByModel:         params.ValidationModel,
	}
	if rs, ok := a["review_sentiment"].(map[string]any); ok {
		val.ReviewPositive = asStringSlice(rs["positive"])
		val.ReviewNegative = asStringSlice(rs["negative"])
	}
	if mv, ok := a["market_validation"].(map[string]any); ok {
		val.MarketValidation = mv
	}

	if _, ok := a["revised_score"]; ok {
		idea.Score = domain.ClampScore(asFloat(a["revised_score"]))
	}
	idea.Validation = val
	if idea.Payload == nil {
		idea.Payload = map[string]any{}
	}
	idea.Payload["validation"] = a
	return nil
}

func (v *Validator) buildPrompt(idea domain.Idea) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Idea: %s\nScore: %d\nOne-liner: %s\nTarget user: %s\n",
		idea.Name, idea.Score, idea.OneLiner, idea.TargetUser)
	if len(idea.CoreFeatures) > 0 {
		fmt.Fprintf(&b, "Core features: %s\n", strings.Join(idea.CoreFeatures, "; "))
	}
	if idea.WhyNow != "" {
		fmt.Fprintf(&b, "Why now: %s\n", idea.WhyNow)
	}
	if idea.Rationale != "" {
		fmt.Fprintf(&b, "Rationale: %s\n", idea.Rationale)
	}
	if idea.ClusterTheme != "" {
		fmt.Fprintf(&b, "Derived from complaint cluster: %s (%d posts)\n",
			idea.ClusterTheme, idea.ClusterSize)
	}
	return b.String()
}
