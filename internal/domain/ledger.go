package domain

import "sync"

// Call kinds tagged onto ledger entries.
const (
	CallIdeation   = "ideation"
	CallValidation = "validation"
)

// CostLedger accumulates per-job LLM spend. One ledger lives for the duration
// of a single job; the orchestrator owns it and the chat client records into
// it. Guarded by a mutex because theme naming fans out concurrently.
type CostLedger struct {
	mu sync.Mutex

	limitUSD      float64
	totalUSD      float64
	ideationUSD   float64
	validationUSD float64
	perModel      map[string]ModelCost
}

// NewCostLedger returns a ledger with the given spend ceiling. A zero or
// negative limit means unlimited.
func NewCostLedger(limitUSD float64) *CostLedger {
	return &CostLedger{limitUSD: limitUSD, perModel: make(map[string]ModelCost)}
}

// Record adds one call's cost and token usage under the given kind.
func (l *CostLedger) Record(model, kind string, promptTokens, completionTokens int, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalUSD += costUSD
	switch kind {
	case CallValidation:
		l.validationUSD += costUSD
	default:
		l.ideationUSD += costUSD
	}
	mc := l.perModel[model]
	mc.Requests++
	mc.PromptTokens += promptTokens
	mc.CompletionTokens += completionTokens
	l.perModel[model] = mc
}

// CanAfford reports whether an estimated additional spend stays under the
// ceiling. Always true when no limit is configured.
func (l *CostLedger) CanAfford(estimateUSD float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limitUSD <= 0 {
		return true
	}
	return l.totalUSD+estimateUSD <= l.limitUSD
}

// TotalUSD returns the spend so far.
func (l *CostLedger) TotalUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalUSD
}

// Summary snapshots the ledger for the terminal job result.
func (l *CostLedger) Summary() CostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	per := make(map[string]ModelCost, len(l.perModel))
	for k, v := range l.perModel {
		per[k] = v
	}
	return CostSummary{
		TotalUSD:      l.totalUSD,
		IdeationUSD:   l.ideationUSD,
		ValidationUSD: l.validationUSD,
		LimitUSD:      l.limitUSD,
		PerModel:      per,
	}
}
