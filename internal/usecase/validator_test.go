package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

// fakeValidatorChat returns one canned analysis per call, or an error.
type fakeValidatorChat struct {
	mu    sync.Mutex
	resp  string
	err   error
	calls int
}

func (f *fakeValidatorChat) Complete(_ domain.Context, _ domain.ChatRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.resp), nil
}

func (f *fakeValidatorChat) FallbackMode() bool { return false }

const analysisJSON = `{"ideas_analysis": [{"revised_score": 82, "market_size": "mid", "competition": ["LegacyCo"], "does_exist": "no", "review_sentiment": {"positive": ["fast"], "negative": ["pricey"]}, "risks": ["churn"], "feasibility": "high"}]}`

func newValidator(chat domain.ChatClient, limitUSD float64) *usecase.Validator {
	return &usecase.Validator{
		Client: chat,
		Ledger: domain.NewCostLedger(limitUSD),
		Sleep:  func(context.Context, time.Duration) error { return nil },
		Now:    time.Now,
	}
}

func validationParams() domain.MineParams {
	return domain.MineParams{
		ValidationModel:     "test-model",
		ValidationThreshold: 70,
		MaxValidationIdeas:  10,
	}
}

func TestValidator_AttachesAnalysisAndRevisesScore(t *testing.T) {
	t.Parallel()
	chat := &fakeValidatorChat{resp: analysisJSON}
	v := newValidator(chat, 5)
	ideas := []domain.Idea{{Name: "A", Score: 75}}

	n := v.Validate(context.Background(), ideas, validationParams())
	assert.Equal(t, 1, n)
	assert.Equal(t, 82, ideas[0].Score)
	require.NotNil(t, ideas[0].Validation)
	assert.Equal(t, "no", ideas[0].Validation.DoesExist)
	assert.Equal(t, []string{"fast"}, ideas[0].Validation.ReviewPositive)
	assert.Equal(t, []string{"pricey"}, ideas[0].Validation.ReviewNegative)
	assert.Equal(t, "test-model", ideas[0].Validation.ValidatedByModel)
	// Raw analysis preserved for replay.
	assert.Contains(t, ideas[0].Payload, "validation")
}

func TestValidator_SelectionThresholdAndCap(t *testing.T) {
	t.Parallel()
	chat := &fakeValidatorChat{resp: analysisJSON}
	v := newValidator(chat, 5)
	ideas := []domain.Idea{
		{Name: "low", Score: 50},
		{Name: "a", Score: 90},
		{Name: "b", Score: 80},
		{Name: "c", Score: 71},
	}
	params := validationParams()
	params.MaxValidationIdeas = 2

	n := v.Validate(context.Background(), ideas, params)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, chat.calls)
	// The two highest above threshold were validated; the rest untouched.
	assert.NotNil(t, ideas[1].Validation)
	assert.NotNil(t, ideas[2].Validation)
	assert.Nil(t, ideas[0].Validation)
	assert.Nil(t, ideas[3].Validation)
}

func TestValidator_BudgetShrinksBatch(t *testing.T) {
	t.Parallel()
	chat := &fakeValidatorChat{resp: analysisJSON}
	// Room for exactly two estimated calls at $0.05 each.
	v := newValidator(chat, 0.10)
	ideas := []domain.Idea{
		{Name: "a", Score: 90},
		{Name: "b", Score: 85},
		{Name: "c", Score: 80},
	}

	n := v.Validate(context.Background(), ideas, validationParams())
	assert.Equal(t, 2, n)
	assert.Nil(t, ideas[2].Validation)
}

func TestValidator_CallFailureKeepsOriginal(t *testing.T) {
	t.Parallel()
	chat := &fakeValidatorChat{err: errors.New("upstream down")}
	v := newValidator(chat, 5)
	ideas := []domain.Idea{{Name: "a", Score: 90}}

	n := v.Validate(context.Background(), ideas, validationParams())
	assert.Zero(t, n)
	assert.Equal(t, 90, ideas[0].Score)
	assert.Nil(t, ideas[0].Validation)
}

func TestValidator_MalformedEnvelopeKeepsOriginal(t *testing.T) {
	t.Parallel()
	chat := &fakeValidatorChat{resp: `{"ideas_analysis": []}`}
	v := newValidator(chat, 5)
	ideas := []domain.Idea{{Name: "a", Score: 90}}

	n := v.Validate(context.Background(), ideas, validationParams())
	assert.Zero(t, n)
	assert.Nil(t, ideas[0].Validation)
}
