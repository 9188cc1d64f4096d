package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

func intPtr(v int) *int { return &v }

func TestClassify_ScoredPost_AboveThreshold(t *testing.T) {
	t.Parallel()
	p := domain.Post{
		ID:         1,
		Title:      "Manual invoice workflow is killing us",
		Body:       "We spend hours on repetitive data entry every week",
		SaaSScore:  intPtr(72),
		PainPoints: []string{"manual data entry", "no automation"},
	}
	c := usecase.Classify(p, 30, 0)
	assert.True(t, c.IsOpportunity)
	assert.Equal(t, domain.OppWorkflowAutomation, c.Type)
	assert.Contains(t, c.Signals, "manual data entry")
}

func TestClassify_ScoredPost_BelowThreshold(t *testing.T) {
	t.Parallel()
	p := domain.Post{ID: 2, Title: "anything", SaaSScore: intPtr(10)}
	c := usecase.Classify(p, 30, 0)
	assert.False(t, c.IsOpportunity)
	assert.Empty(t, c.Type)
}

func TestClassify_ScoredComplaint_FallsBackToComplaintType(t *testing.T) {
	t.Parallel()
	p := domain.Post{
		ID:          3,
		Title:       "This product lost my files again",
		SaaSScore:   intPtr(55),
		IsComplaint: true,
	}
	c := usecase.Classify(p, 30, 0)
	assert.True(t, c.IsOpportunity)
	assert.Equal(t, domain.OppComplaint, c.Type)
}

// A negative-sentiment complaint contributes a signal, but the complaint
// label is only the fallback type; a wishlist phrase wins the type.
func TestClassify_Heuristic_ComplaintDoesNotCaptureType(t *testing.T) {
	t.Parallel()
	p := domain.Post{
		ID:          4,
		Title:       "I wish there was a tool for this",
		Body:        "i built my own script but it barely works",
		Sentiment:   -0.2,
		IsComplaint: true,
	}
	c := usecase.Classify(p, 30, 0)
	assert.True(t, c.IsOpportunity)
	assert.Equal(t, domain.OppFeatureRequest, c.Type)
	assert.Contains(t, c.Signals, "Negative sentiment complaint")
	assert.Contains(t, c.Signals, "Explicit tool wishlist phrase")
	assert.Contains(t, c.Signals, "Self-built workaround described")
}

func TestClassify_Heuristic_PureComplaintGetsComplaintType(t *testing.T) {
	t.Parallel()
	p := domain.Post{
		ID:          5,
		Title:       "so disappointed with this vendor",
		Sentiment:   -0.7,
		IsComplaint: true,
	}
	c := usecase.Classify(p, 30, 0)
	assert.True(t, c.IsOpportunity)
	assert.Equal(t, domain.OppComplaint, c.Type)
	assert.Equal(t, []string{"Negative sentiment complaint"}, c.Signals)
}

func TestClassify_Heuristic_GapSuppressedAtVeryNegativeSentiment(t *testing.T) {
	t.Parallel()
	p := domain.Post{
		ID:        6,
		Title:     "there is no good tool for this",
		Sentiment: -0.9,
	}
	c := usecase.Classify(p, 30, 0)
	assert.False(t, c.IsOpportunity)
}

func TestClassify_Heuristic_BusinessProcessNeedsTwoTerms(t *testing.T) {
	t.Parallel()
	one := usecase.Classify(domain.Post{ID: 7, Body: "our onboarding is slow"}, 30, 0)
	assert.False(t, one.IsOpportunity)

	two := usecase.Classify(domain.Post{ID: 8, Body: "our onboarding process relies on one giant spreadsheet"}, 30, 0)
	assert.True(t, two.IsOpportunity)
	assert.Equal(t, domain.OppBusinessProcess, two.Type)
}

func TestClassify_Heuristic_NoSignals(t *testing.T) {
	t.Parallel()
	c := usecase.Classify(domain.Post{ID: 9, Title: "nice weather today"}, 30, 0)
	assert.False(t, c.IsOpportunity)
	assert.Empty(t, c.Signals)
}
