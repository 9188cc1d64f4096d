package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

func TestNameSimilarity_Jaccard(t *testing.T) {
	t.Parallel()
	a := domain.IdeaNameRef{Name: "Invoice Automation Hub"}
	b := domain.IdeaNameRef{Name: "Invoice Automation Platform"}
	// Tokens {invoice, automation, hub} vs {invoice, automation, platform}:
	// intersection 2, union 4.
	assert.InDelta(t, 0.5, usecase.NameSimilarity(a, b), 1e-9)
}

func TestNameSimilarity_ShortTokensDropped(t *testing.T) {
	t.Parallel()
	a := domain.IdeaNameRef{Name: "AI CRM for Vets"}
	b := domain.IdeaNameRef{Name: "ML CRM for Vets"}
	// Two-character tokens "ai" and "ml" are dropped, leaving identical sets.
	assert.InDelta(t, 1.0, usecase.NameSimilarity(a, b), 1e-9)
}

func TestNameSimilarity_PersonaBonusFloor(t *testing.T) {
	t.Parallel()
	a := domain.IdeaNameRef{Name: "LedgerBot", TargetUser: "Freelance Accountants"}
	b := domain.IdeaNameRef{Name: "TaxPilot", TargetUser: "freelance accountants"}
	assert.InDelta(t, 0.3, usecase.NameSimilarity(a, b), 1e-9)

	// Different personas, no floor.
	b.TargetUser = "dentists"
	assert.Zero(t, usecase.NameSimilarity(a, b))
}

func TestDeduplicator_BatchThreshold(t *testing.T) {
	t.Parallel()
	d := usecase.NewDeduplicator(nil, 0)
	assert.True(t, d.Accept(domain.Idea{Name: "Invoice Automation Hub", Score: 50}))
	// Similarity 0.5 > 0.4 within the batch: rejected.
	assert.False(t, d.Accept(domain.Idea{Name: "Invoice Automation Platform", Score: 50}))
	// Unrelated name passes.
	assert.True(t, d.Accept(domain.Idea{Name: "Clinic Scheduling Assistant", Score: 50}))
}

func TestDeduplicator_PersistedThresholdIsLooser(t *testing.T) {
	t.Parallel()
	persisted := []domain.IdeaNameRef{{Name: "Invoice Automation Hub"}}
	d := usecase.NewDeduplicator(persisted, 0)
	// 0.5 similarity against a persisted name is fine (gate is >0.8).
	assert.True(t, d.Accept(domain.Idea{Name: "Invoice Automation Platform", Score: 50}))
	// Identical normalized name is not.
	assert.False(t, d.Accept(domain.Idea{Name: "invoice-automation... HUB", Score: 50}))
}

func TestDeduplicator_MinScoreGate(t *testing.T) {
	t.Parallel()
	d := usecase.NewDeduplicator(nil, 40)
	assert.False(t, d.Accept(domain.Idea{Name: "Anything", Score: 39}))
	assert.True(t, d.Accept(domain.Idea{Name: "Anything", Score: 40}))
}

func TestDeduplicator_ReferencesIncludeAccepted(t *testing.T) {
	t.Parallel()
	persisted := []domain.IdeaNameRef{{Name: "Old Idea"}}
	d := usecase.NewDeduplicator(persisted, 0)
	d.Accept(domain.Idea{Name: "Fresh Concept", Score: 50, TargetUser: "smb owners"})
	refs := d.References()
	assert.Len(t, refs, 2)
	assert.Equal(t, "Old Idea", refs[0].Name)
	assert.Equal(t, "Fresh Concept", refs[1].Name)
	assert.Equal(t, "smb owners", refs[1].TargetUser)
}
