package usecase

import (
	"strings"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// Dedup thresholds: within a batch two names that overlap moderately are
// near-duplicates; against already-persisted names only near-identical names
// are rejected.
const (
	BatchDedupThreshold     = 0.4
	PersistedDedupThreshold = 0.8
	personaBonus            = 0.3
)

// nameTokens returns the word set of a normalized name, dropping tokens of
// two characters or fewer.
func nameTokens(name string) map[string]bool {
	tokens := map[string]bool{}
	for _, t := range strings.Fields(domain.NormalizeIdeaName(name)) {
		if len(t) > 2 {
			tokens[t] = true
		}
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// NameSimilarity scores two ideas: word-set Jaccard over their normalized
// names, floored at the persona bonus when the target users match exactly.
func NameSimilarity(a, b domain.IdeaNameRef) float64 {
	sim := jaccard(nameTokens(a.Name), nameTokens(b.Name))
	if a.TargetUser != "" &&
		domain.NormalizeIdeaName(a.TargetUser) == domain.NormalizeIdeaName(b.TargetUser) &&
		sim < personaBonus {
		sim = personaBonus
	}
	return sim
}

// Deduplicator filters a stream of candidate ideas against previously
// persisted names and against ideas already accepted in this job. Accepted
// ideas join the reference set, so each candidate sees everything before it.
type Deduplicator struct {
	persisted []domain.IdeaNameRef
	accepted  []domain.IdeaNameRef
	minScore  int
}

// NewDeduplicator builds a deduplicator seeded with persisted idea names.
func NewDeduplicator(persisted []domain.IdeaNameRef, minScore int) *Deduplicator {
	return &Deduplicator{persisted: persisted, minScore: minScore}
}

// References returns the persisted names followed by the ideas accepted so
// far, for the "existing ideas to avoid" prompt block.
func (d *Deduplicator) References() []domain.IdeaNameRef {
	refs := make([]domain.IdeaNameRef, 0, len(d.persisted)+len(d.accepted))
	refs = append(refs, d.persisted...)
	refs = append(refs, d.accepted...)
	return refs
}

// Accept reports whether the idea survives deduplication and, if so,
// registers it in the accepted set.
func (d *Deduplicator) Accept(idea domain.Idea) bool {
	if idea.Score < d.minScore {
		return false
	}
	ref := domain.IdeaNameRef{Name: idea.Name, TargetUser: idea.TargetUser}
	for _, e := range d.persisted {
		if NameSimilarity(ref, e) > PersistedDedupThreshold {
			return false
		}
	}
	for _, e := range d.accepted {
		if NameSimilarity(ref, e) > BatchDedupThreshold {
			return false
		}
	}
	d.accepted = append(d.accepted, ref)
	return true
}
