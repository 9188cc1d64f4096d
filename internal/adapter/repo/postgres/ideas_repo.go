package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// IdeaRepo persists generated ideas.
type IdeaRepo struct{ Pool PgxPool }

// NewIdeaRepo constructs an IdeaRepo with the given pool.
func NewIdeaRepo(p PgxPool) *IdeaRepo { return &IdeaRepo{Pool: p} }

// confidenceLevel buckets a final score for the typed column.
func confidenceLevel(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 60:
		return "medium"
	default:
		return "low"
	}
}

// InsertIdeas writes the batch under runID. Conflicts on (run_id, name_norm)
// keep the existing row; the returned count reflects rows actually inserted.
func (r *IdeaRepo) InsertIdeas(ctx domain.Context, runID string, ideas []domain.Idea) (int, error) {
	tracer := otel.Tracer("repo.ideas")
	ctx, span := tracer.Start(ctx, "ideas.InsertIdeas")
	defer span.End()

	q := `INSERT INTO ideas (
	        id, run_id, cluster_id, name, name_norm, score, one_liner,
	        target_user, core_features, why_now, pricing_hint, rationale,
	        representative_post_ids, posts_in_common, confidence_level,
	        pattern_evidence, payload, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	      ON CONFLICT (run_id, name_norm) DO NOTHING`

	inserted := 0
	now := time.Now().UTC()
	for _, idea := range ideas {
		tag, err := r.Pool.Exec(ctx, q,
			uuid.New().String(), runID, idea.ClusterID, idea.Name, idea.NameNorm,
			idea.Score, idea.OneLiner, idea.TargetUser, idea.CoreFeatures,
			idea.WhyNow, idea.PricingHint, idea.Rationale,
			idea.RepresentativePostIDs, len(idea.RepresentativePostIDs),
			confidenceLevel(idea.Score), idea.PatternEvidence, idea.Payload, now)
		if err != nil {
			return inserted, fmt.Errorf("op=ideas.insert name=%q: %w", idea.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
