package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// PostRepo reads the ingested post corpus. All queries are read-only.
type PostRepo struct{ Pool PgxPool }

// NewPostRepo constructs a PostRepo with the given pool.
func NewPostRepo(p PgxPool) *PostRepo { return &PostRepo{Pool: p} }

// SelectPosts returns candidate posts for one job. The sentinel platform
// "all" disables the platform filter; a nil minSaaSScore disables the score
// filter. Rows missing title, body or embedding are excluded.
func (r *PostRepo) SelectPosts(ctx domain.Context, platform string, since time.Time, minSaaSScore *int, limit int) ([]domain.Post, error) {
	tracer := otel.Tracer("repo.posts")
	ctx, span := tracer.Start(ctx, "posts.SelectPosts")
	defer span.End()

	q := `SELECT id, platform, created_at, title, body,
	             COALESCE(sentiment, 0), COALESCE(is_complaint, false),
	             saas_score, pain_points, similarity_scores, embedding
	      FROM posts
	      WHERE title IS NOT NULL AND body IS NOT NULL AND embedding IS NOT NULL
	        AND created_at >= $1
	        AND ($2 = 'all' OR platform = $2)
	        AND ($3::int IS NULL OR saas_score >= $3)
	      ORDER BY saas_score DESC NULLS LAST, created_at DESC
	      LIMIT $4`
	rows, err := r.Pool.Query(ctx, q, since, platform, minSaaSScore, limit)
	if err != nil {
		return nil, fmt.Errorf("op=posts.select: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Platform, &p.CreatedAt, &p.Title, &p.Body,
			&p.Sentiment, &p.IsComplaint, &p.SaaSScore, &p.PainPoints,
			&p.Similarity, &p.Embedding); err != nil {
			return nil, fmt.Errorf("op=posts.scan: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=posts.select: %w", err)
	}
	return posts, nil
}

// SelectSimilarityRows returns the stored similarity edges for each id.
// Posts with no rows are absent from the result.
func (r *PostRepo) SelectSimilarityRows(ctx domain.Context, ids []int64) (map[int64][]domain.SimilarityScore, error) {
	tracer := otel.Tracer("repo.posts")
	ctx, span := tracer.Start(ctx, "posts.SelectSimilarityRows")
	defer span.End()

	if len(ids) == 0 {
		return map[int64][]domain.SimilarityScore{}, nil
	}
	q := `SELECT id, similarity_scores FROM posts
	      WHERE id = ANY($1) AND similarity_scores IS NOT NULL`
	rows, err := r.Pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("op=posts.similarity: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.SimilarityScore, len(ids))
	for rows.Next() {
		var id int64
		var scores []domain.SimilarityScore
		if err := rows.Scan(&id, &scores); err != nil {
			return nil, fmt.Errorf("op=posts.similarity_scan: %w", err)
		}
		if len(scores) > 0 {
			out[id] = scores
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=posts.similarity: %w", err)
	}
	return out, nil
}

// RecentIdeaNames returns (name, target_user) pairs of ideas persisted within
// the lookback window, newest first, for deduplication.
func (r *PostRepo) RecentIdeaNames(ctx domain.Context, lookbackDays, limit int) ([]domain.IdeaNameRef, error) {
	tracer := otel.Tracer("repo.posts")
	ctx, span := tracer.Start(ctx, "posts.RecentIdeaNames")
	defer span.End()

	q := `SELECT name, COALESCE(target_user, '') FROM ideas
	      WHERE created_at >= now() - make_interval(days => $1)
	      ORDER BY created_at DESC
	      LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, lookbackDays, limit)
	if err != nil {
		return nil, fmt.Errorf("op=ideas.recent_names: %w", err)
	}
	defer rows.Close()

	var refs []domain.IdeaNameRef
	for rows.Next() {
		var ref domain.IdeaNameRef
		if err := rows.Scan(&ref.Name, &ref.TargetUser); err != nil {
			return nil, fmt.Errorf("op=ideas.recent_names_scan: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=ideas.recent_names: %w", err)
	}
	return refs, nil
}
