package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/opportunity-miner/internal/adapter/repo/postgres"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

func TestPostRepo_SelectPosts_ScansRows(t *testing.T) {
	t.Parallel()
	now := time.Now()
	pool := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*int64) = 7
			*dest[1].(*string) = "reddit"
			*dest[2].(*time.Time) = now
			*dest[3].(*string) = "title"
			*dest[4].(*string) = "body"
			*dest[5].(*float64) = -0.4
			*dest[6].(*bool) = true
			score := 55
			*dest[7].(**int) = &score
			*dest[8].(*[]string) = []string{"manual work"}
			*dest[9].(*[]domain.SimilarityScore) = []domain.SimilarityScore{{OtherPostID: 8, Score: 0.7}}
			*dest[10].(*[]float64) = []float64{0.1}
			return nil
		},
	}}}
	repo := postgres.NewPostRepo(pool)

	posts, err := repo.SelectPosts(context.Background(), "reddit", now.Add(-24*time.Hour), nil, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, int64(7), p.ID)
	assert.True(t, p.IsComplaint)
	require.NotNil(t, p.SaaSScore)
	assert.Equal(t, 55, *p.SaaSScore)
	assert.Equal(t, []string{"manual work"}, p.PainPoints)
	require.Len(t, p.Similarity, 1)
	assert.Equal(t, int64(8), p.Similarity[0].OtherPostID)
}

func TestPostRepo_SelectPosts_QueryError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{queryErr: errors.New("down")}
	repo := postgres.NewPostRepo(pool)

	_, err := repo.SelectPosts(context.Background(), "all", time.Now(), nil, 10)
	assert.Error(t, err)
}

func TestPostRepo_SelectSimilarityRows_EmptyInput(t *testing.T) {
	t.Parallel()
	pool := &poolStub{queryErr: errors.New("must not be called")}
	repo := postgres.NewPostRepo(pool)

	out, err := repo.SelectSimilarityRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPostRepo_SelectSimilarityRows(t *testing.T) {
	t.Parallel()
	pool := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*int64) = 1
			*dest[1].(*[]domain.SimilarityScore) = []domain.SimilarityScore{{OtherPostID: 2, Score: 0.9}}
			return nil
		},
		func(dest ...any) error {
			*dest[0].(*int64) = 3
			*dest[1].(*[]domain.SimilarityScore) = nil // empty blob, dropped
			return nil
		},
	}}}
	repo := postgres.NewPostRepo(pool)

	out, err := repo.SelectSimilarityRows(context.Background(), []int64{1, 3})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[1][0].Score)
}

func TestPostRepo_RecentIdeaNames(t *testing.T) {
	t.Parallel()
	pool := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*string) = "Old Idea"
			*dest[1].(*string) = "agencies"
			return nil
		},
	}}}
	repo := postgres.NewPostRepo(pool)

	refs, err := repo.RecentIdeaNames(context.Background(), 30, 100)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Old Idea", refs[0].Name)
	assert.Equal(t, "agencies", refs[0].TargetUser)
}

func TestRunRepo_CreateRun(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewRunRepo(pool)

	id, err := repo.CreateRun(context.Background(), "all", 14, 1000, "threshold=0.30")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, pool.execCalls, 1)
	assert.Equal(t, id, pool.execCalls[0].args[0])
	assert.Equal(t, "all", pool.execCalls[0].args[1])
}
