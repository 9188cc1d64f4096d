package usecase

import (
	"fmt"
	"sort"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// unionFind is a disjoint-set forest with path compression and union by rank
// over post ids.
type unionFind struct {
	parent map[int64]int64
	rank   map[int64]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[int64]int64), rank: make(map[int64]int)}
}

func (u *unionFind) add(x int64) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
}

func (u *unionFind) find(x int64) int64 {
	u.add(x)
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

func (u *unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// BuildClusters groups opportunity posts into connected components of the
// similarity graph at threshold tau, keeping components of at least minSize
// members. Edges may reference posts outside the opportunity set; those
// posts act as bridges but never appear as members. Output is ordered by
// descending size, ties broken by first-seen root.
func BuildClusters(posts []domain.OpportunityPost, edges map[int64][]domain.SimilarityScore, tau float64, minSize int) []domain.Cluster {
	uf := newUnionFind()
	for _, p := range posts {
		uf.add(p.ID)
	}
	for a, scores := range edges {
		for _, s := range scores {
			if s.OtherPostID == a {
				continue
			}
			if s.Score >= tau {
				uf.union(a, s.OtherPostID)
			}
		}
	}

	// Group opportunity members by root, preserving first-seen root order.
	groups := make(map[int64][]domain.OpportunityPost)
	var rootOrder []int64
	for _, p := range posts {
		root := uf.find(p.ID)
		if _, seen := groups[root]; !seen {
			rootOrder = append(rootOrder, root)
		}
		groups[root] = append(groups[root], p)
	}

	var kept []int64
	for _, root := range rootOrder {
		if len(groups[root]) >= minSize {
			kept = append(kept, root)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return len(groups[kept[i]]) > len(groups[kept[j]])
	})

	clusters := make([]domain.Cluster, 0, len(kept))
	for i, root := range kept {
		members := groups[root]
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].Sentiment < members[b].Sentiment
		})
		clusters = append(clusters, domain.Cluster{
			ID:             fmt.Sprintf("cluster_%d", i+1),
			Representative: members,
			Size:           len(members),
			Centroid:       centroid(members),
		})
	}
	return clusters
}

// centroid is the element-wise mean of the members' embeddings, skipping
// posts without one. Empty when no member carries an embedding.
func centroid(members []domain.OpportunityPost) []float64 {
	var sum []float64
	n := 0
	for _, m := range members {
		if len(m.Embedding) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(m.Embedding))
		}
		if len(m.Embedding) != len(sum) {
			continue
		}
		for i, v := range m.Embedding {
			sum[i] += v
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}
