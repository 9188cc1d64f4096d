package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

const (
	ideaSampleLimit   = 100
	existingNameLimit = 100
	excerptMaxChars   = 500
)

const ideaSystemPrompt = `You are a product strategist mining clusters of user complaints for viable SaaS product ideas. Respond with strict JSON only, shaped as:
{"ideas": [{"score": 0-100, "name": "...", "one_liner": "...", "target_user": "...", "core_features": ["..."], "why_now": "...", "pricing_hint": "...", "rationale": "...", "representative_post_ids": [123], "pattern_evidence": "...", "similar_to": "...", "gaps_filled": "...", "does_not_exist": "yes|no|unknown"}]}
Emit 1-3 meaningfully distinct ideas. Prefer patterns that are both frequent (3+ posts) and high-scoring (60+). Tie each idea to the cluster theme. No markdown.`

// clusterInsights summarizes the structured signals of a cluster for the
// ideation prompt.
func clusterInsights(c domain.Cluster) string {
	var scored, highScore, structured int
	var sum, max float64
	painCounts := map[string]int{}
	typeCounts := map[string]int{}
	for _, p := range c.Representative {
		if p.SaaSScore != nil {
			scored++
			s := float64(*p.SaaSScore)
			sum += s
			if s > max {
				max = s
			}
			if s >= 60 {
				highScore++
			}
		}
		if p.SaaSScore != nil || len(p.PainPoints) > 0 {
			structured++
		}
		seen := map[string]bool{}
		for _, pp := range p.PainPoints {
			key := strings.ToLower(strings.TrimSpace(pp))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			painCounts[key]++
		}
		typeCounts[p.OpportunityType]++
	}

	var b strings.Builder
	if scored > 0 {
		fmt.Fprintf(&b, "Average SaaS score: %.1f, max: %.0f, posts scoring 60+: %d.\n",
			sum/float64(scored), max, highScore)
	}
	if top := topCounted(painCounts, 5, 2); len(top) > 0 {
		fmt.Fprintf(&b, "Recurring pain points: %s.\n", strings.Join(top, "; "))
	}
	if top := topCounted(typeCounts, 3, 1); len(top) > 0 {
		fmt.Fprintf(&b, "Opportunity types: %s.\n", strings.Join(top, ", "))
	}
	fmt.Fprintf(&b, "Posts with structured data: %d of %d.", structured, c.Size)
	return b.String()
}

// topCounted returns up to n "key (count)" entries with count >= minCount,
// ordered by descending count then key.
func topCounted(counts map[string]int, n, minCount int) []string {
	type kv struct {
		k string
		v int
	}
	var items []kv
	for k, v := range counts {
		if v >= minCount {
			items = append(items, kv{k, v})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v != items[j].v {
			return items[i].v > items[j].v
		}
		return items[i].k < items[j].k
	})
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("%s (%d)", it.k, it.v))
	}
	return out
}

// buildIdeaPrompt assembles the user message for one cluster.
func buildIdeaPrompt(c domain.Cluster, existing []domain.IdeaNameRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster theme: %s\nCluster size: %d posts.\n\n", c.ThemeSummary, c.Size)
	fmt.Fprintf(&b, "Insights:\n%s\n\n", clusterInsights(c))

	n := len(c.Representative)
	if n > ideaSampleLimit {
		n = ideaSampleLimit
	}
	b.WriteString("Posts:\n")
	for _, p := range c.Representative[:n] {
		text := truncate(strings.TrimSpace(p.Title+". "+p.Body), excerptMaxChars)
		fmt.Fprintf(&b, "- [post %d] %s", p.ID, text)
		var meta []string
		if p.SaaSScore != nil {
			meta = append(meta, fmt.Sprintf("SaaS Score %d", *p.SaaSScore))
		}
		if len(p.PainPoints) > 0 {
			meta = append(meta, "Pain Points: "+strings.Join(p.PainPoints, ", "))
		}
		if p.OpportunityType != "" {
			meta = append(meta, "Type: "+p.OpportunityType)
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(meta, " | "))
		}
		b.WriteString("\n")
	}

	if len(existing) > 0 {
		m := len(existing)
		if m > existingNameLimit {
			m = existingNameLimit
		}
		b.WriteString("\nExisting ideas to avoid duplicating:\n")
		for _, e := range existing[:m] {
			fmt.Fprintf(&b, "- %s (for %s)\n", e.Name, e.TargetUser)
		}
	}
	return b.String()
}

// GenerateIdeas runs the ideation call for one cluster and returns the
// post-processed ideas. Ideas under minScore are discarded. Malformed fields
// are coerced or dropped individually; the raw object is preserved in the
// idea payload.
func GenerateIdeas(ctx domain.Context, client domain.ChatClient, c domain.Cluster, params domain.MineParams, existing []domain.IdeaNameRef, minScore int) ([]domain.Idea, error) {
	maxTokens := 2000
	if strings.Contains(strings.ToLower(params.IdeationModel), "70b") {
		maxTokens = 3000
	}
	raw, err := client.Complete(ctx, domain.ChatRequest{
		Model:       params.IdeationModel,
		System:      ideaSystemPrompt,
		User:        buildIdeaPrompt(c, existing),
		MaxTokens:   maxTokens,
		Temperature: 0.4,
		Kind:        domain.CallIdeation,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Ideas []map[string]any `json:"ideas"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("op=ideagen.parse cluster=%s: %w", c.ID, domain.ErrMalformedResponse)
	}

	memberIDs := map[int64]bool{}
	for _, id := range c.PostIDs() {
		memberIDs[id] = true
	}

	var out []domain.Idea
	for _, obj := range envelope.Ideas {
		idea := ideaFromObject(obj, memberIDs)
		if idea.Name == "" {
			continue
		}
		idea.ClusterID = c.ID
		idea.ClusterTheme = c.ThemeSummary
		idea.ClusterSize = c.Size

		if params.AutomationEnabled() {
			boost, category, signals := AnalyzeAutomation(idea, c.ThemeSummary)
			idea.OriginalScore = idea.Score
			idea.AutomationBoost = boost
			idea.AutomationCategory = category
			idea.AutomationSignals = signals
			idea.Score = domain.ClampScore(float64(idea.Score + boost))
		} else {
			idea.OriginalScore = idea.Score
		}

		if idea.Score < minScore {
			continue
		}
		out = append(out, idea)
	}
	return out, nil
}

// ideaFromObject coerces one untyped model object into a typed idea,
// quarantining malformed fields rather than rejecting the whole idea.
func ideaFromObject(obj map[string]any, memberIDs map[int64]bool) domain.Idea {
	idea := domain.Idea{
		Name:            asString(obj["name"]),
		OneLiner:        asString(obj["one_liner"]),
		TargetUser:      asString(obj["target_user"]),
		CoreFeatures:    asStringSlice(obj["core_features"]),
		WhyNow:          asString(obj["why_now"]),
		PricingHint:     asString(obj["pricing_hint"]),
		Rationale:       asString(obj["rationale"]),
		PatternEvidence: asString(obj["pattern_evidence"]),
		SimilarTo:       asString(obj["similar_to"]),
		GapsFilled:      asString(obj["gaps_filled"]),
		DoesNotExist:    domain.CoerceDoesNotExist(asString(obj["does_not_exist"])),
		Payload:         obj,
	}
	idea.NameNorm = domain.NormalizeIdeaName(idea.Name)
	idea.Score = domain.ClampScore(asFloat(obj["score"]))
	for _, id := range asInt64Slice(obj["representative_post_ids"]) {
		if memberIDs[id] {
			idea.RepresentativePostIDs = append(idea.RepresentativePostIDs, id)
		}
	}
	return idea
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%f", &f); err == nil {
			return f
		}
	}
	return 0
}

func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s := asString(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// asInt64Slice keeps only whole-number entries.
func asInt64Slice(v any) []int64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(arr))
	for _, e := range arr {
		f, ok := e.(float64)
		if !ok || f != math.Trunc(f) {
			continue
		}
		out = append(out, int64(f))
	}
	return out
}
