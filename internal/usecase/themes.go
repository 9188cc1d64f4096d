package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

const themeSampleLimit = 100

const themeSystemPrompt = `You label clusters of user complaints for a product research pipeline. Respond with a JSON object of the form {"theme": "..."} where theme is a single 10-15 word sentence capturing the common complaint pattern. No markdown, no extra keys.`

// FallbackTheme is the label used when the model cannot produce one.
func FallbackTheme(size int) string {
	return fmt.Sprintf("Cluster of %d similar complaints", size)
}

// NameTheme asks the model for a short theme sentence for one cluster.
// Any failure falls back to a generic label; theme naming never fails a job.
func NameTheme(ctx domain.Context, client domain.ChatClient, model string, c domain.Cluster) string {
	n := len(c.Representative)
	if n > themeSampleLimit {
		n = themeSampleLimit
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster of %d related posts. Excerpts:\n\n", c.Size)
	for _, p := range c.Representative[:n] {
		fmt.Fprintf(&b, "- %s: %s\n", p.Title, truncate(p.Body, 200))
	}

	raw, err := client.Complete(ctx, domain.ChatRequest{
		Model:       model,
		System:      themeSystemPrompt,
		User:        b.String(),
		MaxTokens:   100,
		Temperature: 0.3,
		Kind:        domain.CallIdeation,
	})
	if err != nil {
		lg := observability.LoggerFromContext(ctx)
		lg.Warn("theme naming failed, using fallback",
			"cluster_id", c.ID, "error", err)
		return FallbackTheme(c.Size)
	}

	var out struct {
		Theme string `json:"theme"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.Theme) == "" {
		return FallbackTheme(c.Size)
	}
	return strings.TrimSpace(out.Theme)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
