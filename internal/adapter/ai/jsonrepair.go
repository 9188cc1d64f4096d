package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// ParseJSONObject validates that raw is a JSON object, attempting one
// truncation-based repair: models under a max_tokens ceiling often cut the
// body mid-field, so trimming back to the last closing brace recovers the
// longest valid prefix object.
func ParseJSONObject(raw string) (json.RawMessage, error) {
	raw = stripCodeFences(raw)
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}
	if i := strings.LastIndex(trimmed, "}"); i >= 0 {
		repaired := trimmed[:i+1]
		if json.Valid([]byte(repaired)) && strings.HasPrefix(repaired, "{") {
			return json.RawMessage(repaired), nil
		}
	}
	return nil, fmt.Errorf("op=ai.parse: %w", domain.ErrMalformedResponse)
}

// stripCodeFences removes a surrounding ```json ... ``` block when present.
func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return t
}
