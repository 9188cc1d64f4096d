package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

func TestParseJSONObject(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"clean object", `{"a": 1}`, `{"a": 1}`, true},
		{"surrounding whitespace", "  {\"a\": 1}\n", `{"a": 1}`, true},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"trailing prose", `{"a": 1} hope this helps!`, `{"a": 1}`, true},
		{"truncated mid-field", `{"ideas": [{"name": "x"}], "extra": "cut of`, `{"ideas": [{"name": "x"}]`, false},
		{"array not object", `[1, 2]`, "", false},
		{"empty", "", "", false},
		{"plain prose", "I cannot answer that.", "", false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			out, err := ParseJSONObject(c.in)
			if !c.ok {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, c.want, string(out))
		})
	}
}

func TestParseJSONObject_RecoversLongestPrefix(t *testing.T) {
	t.Parallel()
	// A body cut after a complete inner object still yields the outer object
	// when the trim lands on its closing brace.
	out, err := ParseJSONObject(`{"theme": "manual work"} and then the model rambled`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme": "manual work"}`, string(out))
}
