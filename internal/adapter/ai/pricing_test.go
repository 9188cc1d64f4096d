package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCostUSD_KnownFamily(t *testing.T) {
	t.Parallel()
	// 1000 prompt + 1000 completion on llama-3.1-8b.
	got := CostUSD("llama-3.1-8b-instant", 1000, 1000)
	assert.InDelta(t, 0.00005+0.00008, got, 1e-9)
}

func TestCostUSD_ProviderPrefixedID(t *testing.T) {
	t.Parallel()
	direct := CostUSD("llama-3.3-70b-versatile", 2000, 500)
	prefixed := CostUSD("meta-llama/llama-3.3-70b-versatile", 2000, 500)
	assert.Equal(t, direct, prefixed)
}

func TestCostUSD_UnknownModelUsesDefault(t *testing.T) {
	t.Parallel()
	got := CostUSD("mystery-model-x", 1000, 1000)
	assert.InDelta(t, 0.001+0.002, got, 1e-9)
}

func TestCostUSD_ZeroTokens(t *testing.T) {
	t.Parallel()
	assert.Zero(t, CostUSD("llama-3.1-8b-instant", 0, 0))
}
