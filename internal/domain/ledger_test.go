package domain_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

func TestCostLedger_RecordAndSummary(t *testing.T) {
	t.Parallel()
	l := domain.NewCostLedger(5)
	l.Record("big-model", domain.CallIdeation, 1000, 500, 0.02)
	l.Record("big-model", domain.CallIdeation, 800, 400, 0.015)
	l.Record("small-model", domain.CallValidation, 600, 300, 0.01)

	s := l.Summary()
	assert.InDelta(t, 0.045, s.TotalUSD, 1e-9)
	assert.InDelta(t, 0.035, s.IdeationUSD, 1e-9)
	assert.InDelta(t, 0.01, s.ValidationUSD, 1e-9)
	assert.Equal(t, 5.0, s.LimitUSD)
	assert.Equal(t, 2, s.PerModel["big-model"].Requests)
	assert.Equal(t, 1800, s.PerModel["big-model"].PromptTokens)
	assert.Equal(t, 1, s.PerModel["small-model"].Requests)
}

func TestCostLedger_CanAfford(t *testing.T) {
	t.Parallel()
	l := domain.NewCostLedger(1)
	assert.True(t, l.CanAfford(1.0))
	assert.False(t, l.CanAfford(1.01))

	l.Record("m", domain.CallIdeation, 0, 0, 0.95)
	assert.True(t, l.CanAfford(0.05))
	assert.False(t, l.CanAfford(0.06))
}

func TestCostLedger_NoLimitMeansUnlimited(t *testing.T) {
	t.Parallel()
	l := domain.NewCostLedger(0)
	l.Record("m", domain.CallIdeation, 0, 0, 1000)
	assert.True(t, l.CanAfford(1e9))
}

func TestCostLedger_ConcurrentRecord(t *testing.T) {
	t.Parallel()
	l := domain.NewCostLedger(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record("m", domain.CallIdeation, 10, 5, 0.01)
		}()
	}
	wg.Wait()
	assert.InDelta(t, 0.5, l.TotalUSD(), 1e-9)
	assert.Equal(t, 50, l.Summary().PerModel["m"].Requests)
}
