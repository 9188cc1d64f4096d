package ai

import "strings"

// modelPrice is dollars per 1K tokens.
type modelPrice struct {
	InputPer1K  float64
	OutputPer1K float64
}

// priceTable maps model families to their per-1K token prices. Lookup is by
// substring so provider-prefixed ids resolve too.
var priceTable = map[string]modelPrice{
	"llama-3.3-70b":  {InputPer1K: 0.00059, OutputPer1K: 0.00079},
	"llama-3.1-70b":  {InputPer1K: 0.00059, OutputPer1K: 0.00079},
	"llama-3.1-8b":   {InputPer1K: 0.00005, OutputPer1K: 0.00008},
	"mixtral-8x7b":   {InputPer1K: 0.00024, OutputPer1K: 0.00024},
	"gpt-4o-mini":    {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4o":         {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4-turbo":    {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-3.5-turbo":  {InputPer1K: 0.0005, OutputPer1K: 0.0015},
	"deepseek-chat":  {InputPer1K: 0.00014, OutputPer1K: 0.00028},
	"qwen-2.5-72b":   {InputPer1K: 0.0004, OutputPer1K: 0.0004},
}

// defaultPrice covers unknown models conservatively.
var defaultPrice = modelPrice{InputPer1K: 0.001, OutputPer1K: 0.002}

func priceFor(model string) modelPrice {
	m := strings.ToLower(model)
	for family, p := range priceTable {
		if strings.Contains(m, family) {
			return p
		}
	}
	return defaultPrice
}

// CostUSD computes the dollar cost of one call from its token counts.
func CostUSD(model string, promptTokens, completionTokens int) float64 {
	p := priceFor(model)
	return float64(promptTokens)/1000*p.InputPer1K + float64(completionTokens)/1000*p.OutputPer1K
}
