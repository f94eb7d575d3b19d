package llm

import "strings"

// modelCost is USD per million tokens.
type modelCost struct {
	input  float64
	output float64
}

// costTable maps model id prefixes to pricing. Longest prefix wins.
// Prices drift; these are checked against provider pricing pages when
// models are added.
var costTable = map[string]modelCost{
	"claude-opus":      {15.00, 75.00},
	"claude-sonnet":    {3.00, 15.00},
	"claude-haiku":     {0.80, 4.00},
	"gpt-4o":           {2.50, 10.00},
	"gpt-4o-mini":      {0.15, 0.60},
	"o3":               {2.00, 8.00},
	"deepseek-chat":    {0.27, 1.10},
	"deepseek-reasoner": {0.55, 2.19},
	"llama-3.3-70b":    {0.59, 0.79},
	"sonar":            {1.00, 1.00},
}

// CostOf returns the USD cost of a call. Unknown models cost zero; the
// accounting prefers under-counting to inventing prices.
func CostOf(model string, inputTokens, outputTokens int) float64 {
	var best string
	for prefix := range costTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	c := costTable[best]
	return float64(inputTokens)*c.input/1e6 + float64(outputTokens)*c.output/1e6
}
