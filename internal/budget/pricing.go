package budget

// Rate holds per-1M-token USD rates for one model (§4.3).
type Rate struct {
	InputPerM      float64
	OutputPerM     float64
	CacheReadPerM  float64
	CacheWritePerM float64
}

// Table maps model name to its Rate, falling back to Default for unknown
// models.
type Table struct {
	Rates   map[string]Rate
	Default Rate
}

// DefaultTable is the pricing table shipped with the platform, grounded on
// the published per-model rates for the adapters this system targets.
func DefaultTable() Table {
	return Table{
		Rates: map[string]Rate{
			"claude-opus-4":     {InputPerM: 15, OutputPerM: 75, CacheReadPerM: 1.5, CacheWritePerM: 18.75},
			"claude-sonnet-4":   {InputPerM: 3, OutputPerM: 15, CacheReadPerM: 0.3, CacheWritePerM: 3.75},
			"claude-haiku-3.5":  {InputPerM: 0.8, OutputPerM: 4, CacheReadPerM: 0.08, CacheWritePerM: 1},
			"gpt-4o":            {InputPerM: 2.5, OutputPerM: 10, CacheReadPerM: 1.25, CacheWritePerM: 2.5},
			"gpt-4o-mini":       {InputPerM: 0.15, OutputPerM: 0.6, CacheReadPerM: 0.075, CacheWritePerM: 0.15},
		},
		Default: Rate{InputPerM: 3, OutputPerM: 15, CacheReadPerM: 0.3, CacheWritePerM: 3.75},
	}
}

// Cost computes the USD cost of one usage delta for model (I6, P5): a pure
// function of token counts and the pricing table, with no side effects.
func (t Table) Cost(model string, tokensIn, tokensOut, cacheRead, cacheWrite int64) float64 {
	rate, ok := t.Rates[model]
	if !ok {
		rate = t.Default
	}
	return float64(tokensIn)*rate.InputPerM/1_000_000 +
		float64(tokensOut)*rate.OutputPerM/1_000_000 +
		float64(cacheRead)*rate.CacheReadPerM/1_000_000 +
		float64(cacheWrite)*rate.CacheWritePerM/1_000_000
}
