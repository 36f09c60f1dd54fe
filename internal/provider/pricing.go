package provider

import "strings"

// rate is the per-million-token USD cost for a model family.
type rate struct {
	substr        string
	inPerMillion  float64
	outPerMillion float64
}

// rates is matched top-to-bottom by substring, first hit wins; a model
// matching no entry is costed at defaultInRate/defaultOutRate.
var rates = []rate{
	{"claude-opus-4", 15, 75},
	{"claude-sonnet-4", 3, 15},
	{"claude-haiku-3", 0.80, 4},
	{"claude-3-5-haiku", 0.80, 4},
	{"gpt-4o", 2.50, 10},
	{"deepseek", 0.27, 1.10},
	{"gemini-2.0-flash", 0.10, 0.40},
	{"gemini-2.5-pro", 1.25, 10},
	{"gemini-2.5-flash", 0.15, 0.60},
	{"gemini", 0.15, 0.60},
	{"grok-3", 3, 15},
	{"grok-2", 2, 10},
	{"grok", 5, 15},
}

const defaultInRate, defaultOutRate float64 = 3, 15

// CostUSD computes the dollar cost of a turn's usage:
// (input*inRate + output*outRate) / 1e6, rate selected by the first
// substring match against model.
func CostUSD(model string, inputTokens, outputTokens int) float64 {
	in, out := defaultInRate, defaultOutRate
	for _, r := range rates {
		if strings.Contains(model, r.substr) {
			in, out = r.inPerMillion, r.outPerMillion
			break
		}
	}
	return (float64(inputTokens)*in + float64(outputTokens)*out) / 1e6
}
