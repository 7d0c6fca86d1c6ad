// Package cost estimates what recorded usage would cost on hosted backends.
package cost

import (
	"github.com/flynn-ai/llmgate/internal/config"
	"github.com/flynn-ai/llmgate/internal/usage"
)

// BaselinePerMillion is the blended USD price per 1M tokens assumed for
// models missing from the pricing table.
const BaselinePerMillion = 0.50

// Pricing maps a model name to its blended USD price per 1M tokens.
type Pricing map[string]float64

// DefaultPricing holds rough blended rates for the advertised models.
var DefaultPricing = Pricing{
	"meta-llama/Llama-3.3-70B-Instruct-Turbo": 0.30,
	"meta-llama/Llama-3.1-8B-Instruct":        0.05,
	"Qwen/Qwen2.5-72B-Instruct":               0.25,
	"gpt-4o":                                  5.00,
	"gpt-4o-mini":                             0.30,
	"gpt-3.5-turbo":                           1.00,
	"claude-sonnet-4-5":                       6.00,
	"claude-haiku-4-5":                        2.00,
}

// Rate returns the price per 1M tokens for model.
func (p Pricing) Rate(model string) float64 {
	if r, ok := p[model]; ok {
		return r
	}
	return BaselinePerMillion
}

// Summary splits ledger totals into local and cloud usage.
type Summary struct {
	Requests    int64   `json:"requests" yaml:"requests"`
	LocalTokens int64   `json:"local_tokens" yaml:"local_tokens"`
	CloudTokens int64   `json:"cloud_tokens" yaml:"cloud_tokens"`
	CloudCost   float64 `json:"estimated_cloud_cost_usd" yaml:"estimated_cloud_cost_usd"`
	Savings     float64 `json:"estimated_savings_usd" yaml:"estimated_savings_usd"`
	LocalRate   float64 `json:"local_rate" yaml:"local_rate"` // percent of tokens served locally
}

// IsLocal reports whether a provider runs on local hardware. Local models
// are free.
func IsLocal(provider string) bool {
	return provider == config.ProviderOllama
}

// Summarize prices the ledger totals. A nil pricing uses DefaultPricing.
func Summarize(totals []usage.Total, pricing Pricing) Summary {
	if pricing == nil {
		pricing = DefaultPricing
	}

	var s Summary
	for _, t := range totals {
		s.Requests += t.Requests
		if IsLocal(t.Provider) {
			s.LocalTokens += t.TotalTokens
			continue
		}
		s.CloudTokens += t.TotalTokens
		s.CloudCost += perMillion(t.TotalTokens, pricing.Rate(t.Model))
	}

	total := s.LocalTokens + s.CloudTokens
	if total == 0 {
		return s
	}
	// Savings compare against sending everything to the cloud at baseline.
	s.Savings = perMillion(total, BaselinePerMillion) - s.CloudCost
	s.LocalRate = float64(s.LocalTokens) / float64(total) * 100
	return s
}

func perMillion(tokens int64, rate float64) float64 {
	return float64(tokens) / 1_000_000 * rate
}
