package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flynn-ai/llmgate/internal/usage"
)

func TestRate(t *testing.T) {
	assert.Equal(t, 5.00, DefaultPricing.Rate("gpt-4o"))
	assert.Equal(t, BaselinePerMillion, DefaultPricing.Rate("unknown-model"))
	assert.Equal(t, 1.5, Pricing{"m": 1.5}.Rate("m"))
}

func TestSummarize(t *testing.T) {
	totals := []usage.Total{
		{Provider: "ollama", Model: "llama3.1", Requests: 3, TotalTokens: 1_000_000},
		{Provider: "openai", Model: "gpt-4o", Requests: 1, TotalTokens: 500_000},
		{Provider: "deepinfra", Model: "custom", Requests: 2, TotalTokens: 500_000},
	}

	s := Summarize(totals, nil)
	assert.EqualValues(t, 6, s.Requests)
	assert.EqualValues(t, 1_000_000, s.LocalTokens)
	assert.EqualValues(t, 1_000_000, s.CloudTokens)
	assert.InDelta(t, 2.50+0.25, s.CloudCost, 1e-9)
	assert.InDelta(t, 1.00-2.75, s.Savings, 1e-9)
	assert.InDelta(t, 50.0, s.LocalRate, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil, nil))
}

func TestSummarizeAllLocal(t *testing.T) {
	s := Summarize([]usage.Total{{Provider: "ollama", Requests: 1, TotalTokens: 2_000_000}}, nil)
	assert.Zero(t, s.CloudCost)
	assert.InDelta(t, 1.00, s.Savings, 1e-9)
	assert.InDelta(t, 100.0, s.LocalRate, 1e-9)
}
