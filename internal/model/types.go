package model

import "github.com/flynn-ai/llmgate/pkg/protocol"

// Request represents a chat completion request.
type Request struct {
	Messages    []protocol.Message `json:"messages"`
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

// Response represents a chat completion response.
type Response struct {
	Content    string         `json:"content"`
	Model      string         `json:"model"`
	Usage      protocol.Usage `json:"usage"`
	DurationMs int64          `json:"duration_ms"`
}

// Advertised model lists.
var (
	DeepInfraModels = []string{
		"meta-llama/Llama-3.3-70B-Instruct-Turbo",
		"meta-llama/Llama-3.1-8B-Instruct",
		"Qwen/Qwen2.5-72B-Instruct",
	}
	OpenAIModels    = []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}
	OllamaModels    = []string{"llama3.1", "qwen2.5", "mistral"}
	AnthropicModels = []string{"claude-sonnet-4-5", "claude-haiku-4-5"}
)

// DefaultMaxTokens is sent to providers that require an explicit limit.
const DefaultMaxTokens = 4096
