// Package protocol provides the shared request/response types of llmgate.
// These types can be imported by external clients of the HTTP API.
package protocol

import "fmt"

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is a single conversation entry.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Conversation is an ordered, append-only list of messages.
type Conversation []Message

// HasSystem reports whether any message has the system role.
func (c Conversation) HasSystem() bool {
	for _, m := range c {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

// ChatRequest is the input accepted by the orchestration loop.
type ChatRequest struct {
	Messages    Conversation `json:"messages"`
	Provider    string       `json:"provider,omitempty"` // deepinfra, openai, ollama, anthropic
	Model       string       `json:"model,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"` // nil means the configured default (0.7)
}

// Validate checks the request shape before it reaches a backend.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}

// Usage is the token accounting snapshot reported by a backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two snapshots.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// ToolCallRecord is one audit entry of an executed tool invocation.
type ToolCallRecord struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
}

// ChatResponse is the result of a completed orchestration loop.
type ChatResponse struct {
	RequestID     string           `json:"request_id,omitempty"`
	Success       bool             `json:"success"`
	Message       Message          `json:"message"`
	ToolCallsMade []ToolCallRecord `json:"tool_calls_made"`
	Usage         *Usage           `json:"usage,omitempty"`
	Provider      string           `json:"provider"`
	Model         string           `json:"model"`
	Iterations    int              `json:"iterations"`
}

// ErrorResponse is the body returned for a fatal request failure.
type ErrorResponse struct {
	Success     bool           `json:"success"`
	Error       string         `json:"error"`
	Kind        string         `json:"kind"`
	Details     map[string]any `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
}
