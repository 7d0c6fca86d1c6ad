package protocol

// ToolCall is a tool invocation parsed out of model output.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	// Invalid explains why a directive could not be decoded as a call.
	// Arguments is empty when it is set.
	Invalid string `json:"-"`
}

// ToolSchema describes a tool for listing surfaces (HTTP, CLI).
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes one declared tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"` // string, integer, number, boolean, array, object
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// ProviderInfo describes a backend for the providers listing.
type ProviderInfo struct {
	Name      string   `json:"name" yaml:"name"`
	Available bool     `json:"available" yaml:"available"`
	Models    []string `json:"models" yaml:"models"`
}
