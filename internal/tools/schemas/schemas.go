// Package schemas renders tool descriptors as JSON Schema for MCP tool
// listings.
package schemas

import "github.com/flynn-ai/llmgate/internal/tool"

// Schema defines a tool's JSON schema.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SchemaBuilder provides a fluent interface for building tool schemas.
type SchemaBuilder struct {
	schema *Schema
}

// NewSchema creates a new schema builder with the given name and description.
func NewSchema(name, description string) *SchemaBuilder {
	return &SchemaBuilder{
		schema: &Schema{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": make(map[string]any),
				"required":   make([]string, 0),
			},
		},
	}
}

// AddParam adds a parameter to the schema.
func (b *SchemaBuilder) AddParam(name, paramType, description string, required bool) *SchemaBuilder {
	props := b.schema.Parameters["properties"].(map[string]any)
	props[name] = map[string]any{
		"type":        paramType,
		"description": description,
	}
	if required {
		req := b.schema.Parameters["required"].([]string)
		b.schema.Parameters["required"] = append(req, name)
	}
	return b
}

// AddParamWithEnum adds a parameter with an enum constraint.
func (b *SchemaBuilder) AddParamWithEnum(name, paramType, description string, enum []string, required bool) *SchemaBuilder {
	b.AddParam(name, paramType, description, required)
	if len(enum) > 0 {
		props := b.schema.Parameters["properties"].(map[string]any)
		props[name].(map[string]any)["enum"] = enum
	}
	return b
}

// Build returns the constructed schema.
func (b *SchemaBuilder) Build() *Schema {
	return b.schema
}

// FromDescriptor builds the schema of a tool descriptor.
func FromDescriptor(d tool.Descriptor) *Schema {
	b := NewSchema(d.Name, d.Description)
	for _, p := range d.Parameters {
		b.AddParam(p.Name, p.Type, p.Description, p.Required)
	}
	return b.Build()
}

// FromDescriptors builds schemas for descriptors, keeping their order.
func FromDescriptors(ds []tool.Descriptor) []*Schema {
	out := make([]*Schema, len(ds))
	for i, d := range ds {
		out[i] = FromDescriptor(d)
	}
	return out
}

// Properties returns the schema's properties map.
func (s *Schema) Properties() map[string]any {
	return s.Parameters["properties"].(map[string]any)
}

// Required returns the names of required parameters.
func (s *Schema) Required() []string {
	return s.Parameters["required"].([]string)
}
