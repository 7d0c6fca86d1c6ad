package tool

import "github.com/flynn-ai/llmgate/pkg/protocol"

// Parameter describes a tool parameter.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, integer, number, boolean, array, object
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Descriptor is the immutable description of a tool.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Describe snapshots a tool's descriptor.
func Describe(t Tool) Descriptor {
	return Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  append([]Parameter(nil), t.Parameters()...),
	}
}

// Schema converts the descriptor to its wire listing form.
func (d Descriptor) Schema() protocol.ToolSchema {
	params := make([]protocol.ParameterSchema, len(d.Parameters))
	for i, p := range d.Parameters {
		params[i] = protocol.ParameterSchema{
			Name:        p.Name,
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required,
		}
	}
	return protocol.ToolSchema{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  params,
	}
}
