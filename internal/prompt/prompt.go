// Package prompt implements the text protocol between the loop and a model:
// it renders the tool instructions, parses tool calls out of free-form
// replies and formats tool results back into conversation text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/flynn-ai/llmgate/internal/tool"
)

// Preamble is the persona placed before the tools section.
const Preamble = "You are a smart AI assistant with access to tools.\n" +
	"Your task is to help users, using the available tools when necessary.\n"

const callSyntax = "To use a tool, return JSON in your response in this format:\n" +
	"```json\n" +
	"{\n" +
	"  \"tool_call\": {\n" +
	"    \"name\": \"tool_name\",\n" +
	"    \"arguments\": {\n" +
	"      \"param1\": \"value1\",\n" +
	"      \"param2\": \"value2\"\n" +
	"    }\n" +
	"  }\n" +
	"}\n" +
	"```\n"

var rules = []string{
	"If you need an exact calculation, current information or the content of a page, use the matching tool",
	"Return ONLY the JSON with tool_call, without any additional text",
	"Call one tool at a time and wait for its result",
	"After receiving a tool result, give the user a clear answer",
	"If the question is simple and needs no tools, answer directly",
}

// RenderToolsBlock describes the tools and the exact call syntax.
// Output depends only on tool order and parameter declaration order.
// An empty list renders as the empty string.
func RenderToolsBlock(tools []tool.Descriptor) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## AVAILABLE TOOLS\n\n")
	b.WriteString("You have access to the following tools:\n")

	for _, t := range tools {
		fmt.Fprintf(&b, "\n### %s\n", t.Name)
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
		b.WriteString("Parameters:\n")
		if len(t.Parameters) == 0 {
			b.WriteString("  (none)\n")
		}
		for _, p := range t.Parameters {
			fmt.Fprintf(&b, "  - %s (%s, %s): %s\n", p.Name, p.Type, requiredness(p.Required), p.Description)
		}
	}

	b.WriteString("\n## HOW TO USE TOOLS\n\n")
	b.WriteString(callSyntax)

	b.WriteString("\n## IMPORTANT RULES:\n\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}

	return b.String()
}

// BuildSystemPrompt prepends the persona to the tools block.
// With no tools only the persona is returned.
func BuildSystemPrompt(tools []tool.Descriptor) string {
	if len(tools) == 0 {
		return Preamble
	}
	return Preamble + "\n" + RenderToolsBlock(tools)
}

func requiredness(required bool) string {
	if required {
		return "required"
	}
	return "optional"
}
