package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

var testTools = []tool.Descriptor{
	{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression",
		Parameters: []tool.Parameter{
			{Name: "expression", Type: "string", Description: "Expression to evaluate", Required: true},
		},
	},
	{
		Name:        "web_search",
		Description: "Search the web",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "max_results", Type: "integer", Description: "Number of results"},
		},
	},
	{Name: "clock", Description: "Current time"},
}

func TestRenderToolsBlockEmpty(t *testing.T) {
	assert.Equal(t, "", RenderToolsBlock(nil))
	assert.Equal(t, Preamble, BuildSystemPrompt(nil))
	assert.Equal(t, Preamble, BuildSystemPrompt([]tool.Descriptor{}))
}

func TestRenderToolsBlockDeterministic(t *testing.T) {
	first := RenderToolsBlock(testTools)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, RenderToolsBlock(testTools))
	}

	assert.Contains(t, first, "### calculator\nDescription: Evaluate an arithmetic expression\nParameters:\n"+
		"  - expression (string, required): Expression to evaluate\n")
	assert.Contains(t, first, "  - query (string, required): Search query\n"+
		"  - max_results (integer, optional): Number of results\n")
	assert.Contains(t, first, "### clock\nDescription: Current time\nParameters:\n  (none)\n")
	assert.Contains(t, first, `"tool_call": {`)
	assert.Contains(t, first, "## IMPORTANT RULES:")

	// Tools appear in the given order.
	assert.Less(t, strings.Index(first, "### calculator"), strings.Index(first, "### web_search"))
	assert.Less(t, strings.Index(first, "### web_search"), strings.Index(first, "### clock"))
}

func TestBuildSystemPrompt(t *testing.T) {
	got := BuildSystemPrompt(testTools)
	assert.True(t, strings.HasPrefix(got, Preamble+"\n"))
	assert.True(t, strings.HasSuffix(got, RenderToolsBlock(testTools)))
}

func TestParseToolCall(t *testing.T) {
	calc := &protocol.ToolCall{Name: "calculator", Arguments: map[string]any{"expression": "2 + 2"}}

	tests := []struct {
		name string
		text string
		want *protocol.ToolCall
	}{
		{
			name: "bare",
			text: `{"tool_call": {"name": "calculator", "arguments": {"expression": "2 + 2"}}}`,
			want: calc,
		},
		{
			name: "bare with whitespace",
			text: "\n  {\"tool_call\": {\"name\": \"calculator\", \"arguments\": {\"expression\": \"2 + 2\"}}}  \n",
			want: calc,
		},
		{
			name: "fenced",
			text: "Let me compute that.\n```json\n{\"tool_call\": {\"name\": \"calculator\", \"arguments\": {\"expression\": \"2 + 2\"}}}\n```\n",
			want: calc,
		},
		{
			name: "second fence wins when first is not a call",
			text: "```json\n{\"note\": 1}\n```\nthen\n```json\n{\"tool_call\": {\"name\": \"calculator\", \"arguments\": {\"expression\": \"2 + 2\"}}}\n```",
			want: calc,
		},
		{
			name: "embedded in prose",
			text: `I will call {"tool_call": {"name": "calculator", "arguments": {"expression": "2 + 2"}}} now.`,
			want: calc,
		},
		{
			name: "braces inside strings",
			text: `sure: {"tool_call": {"name": "calculator", "arguments": {"expression": "{1} + }"}}} ok`,
			want: &protocol.ToolCall{Name: "calculator", Arguments: map[string]any{"expression": "{1} + }"}},
		},
		{
			name: "missing arguments",
			text: `{"tool_call": {"name": "clock"}}`,
			want: &protocol.ToolCall{Name: "clock", Arguments: map[string]any{}},
		},
		{
			name: "string arguments",
			text: `{"tool_call": {"name": "calculator", "arguments": "2+2"}}`,
			want: &protocol.ToolCall{Name: "calculator", Arguments: map[string]any{}, Invalid: "tool_call arguments must be an object"},
		},
		{
			name: "array arguments in fence",
			text: "```json\n{\"tool_call\": {\"name\": \"calculator\", \"arguments\": [\"2+2\"]}}\n```",
			want: &protocol.ToolCall{Name: "calculator", Arguments: map[string]any{}, Invalid: "tool_call arguments must be an object"},
		},
		{
			name: "numeric name",
			text: `{"tool_call": {"name": 5, "arguments": {}}}`,
			want: &protocol.ToolCall{Arguments: map[string]any{}, Invalid: "tool_call name must be a string"},
		},
		{
			name: "bare tool name",
			text: `{"tool_call": "calculator"}`,
			want: &protocol.ToolCall{Name: "calculator", Arguments: map[string]any{}, Invalid: "tool_call must be an object with name and arguments"},
		},
		{name: "plain answer", text: "no json here at all"},
		{name: "empty", text: "   "},
		{name: "json without key", text: `{"answer": 4}`},
		{name: "malformed", text: `{"tool_call": {"name": "calculator"`},
		{name: "array", text: `[{"tool_call": {"name": "x"}}]`, want: &protocol.ToolCall{Name: "x", Arguments: map[string]any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseToolCall(tt.text)
			if tt.want == nil {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("tool call mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseToolCallRoundTrip(t *testing.T) {
	calls := []protocol.ToolCall{
		{Name: "web_search", Arguments: map[string]any{"query": "golang", "max_results": float64(3)}},
		{Name: "nested", Arguments: map[string]any{"filter": map[string]any{"deep": map[string]any{"x": true}}}},
	}
	for _, c := range calls {
		data, err := json.Marshal(map[string]any{"tool_call": c})
		require.NoError(t, err)

		got, ok := ParseToolCall(string(data))
		require.True(t, ok)
		assert.Equal(t, c, *got)

		got, ok = ParseToolCall("```json\n" + string(data) + "\n```")
		require.True(t, ok)
		assert.Equal(t, c, *got)
	}
}

func TestFormatToolResult(t *testing.T) {
	got := FormatToolResult("calculator", map[string]any{"expression": "2 + 2", "result": 4})
	want := "Result of tool 'calculator':\n```json\n{\n  \"expression\": \"2 + 2\",\n  \"result\": 4\n}\n```\n\nNow use this result to answer the user."
	assert.Equal(t, want, got)

	assert.Contains(t, FormatToolResult("scrape", map[string]any{"html": "<b>Київ</b>"}), `"<b>Київ</b>"`)
	assert.Contains(t, FormatToolResult("x", make(chan int)), `"0x`)
}
