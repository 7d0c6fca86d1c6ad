package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/internal/tools"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubAgent struct {
	resp *protocol.ChatResponse
	err  error
	got  *protocol.ChatRequest
}

func (s *stubAgent) Chat(ctx context.Context, req *protocol.ChatRequest) (*protocol.ChatResponse, error) {
	s.got = req
	return s.resp, s.err
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out), text.Text)
	return res, out
}

func TestListTools(t *testing.T) {
	s := New(Options{Version: "2.0.0", Tools: tools.NewRegistry(nil, nil), Agent: &stubAgent{}})
	cs := connect(t, s)

	assert.Equal(t, "llmgate", cs.InitializeResult().ServerInfo.Name)

	resp, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tl := range resp.Tools {
		names[tl.Name] = true
	}
	for _, want := range []string{"calculator", "web_search", "news_search", "web_scraper", "web_summarizer", ChatToolName} {
		assert.True(t, names[want], want)
	}
}

func TestListToolsWithoutAgent(t *testing.T) {
	s := New(Options{Tools: tools.NewRegistry(nil, nil)})
	cs := connect(t, s)

	resp, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, resp.Tools, 5)
}

func TestCallRegistryTool(t *testing.T) {
	s := New(Options{Tools: tools.NewRegistry(nil, nil)})
	cs := connect(t, s)

	res, out := callTool(t, cs, "calculator", map[string]any{"expression": "6 * 7"})
	assert.False(t, res.IsError)
	assert.EqualValues(t, 42, out["result"])

	res, out = callTool(t, cs, "calculator", map[string]any{"expression": "1/0"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "division by zero")

	res, out = callTool(t, cs, "web_search", map[string]any{"query": "go"})
	assert.True(t, res.IsError)
	assert.Equal(t, "web access is disabled", out["error"])
}

func TestChatTool(t *testing.T) {
	agent := &stubAgent{resp: &protocol.ChatResponse{
		Success:       true,
		Message:       protocol.Message{Role: protocol.RoleAssistant, Content: "42"},
		ToolCallsMade: []protocol.ToolCallRecord{},
		Provider:      "ollama",
		Model:         "llama3.1",
		Iterations:    1,
	}}
	s := New(Options{Tools: tools.NewRegistry(nil, nil), Agent: agent})
	cs := connect(t, s)

	res, out := callTool(t, cs, ChatToolName, map[string]any{
		"prompt": "what is 6*7?", "system": "be brief", "provider": "ollama",
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "42", out["message"].(map[string]any)["content"])

	require.NotNil(t, agent.got)
	assert.Equal(t, "ollama", agent.got.Provider)
	assert.Equal(t, protocol.Conversation{
		{Role: protocol.RoleSystem, Content: "be brief"},
		{Role: protocol.RoleUser, Content: "what is 6*7?"},
	}, agent.got.Messages)
}

func TestChatToolErrors(t *testing.T) {
	agent := &stubAgent{err: errors.MaxIterations(10, nil)}
	s := New(Options{Tools: tools.NewRegistry(nil, nil), Agent: agent})
	cs := connect(t, s)

	res, out := callTool(t, cs, ChatToolName, map[string]any{"prompt": "loop"})
	assert.True(t, res.IsError)
	assert.Equal(t, "max_iterations", out["kind"])
	assert.EqualValues(t, 10, out["details"].(map[string]any)["iterations"])
	assert.Equal(t, []any{"Rephrase the request so it needs fewer tool calls"}, out["suggestions"])

	res, out = callTool(t, cs, ChatToolName, map[string]any{})
	assert.True(t, res.IsError)
	assert.Equal(t, "prompt is required", out["error"])
}
