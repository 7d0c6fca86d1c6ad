package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flynn-ai/llmgate/internal/config"
	"github.com/flynn-ai/llmgate/internal/usage"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Web.Enabled = false
	cfg.Usage.DBPath = filepath.Join(t.TempDir(), "usage.db")
	return cfg
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 5, a.tools.Len())
	assert.NotNil(t, a.ledger)
	assert.Nil(t, a.web)
	assert.NotNil(t, a.agent)
	assert.FileExists(t, cfg.Usage.DBPath)
}

func TestNewAppWithoutLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Usage.Enabled = false
	cfg.Web.Enabled = true

	a, err := newApp(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.ledger)
	assert.NotNil(t, a.web)
	assert.NoFileExists(t, cfg.Usage.DBPath)
}

func TestChatRequest(t *testing.T) {
	req := chatRequest("hi", "", "ollama", "")
	assert.Equal(t, protocol.Conversation{{Role: protocol.RoleUser, Content: "hi"}}, req.Messages)
	assert.Equal(t, "ollama", req.Provider)
	require.NoError(t, req.Validate())

	req = chatRequest("hi", "be brief", "", "m")
	require.Len(t, req.Messages, 2)
	assert.Equal(t, protocol.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "m", req.Model)
}

func TestPrintChat(t *testing.T) {
	resp := &protocol.ChatResponse{
		Success: true,
		Message: protocol.Message{Role: protocol.RoleAssistant, Content: "391"},
		ToolCallsMade: []protocol.ToolCallRecord{
			{Tool: "calculator", Arguments: map[string]any{"expression": "17*23"}, Result: map[string]any{"result": 391}},
		},
		Usage:      &protocol.Usage{TotalTokens: 30},
		Provider:   "ollama",
		Model:      "llama3.1",
		Iterations: 2,
	}

	var out, errOut bytes.Buffer
	require.NoError(t, printChat(&out, &errOut, resp, false))
	assert.Equal(t, "391\n", out.String())
	assert.Contains(t, errOut.String(), `-> calculator {"expression":"17*23"}`)
	assert.Contains(t, errOut.String(), "[ollama/llama3.1, 2 iterations, 30 tokens]")

	out.Reset()
	require.NoError(t, printChat(&out, &errOut, resp, true))
	var decoded protocol.ChatResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "391", decoded.Message.Content)
}

func TestPrintTools(t *testing.T) {
	schemas := []protocol.ToolSchema{{
		Name:        "calculator",
		Description: "Evaluates arithmetic",
		Parameters:  []protocol.ParameterSchema{{Name: "expression", Type: "string", Description: "Expression", Required: true}},
	}}

	var buf bytes.Buffer
	require.NoError(t, printTools(&buf, schemas, formatText))
	assert.Equal(t, "calculator\n  Evaluates arithmetic\n    expression (string, required): Expression\n", buf.String())

	buf.Reset()
	require.NoError(t, printTools(&buf, schemas, formatYAML))
	var fromYAML []protocol.ToolSchema
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, schemas, fromYAML)

	buf.Reset()
	require.NoError(t, printTools(&buf, schemas, formatJSON))
	var fromJSON []protocol.ToolSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, schemas, fromJSON)

	assert.Error(t, printTools(&buf, schemas, "xml"))
}

func TestPrintProviders(t *testing.T) {
	infos := []protocol.ProviderInfo{
		{Name: "deepinfra", Available: false, Models: []string{"a", "b"}},
		{Name: "ollama", Available: true, Models: []string{"llama3.1"}},
	}

	var buf bytes.Buffer
	require.NoError(t, printProviders(&buf, infos, "ollama", formatText))
	out := buf.String()
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "ollama (default)")
	assert.Contains(t, out, "a, b")
}

func TestUsageReport(t *testing.T) {
	ctx := context.Background()
	ledger, err := usage.Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	defer ledger.Close()

	report, err := readUsage(ctx, ledger, 7)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf, report, formatText))
	assert.Contains(t, buf.String(), "No usage recorded yet")

	require.NoError(t, ledger.Record(ctx, usage.Entry{
		Provider: "openai", Model: "gpt-4o",
		Usage:     protocol.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		ToolCalls: 1,
	}))
	report, err = readUsage(ctx, ledger, 7)
	require.NoError(t, err)
	require.Len(t, report.Totals, 1)
	require.Len(t, report.Daily, 1)

	buf.Reset()
	require.NoError(t, printUsage(&buf, report, formatText))
	assert.Contains(t, buf.String(), "gpt-4o")
	assert.Contains(t, buf.String(), "DATE")
	assert.Contains(t, buf.String(), "Cloud: 7 tokens")

	buf.Reset()
	require.NoError(t, printUsage(&buf, report, formatJSON))
	var decoded usageReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(7), decoded.Totals[0].TotalTokens)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	require.NoError(t, initConfig(path, false))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderDeepInfra, cfg.Providers.DefaultProvider)

	err = initConfig(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("garbage = ["), 0600))
	require.NoError(t, initConfig(path, true))
	_, err = config.Load(path)
	require.NoError(t, err)
}

func TestShowConfigRedactsKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.OpenAIAPIKey = "sk-secret"

	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, cfg))
	assert.NotContains(t, buf.String(), "sk-secret")

	var decoded config.Config
	_, err := toml.Decode(buf.String(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, "***", decoded.Providers.OpenAIAPIKey)
	assert.Empty(t, decoded.Providers.AnthropicAPIKey)
	assert.Equal(t, "sk-secret", cfg.Providers.OpenAIAPIKey)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "mcp", "chat", "tools", "providers", "usage", "config"} {
		assert.True(t, names[want], want)
	}
	assert.Equal(t, config.DefaultPath(), rootCmd.PersistentFlags().Lookup("config").DefValue)
}
