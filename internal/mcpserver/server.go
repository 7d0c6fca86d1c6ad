// Package mcpserver exposes the registered tools and the chat loop as an MCP
// server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/tools/schemas"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ChatToolName is the MCP tool that runs the tool-calling loop.
const ChatToolName = "chat"

// Chatter runs one chat request through the loop.
type Chatter interface {
	Chat(ctx context.Context, req *protocol.ChatRequest) (*protocol.ChatResponse, error)
}

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	Tools   *tool.Registry
	Agent   Chatter // nil omits the chat tool
	Logger  *zap.Logger
}

// Server wraps an MCP server whose tools mirror the tool registry.
type Server struct {
	server *mcp.Server
	tools  *tool.Registry
	agent  Chatter
	logger *zap.Logger
}

// New creates the MCP server and registers every tool.
func New(opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "llmgate"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		tools:  opts.Tools,
		agent:  opts.Agent,
		logger: opts.Logger.Named("mcp"),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.server }

func (s *Server) registerTools() {
	for _, schema := range schemas.FromDescriptors(s.tools.Descriptors()) {
		s.server.AddTool(&mcp.Tool{
			Name:        schema.Name,
			Description: schema.Description,
			InputSchema: schema.Parameters,
		}, s.toolHandler(schema.Name))
	}

	if s.agent == nil {
		return
	}
	chat := schemas.NewSchema(ChatToolName, "Answers a prompt with a language model that may call the other tools").
		AddParam("prompt", "string", "User prompt", true).
		AddParam("system", "string", "Optional system message replacing the tool instructions", false).
		AddParamWithEnum("provider", "string", "Backend provider (default from configuration)",
			[]string{"deepinfra", "openai", "ollama", "anthropic"}, false).
		AddParam("model", "string", "Model name (default depends on the provider)", false).
		Build()
	s.server.AddTool(&mcp.Tool{
		Name:        chat.Name,
		Description: chat.Description,
		InputSchema: chat.Parameters,
	}, s.handleChat)
}

func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(req)
		if err != nil {
			return jsonResult(map[string]any{"error": err.Error()}, true), nil
		}

		s.logger.Info("tool call", zap.String("tool", name))
		res, _ := tool.Invoke(ctx, s.tools, name, args)
		isErr := tool.IsErrorResult(res)
		if isErr {
			s.logger.Warn("tool returned error", zap.String("tool", name), zap.Any("result", res))
		}
		return jsonResult(res, isErr), nil
	}
}

type chatParams struct {
	Prompt   string `json:"prompt"`
	System   string `json:"system,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleChat(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p chatParams
	if req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return jsonResult(map[string]any{"error": "invalid parameters: " + err.Error()}, true), nil
		}
	}
	if p.Prompt == "" {
		return jsonResult(map[string]any{"error": "prompt is required"}, true), nil
	}

	var msgs protocol.Conversation
	if p.System != "" {
		msgs = append(msgs, protocol.Message{Role: protocol.RoleSystem, Content: p.System})
	}
	msgs = append(msgs, protocol.Message{Role: protocol.RoleUser, Content: p.Prompt})

	resp, err := s.agent.Chat(ctx, &protocol.ChatRequest{Messages: msgs, Provider: p.Provider, Model: p.Model})
	if err != nil {
		s.logger.Warn("chat failed", zap.Error(err))
		return jsonResult(protocol.ErrorResponse{
			Success:     false,
			Error:       errors.Message(err),
			Kind:        string(errors.KindOf(err)),
			Details:     errors.Details(err),
			Suggestions: errors.GetSuggestions(err),
		}, true), nil
	}
	return jsonResult(resp, false), nil
}

func decodeArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	args := map[string]any{}
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func jsonResult(v any, isError bool) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, "unserializable result: "+err.Error()))
		isError = true
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}
}

// RunStdio serves MCP over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio", zap.Int("tools", s.tools.Len()))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// ServeSSE serves MCP over HTTP server-sent events on addr until ctx is
// cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	handler := mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over SSE", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
