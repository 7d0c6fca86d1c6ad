package model

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// OpenAIConfig configures an OpenAI-compatible backend.
// DeepInfra, OpenAI and Ollama all speak this API.
type OpenAIConfig struct {
	Name       string
	APIKey     string
	BaseURL    string // empty uses the SDK default
	Models     []string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// OpenAIBackend implements Backend with the OpenAI chat completions API.
type OpenAIBackend struct {
	cfg            OpenAIConfig
	client         *openai.Client
	circuitBreaker *errors.CircuitBreaker
	retryPolicy    *errors.Policy
	logger         *zap.Logger
}

// NewOpenAIBackend creates an OpenAI-compatible backend.
func NewOpenAIBackend(cfg OpenAIConfig, logger *zap.Logger) *OpenAIBackend {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Retries are driven by the backend policy, not the SDK.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)

	return &OpenAIBackend{
		cfg:            cfg,
		client:         &client,
		circuitBreaker: errors.NewCircuitBreaker(cfg.Name, errors.DefaultCircuitBreakerConfig()),
		retryPolicy:    errors.BackendPolicy(cfg.MaxRetries + 1),
		logger:         logger.With(zap.String("provider", cfg.Name)),
	}
}

// Name returns the provider name.
func (b *OpenAIBackend) Name() string { return b.cfg.Name }

// Models returns the advertised models.
func (b *OpenAIBackend) Models() []string { return b.cfg.Models }

// Chat sends the conversation to the chat completions endpoint.
func (b *OpenAIBackend) Chat(ctx context.Context, req *Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	b.logger.Debug("chat request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)))

	start := time.Now()
	resp, err := errors.ExecuteCircuitBreakerWithResult(b.circuitBreaker, func() (*Response, error) {
		return errors.DoWithResult(ctx, b.retryPolicy, func() (*Response, error) {
			return b.complete(ctx, params)
		})
	})
	if err != nil {
		b.logger.Error("chat request failed", zap.String("model", req.Model), zap.Error(err))
		return nil, errors.Backend(b.cfg.Name, err)
	}
	resp.DurationMs = time.Since(start).Milliseconds()

	b.logger.Info("token usage",
		zap.String("model", resp.Model),
		zap.Int("prompt", resp.Usage.PromptTokens),
		zap.Int("completion", resp.Usage.CompletionTokens),
		zap.Int("total", resp.Usage.TotalTokens))

	return resp, nil
}

func (b *OpenAIBackend) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*Response, error) {
	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			var header http.Header
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			return nil, classifyStatus(b.cfg.Name, apiErr.StatusCode, header, apiErr.RawJSON(), err)
		}
		return nil, classifyTransport(b.cfg.Name, err)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.New(errors.CodeModelInvalidResponse, "API response contained no choices", errors.CategoryPermanent)
	}

	model := completion.Model
	if model == "" {
		model = string(params.Model)
	}
	return &Response{
		Content: completion.Choices[0].Message.Content,
		Model:   model,
		Usage: protocol.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func toOpenAIMessages(messages []protocol.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case protocol.RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			asst.Content.OfString = openai.String(m.Content)
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case protocol.RoleTool:
			if m.ToolCallID != "" {
				out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
				continue
			}
			// Tool output without a call id can only travel as user text.
			out = append(out, openai.UserMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// OllamaBaseURL returns the OpenAI-compatible endpoint of an Ollama server.
func OllamaBaseURL(base string) string {
	return strings.TrimRight(base, "/") + "/v1"
}
