package model

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Models     []string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// AnthropicBackend implements Backend with the Anthropic messages API.
type AnthropicBackend struct {
	cfg            AnthropicConfig
	client         *anthropic.Client
	circuitBreaker *errors.CircuitBreaker
	retryPolicy    *errors.Policy
	logger         *zap.Logger
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(cfg AnthropicConfig, logger *zap.Logger) *AnthropicBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Models) == 0 {
		cfg.Models = AnthropicModels
	}

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
	client := anthropic.NewClient(opts...)

	return &AnthropicBackend{
		cfg:            cfg,
		client:         &client,
		circuitBreaker: errors.NewCircuitBreaker(providerAnthropic, errors.DefaultCircuitBreakerConfig()),
		retryPolicy:    errors.BackendPolicy(cfg.MaxRetries + 1),
		logger:         logger.With(zap.String("provider", providerAnthropic)),
	}
}

// Name returns the provider name.
func (b *AnthropicBackend) Name() string { return providerAnthropic }

// Models returns the advertised models.
func (b *AnthropicBackend) Models() []string { return b.cfg.Models }

// Chat sends the conversation to the messages endpoint. System messages are
// joined into the top-level system prompt.
func (b *AnthropicBackend) Chat(ctx context.Context, req *Request) (*Response, error) {
	system, messages := toAnthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
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
		return nil, errors.Backend(providerAnthropic, err)
	}
	resp.DurationMs = time.Since(start).Milliseconds()

	b.logger.Info("token usage",
		zap.String("model", resp.Model),
		zap.Int("prompt", resp.Usage.PromptTokens),
		zap.Int("completion", resp.Usage.CompletionTokens),
		zap.Int("total", resp.Usage.TotalTokens))

	return resp, nil
}

func (b *AnthropicBackend) complete(ctx context.Context, params anthropic.MessageNewParams) (*Response, error) {
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			var header http.Header
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			return nil, classifyStatus(providerAnthropic, apiErr.StatusCode, header, apiErr.RawJSON(), err)
		}
		return nil, classifyTransport(providerAnthropic, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(block.AsText().Text)
	}

	model := string(msg.Model)
	if model == "" {
		model = string(params.Model)
	}
	prompt, completion := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &Response{
		Content: text.String(),
		Model:   model,
		Usage: protocol.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// toAnthropicMessages splits out the system prompt. The API has no system
// or tool roles inside the message list, so tool output travels as user text.
func toAnthropicMessages(messages []protocol.Message) (string, []anthropic.MessageParam) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Content)
		case protocol.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(system, "\n\n"), out
}
