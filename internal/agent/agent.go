// Package agent runs the tool-calling loop.
//
// The loop alternates between a backend call and at most one tool call per
// iteration. Tool availability is described in the system prompt and calls
// are recovered from the reply text, so any chat backend works without
// native function calling.
package agent

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/internal/model"
	"github.com/flynn-ai/llmgate/internal/prompt"
	"github.com/flynn-ai/llmgate/internal/stats"
	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/usage"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// DefaultMaxIterations bounds the loop when no limit is configured.
const DefaultMaxIterations = 10

// DefaultTemperature is used when a request carries none.
const DefaultTemperature = 0.7

// Resolver selects the backend and model for a request.
type Resolver interface {
	Resolve(provider string) (model.Backend, error)
	ResolveModel(b model.Backend, requested string) string
}

// Recorder persists per-request usage.
type Recorder interface {
	Record(ctx context.Context, e usage.Entry) error
}

// Config configures an Agent.
type Config struct {
	Resolver      Resolver
	Tools         *tool.Registry
	MaxIterations int
	Temperature   *float64         // nil selects DefaultTemperature
	Recorder      Recorder         // optional
	Stats         *stats.Collector // optional
	Logger        *zap.Logger
}

// Agent drives conversations through the tool-calling loop. It holds no
// per-request state and is safe for concurrent use.
type Agent struct {
	resolver      Resolver
	tools         *tool.Registry
	maxIterations int
	temperature   float64
	recorder      Recorder
	stats         *stats.Collector
	logger        *zap.Logger
}

// New creates an Agent.
func New(cfg Config) *Agent {
	a := &Agent{
		resolver:      cfg.Resolver,
		tools:         cfg.Tools,
		maxIterations: cfg.MaxIterations,
		temperature:   DefaultTemperature,
		recorder:      cfg.Recorder,
		stats:         cfg.Stats,
		logger:        cfg.Logger,
	}
	if a.tools == nil {
		a.tools = tool.NewRegistry()
	}
	if a.maxIterations <= 0 {
		a.maxIterations = DefaultMaxIterations
	}
	if cfg.Temperature != nil {
		a.temperature = *cfg.Temperature
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Tools returns the registry the agent draws tools from.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// Chat runs the loop for one request.
//
// Tool failures and unknown tool names are folded back into the conversation
// as error-shaped results. Fatal outcomes are returned as *errors.AppError
// with kind provider_error, backend_error, validation_error or
// max_iterations; the latter carries the partial tool call audit.
func (a *Agent) Chat(ctx context.Context, req *protocol.ChatRequest) (*protocol.ChatResponse, error) {
	start := time.Now()
	requestID := uuid.New().String()
	logger := a.logger.With(zap.String("request_id", requestID))

	if err := req.Validate(); err != nil {
		a.recordError(errors.KindValidation)
		return nil, errors.Validation(err.Error(), err)
	}

	backend, err := a.resolver.Resolve(req.Provider)
	if err != nil {
		logger.Warn("provider resolution failed", zap.String("provider", req.Provider), zap.Error(err))
		a.recordError(errors.KindOf(err))
		return nil, err
	}
	modelName := a.resolver.ResolveModel(backend, req.Model)

	descriptors := a.tools.Descriptors()
	conversation := slices.Clone(req.Messages)
	if len(descriptors) > 0 && !conversation.HasSystem() {
		conversation = append(protocol.Conversation{{
			Role:    protocol.RoleSystem,
			Content: prompt.BuildSystemPrompt(descriptors),
		}}, conversation...)
	}

	temperature := a.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	logger.Info("starting chat",
		zap.String("provider", backend.Name()),
		zap.String("model", modelName),
		zap.Int("tools", len(descriptors)))

	run := &run{
		agent:     a,
		logger:    logger,
		backend:   backend,
		model:     modelName,
		requestID: requestID,
		records:   []protocol.ToolCallRecord{},
	}

	for run.iterations < a.maxIterations {
		run.iterations++
		logger.Debug("iteration", zap.Int("iteration", run.iterations), zap.Int("max", a.maxIterations))

		resp, err := backend.Chat(ctx, &model.Request{
			Messages:    conversation,
			Model:       modelName,
			MaxTokens:   req.MaxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			if errors.KindOf(err) != errors.KindBackend {
				err = errors.Backend(backend.Name(), err)
			}
			logger.Error("backend call failed", zap.Int("iteration", run.iterations), zap.Error(err))
			run.finish(ctx, usage.StatusBackendError, errors.KindBackend, start)
			return nil, err
		}
		run.observe(resp.Usage)

		call, ok := prompt.ParseToolCall(resp.Content)
		if !ok {
			logger.Info("chat completed",
				zap.Int("iterations", run.iterations),
				zap.Int("tool_calls", len(run.records)))
			run.finish(ctx, usage.StatusSuccess, "", start)
			return run.response(resp.Content), nil
		}

		conversation = append(conversation, protocol.Message{Role: protocol.RoleAssistant, Content: resp.Content})
		result := run.invoke(ctx, call)
		conversation = append(conversation, protocol.Message{
			Role:    protocol.RoleUser,
			Content: prompt.FormatToolResult(call.Name, result),
		})
	}

	logger.Warn("max iterations reached",
		zap.Int("iterations", run.iterations),
		zap.Int("tool_calls", len(run.records)))
	run.finish(ctx, usage.StatusMaxIterations, errors.KindMaxIterations, start)
	return nil, errors.MaxIterations(run.iterations, run.records)
}

// run is the state of one request's loop.
type run struct {
	agent     *Agent
	logger    *zap.Logger
	backend   model.Backend
	model     string
	requestID string

	iterations int
	records    []protocol.ToolCallRecord
	last       *protocol.Usage
	total      protocol.Usage
}

// observe keeps the latest usage snapshot and the running sum.
func (r *run) observe(u protocol.Usage) {
	snapshot := u
	r.last = &snapshot
	r.total = r.total.Add(u)
}

func (r *run) invoke(ctx context.Context, call *protocol.ToolCall) any {
	r.logger.Info("tool call",
		zap.String("tool", call.Name),
		zap.Strings("arguments", argumentKeys(call.Arguments)),
		zap.Int("iteration", r.iterations))

	var result any
	found := true
	if call.Invalid != "" {
		result = tool.InvalidArguments(call.Invalid)
	} else {
		result, found = tool.Invoke(ctx, r.agent.tools, call.Name, call.Arguments)
	}
	switch {
	case call.Invalid != "":
		r.logger.Warn("malformed tool call", zap.String("tool", call.Name), zap.String("reason", call.Invalid))
	case !found:
		r.logger.Warn("tool not found", zap.String("tool", call.Name))
	case tool.IsErrorResult(result):
		r.logger.Error("tool failed", zap.String("tool", call.Name), zap.Any("result", result))
	}
	if r.agent.stats != nil {
		r.agent.stats.RecordToolCall(call.Name)
	}

	r.records = append(r.records, protocol.ToolCallRecord{
		Tool:      call.Name,
		Arguments: call.Arguments,
		Result:    result,
	})
	return result
}

func (r *run) response(content string) *protocol.ChatResponse {
	return &protocol.ChatResponse{
		RequestID:     r.requestID,
		Success:       true,
		Message:       protocol.Message{Role: protocol.RoleAssistant, Content: content},
		ToolCallsMade: r.records,
		Usage:         r.last,
		Provider:      r.backend.Name(),
		Model:         r.model,
		Iterations:    r.iterations,
	}
}

// finish updates stats and the usage ledger. Ledger failures are logged only.
func (r *run) finish(ctx context.Context, status string, kind errors.Kind, start time.Time) {
	if s := r.agent.stats; s != nil {
		s.RecordRequest(r.total.TotalTokens, time.Since(start))
	}
	if kind != "" {
		r.agent.recordError(kind)
	}
	if r.agent.recorder == nil {
		return
	}

	err := r.agent.recorder.Record(context.WithoutCancel(ctx), usage.Entry{
		ID:         r.requestID,
		Provider:   r.backend.Name(),
		Model:      r.model,
		Usage:      r.total,
		Iterations: r.iterations,
		ToolCalls:  len(r.records),
		Status:     status,
	})
	if err != nil {
		r.logger.Warn("usage record failed", zap.Error(err))
	}
}

func (a *Agent) recordError(kind errors.Kind) {
	if a.stats != nil {
		a.stats.RecordError(string(kind))
	}
}

func argumentKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
