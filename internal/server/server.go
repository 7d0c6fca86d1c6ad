// Package server exposes the tool-calling loop over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/config"
	"github.com/flynn-ai/llmgate/internal/cost"
	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/internal/stats"
	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/usage"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// maxBodyBytes caps the size of a chat request body.
const maxBodyBytes = 1 << 20

const shutdownTimeout = 10 * time.Second

// Chatter runs one chat request through the loop.
type Chatter interface {
	Chat(ctx context.Context, req *protocol.ChatRequest) (*protocol.ChatResponse, error)
}

// ProviderLister describes the configured backends.
type ProviderLister interface {
	Providers() []protocol.ProviderInfo
}

// UsageReader reads the usage ledger.
type UsageReader interface {
	Totals(ctx context.Context) ([]usage.Total, error)
	Daily(ctx context.Context, days int) ([]usage.DailyStats, error)
	Path() string
	Size() int64
}

// Options configures a Server.
type Options struct {
	Config    *config.Config
	Agent     Chatter
	Tools     *tool.Registry
	Providers ProviderLister
	Usage     UsageReader      // nil when the ledger is disabled
	Stats     *stats.Collector // optional
	Logger    *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg       *config.Config
	agent     Chatter
	tools     *tool.Registry
	providers ProviderLister
	usage     UsageReader
	stats     *stats.Collector
	logger    *zap.Logger
	handler   http.Handler
}

// New creates a server and its routes.
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:       opts.Config,
		agent:     opts.Agent,
		tools:     opts.Tools,
		providers: opts.Providers,
		usage:     opts.Usage,
		stats:     opts.Stats,
		logger:    opts.Logger.Named("http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/usage", s.handleUsage)

	s.handler = s.logRequests(cors(mux))
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": s.cfg.Server.Name,
		"version": s.cfg.Server.Version,
		"status":  "running",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.Validation("invalid request body: "+err.Error(), err))
		return
	}
	if _, err := dec.Token(); err != io.EOF {
		s.writeError(w, errors.Validation("invalid request body: trailing data", nil))
		return
	}

	s.logger.Info("chat request",
		zap.String("provider", req.Provider),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)))

	resp, err := s.agent.Chat(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	fields := []zap.Field{
		zap.Bool("success", resp.Success),
		zap.Int("tool_calls", len(resp.ToolCallsMade)),
		zap.Int("iterations", resp.Iterations),
	}
	if resp.Usage != nil {
		fields = append(fields,
			zap.Int("total_tokens", resp.Usage.TotalTokens),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	}
	s.logger.Info("chat completed", fields...)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.tools.Descriptors()
	out := make([]protocol.ToolSchema, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Schema()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.Providers())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := make(map[string]bool, len(config.ProviderNames))
	for _, name := range config.ProviderNames {
		available[name] = s.cfg.IsAvailable(name)
	}

	var dbSize int64
	var dbPath string
	if s.usage != nil {
		dbSize, dbPath = s.usage.Size(), s.usage.Path()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.cfg.Server.Name,
		"version": s.cfg.Server.Version,
		"config": map[string]any{
			"default_provider":    s.cfg.Providers.DefaultProvider,
			"default_model":       s.cfg.Providers.DefaultModel,
			"providers_available": available,
			"tools":               s.tools.Names(),
			"web_enabled":         s.cfg.Web.Enabled,
		},
		"stats": s.stats.Collect(dbSize, dbPath),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"enabled": false})
		return
	}

	totals, err := s.usage.Totals(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	daily, err := s.usage.Daily(r.Context(), 7)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"totals":  totals,
		"daily":   daily,
		"cost":    cost.Summarize(totals, nil),
	})
}

// writeError maps a fatal error to its HTTP status and JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		s.logger.Warn("request rejected", zap.String("kind", string(kind)), zap.Error(err))
	}

	msg := errors.Message(err)
	var appErr *errors.AppError
	if kind == errors.KindBackend && errors.As(err, &appErr) && appErr.Inner != nil {
		msg += ": " + errors.Message(appErr.Inner)
	}

	writeJSON(w, status, protocol.ErrorResponse{
		Success:     false,
		Error:       msg,
		Kind:        string(kind),
		Details:     errors.Details(err),
		Suggestions: errors.GetSuggestions(err),
	})
}

func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindProvider, errors.KindValidation, errors.KindMaxIterations:
		return http.StatusBadRequest
	case errors.KindBackend:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
