package model

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/config"
	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

const providerAnthropic = config.ProviderAnthropic

// providerEnv names the display name and credential variable of each provider.
var providerEnv = map[string][2]string{
	config.ProviderDeepInfra: {"DeepInfra", "DEEPINFRA_API_KEY"},
	config.ProviderOpenAI:    {"OpenAI", "OPENAI_API_KEY"},
	config.ProviderAnthropic: {"Anthropic", "ANTHROPIC_API_KEY"},
	config.ProviderOllama:    {"Ollama", "OLLAMA_BASE_URL"},
}

// Router resolves provider names to backends. Backends are built lazily
// from configuration and cached for the life of the router.
type Router struct {
	cfg    *config.Config
	logger *zap.Logger

	mu       sync.Mutex
	backends map[string]Backend
}

// NewRouter creates a router over the configured providers.
func NewRouter(cfg *config.Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:      cfg,
		logger:   logger,
		backends: make(map[string]Backend),
	}
}

// Register installs a backend under its name, replacing any configured one.
func (r *Router) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Resolve returns the backend for a provider name. An empty name selects the
// configured default provider.
func (r *Router) Resolve(name string) (Backend, error) {
	if name == "" {
		name = r.cfg.Providers.DefaultProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[name]; ok {
		return b, nil
	}

	if _, known := providerEnv[name]; !known {
		return nil, errors.Provider(errors.CodeUnknownProvider,
			fmt.Sprintf("Unknown provider: %s. Available: %s", name, strings.Join(config.ProviderNames, ", ")))
	}
	if !r.cfg.IsAvailable(name) {
		env := providerEnv[name]
		return nil, errors.Provider(errors.CodeProviderNotConfigured,
			fmt.Sprintf("%s provider not configured. Set %s in environment.", env[0], env[1]))
	}

	b := r.build(name)
	r.backends[name] = b
	r.logger.Debug("backend initialized", zap.String("provider", name))
	return b, nil
}

// ResolveModel picks the model for a request: the explicit one, the
// configured default for the default provider, or the provider's first model.
func (r *Router) ResolveModel(b Backend, requested string) string {
	if requested != "" {
		return requested
	}
	if b.Name() == r.cfg.Providers.DefaultProvider && r.cfg.Providers.DefaultModel != "" {
		return r.cfg.Providers.DefaultModel
	}
	if models := b.Models(); len(models) > 0 {
		return models[0]
	}
	return r.cfg.Providers.DefaultModel
}

// Providers lists every known provider with its availability and models.
func (r *Router) Providers() []protocol.ProviderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]protocol.ProviderInfo, 0, len(config.ProviderNames))
	for _, name := range config.ProviderNames {
		if b, ok := r.backends[name]; ok {
			infos = append(infos, Info(b, true))
			continue
		}
		infos = append(infos, protocol.ProviderInfo{
			Name:      name,
			Available: r.cfg.IsAvailable(name),
			Models:    append([]string(nil), modelsFor(name)...),
		})
	}
	return infos
}

func (r *Router) build(name string) Backend {
	p := r.cfg.Providers
	timeout := time.Duration(p.RequestTimeout) * time.Second

	switch name {
	case config.ProviderAnthropic:
		return NewAnthropicBackend(AnthropicConfig{
			APIKey:     p.AnthropicAPIKey,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		}, r.logger)
	case config.ProviderOpenAI:
		return NewOpenAIBackend(OpenAIConfig{
			Name:       name,
			APIKey:     p.OpenAIAPIKey,
			BaseURL:    p.OpenAIBaseURL,
			Models:     OpenAIModels,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		}, r.logger)
	case config.ProviderOllama:
		return NewOpenAIBackend(OpenAIConfig{
			Name:       name,
			APIKey:     "ollama",
			BaseURL:    OllamaBaseURL(p.OllamaBaseURL),
			Models:     OllamaModels,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		}, r.logger)
	default:
		return NewOpenAIBackend(OpenAIConfig{
			Name:       name,
			APIKey:     p.DeepInfraAPIKey,
			BaseURL:    p.DeepInfraBaseURL,
			Models:     DeepInfraModels,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		}, r.logger)
	}
}

func modelsFor(name string) []string {
	switch name {
	case config.ProviderDeepInfra:
		return DeepInfraModels
	case config.ProviderOpenAI:
		return OpenAIModels
	case config.ProviderOllama:
		return OllamaModels
	case config.ProviderAnthropic:
		return AnthropicModels
	}
	return nil
}
