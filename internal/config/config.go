// Package config handles llmgate configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultUserAgent is sent by the web scraper unless configured otherwise.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultPath returns ~/.llmgate/config.toml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".llmgate", "config.toml")
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".llmgate")

	return &Config{
		Server: ServerConfig{
			Name:         "LLM Middleware",
			Version:      "2.0.0",
			Listen:       ":8000",
			ReadTimeout:  30,
			WriteTimeout: 300,
		},
		Providers: ProvidersConfig{
			DefaultProvider:  ProviderDeepInfra,
			DefaultModel:     "meta-llama/Llama-3.3-70B-Instruct-Turbo",
			DeepInfraBaseURL: "https://api.deepinfra.com/v1/openai",
			OllamaBaseURL:    "http://localhost:11434",
			RequestTimeout:   120,
			MaxRetries:       2,
		},
		Agent: AgentConfig{
			MaxIterations:      10,
			DefaultTemperature: 0.7,
		},
		Web: WebConfig{
			Enabled:              true,
			Timeout:              30,
			MaxConcurrent:        5,
			UserAgent:            DefaultUserAgent,
			SearchRegion:         "ua-uk",
			DefaultSearchResults: 5,
			MaxSearchResults:     10,
			SearchBaseURL:        "https://html.duckduckgo.com/html/",
		},
		Usage: UsageConfig{
			Enabled: true,
			DBPath:  filepath.Join(dataDir, "usage.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the configuration from the given path and applies
// environment overrides. If the file doesn't exist, defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	ApplyEnv(cfg, os.Getenv)
	cfg.Usage.DBPath = expandHome(cfg.Usage.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.Providers.DeepInfraAPIKey, "DEEPINFRA_API_KEY")
	set(&cfg.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	set(&cfg.Providers.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	set(&cfg.Providers.OllamaBaseURL, "OLLAMA_BASE_URL")
	set(&cfg.Providers.DefaultProvider, "DEFAULT_PROVIDER")
	set(&cfg.Providers.DefaultModel, "DEFAULT_MODEL")
	set(&cfg.Log.Level, "LOG_LEVEL")
	set(&cfg.Server.Listen, "LLMGATE_LISTEN")

	cfg.Providers.DefaultProvider = strings.ToLower(cfg.Providers.DefaultProvider)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	if !slices.Contains(ProviderNames, c.Providers.DefaultProvider) {
		return fmt.Errorf("config: unknown default_provider %q (available: %s)",
			c.Providers.DefaultProvider, strings.Join(ProviderNames, ", "))
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("config: agent.max_iterations must be positive")
	}
	if c.Web.MaxConcurrent <= 0 {
		return fmt.Errorf("config: web.max_concurrent must be positive")
	}
	if c.Web.MaxSearchResults <= 0 {
		return fmt.Errorf("config: web.max_search_results must be positive")
	}
	return nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(c)
}

// IsAvailable reports whether the named provider has the credentials it needs.
// Ollama needs none.
func (c *Config) IsAvailable(provider string) bool {
	switch provider {
	case ProviderDeepInfra:
		return c.Providers.DeepInfraAPIKey != ""
	case ProviderOpenAI:
		return c.Providers.OpenAIAPIKey != ""
	case ProviderAnthropic:
		return c.Providers.AnthropicAPIKey != ""
	case ProviderOllama:
		return true
	}
	return false
}

// expandHome expands a leading ~ in a path.
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, path[1:])
}
