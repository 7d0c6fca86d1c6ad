// Package config provides configuration types for llmgate.
package config

// Config represents the main llmgate configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Providers ProvidersConfig `toml:"providers"`
	Agent     AgentConfig     `toml:"agent"`
	Web       WebConfig       `toml:"web"`
	Usage     UsageConfig     `toml:"usage"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Name         string `toml:"name"`
	Version      string `toml:"version"`
	Listen       string `toml:"listen"`
	ReadTimeout  int    `toml:"read_timeout"`  // seconds
	WriteTimeout int    `toml:"write_timeout"` // seconds
}

// ProvidersConfig contains backend credentials and defaults.
type ProvidersConfig struct {
	DefaultProvider  string `toml:"default_provider"` // deepinfra, openai, ollama, anthropic
	DefaultModel     string `toml:"default_model"`
	DeepInfraAPIKey  string `toml:"deepinfra_api_key"`
	DeepInfraBaseURL string `toml:"deepinfra_base_url"`
	OpenAIAPIKey     string `toml:"openai_api_key"`
	OpenAIBaseURL    string `toml:"openai_base_url"` // empty uses the SDK default
	AnthropicAPIKey  string `toml:"anthropic_api_key"`
	OllamaBaseURL    string `toml:"ollama_base_url"`
	RequestTimeout   int    `toml:"request_timeout"` // seconds
	MaxRetries       int    `toml:"max_retries"`
}

// AgentConfig controls the tool-calling loop.
type AgentConfig struct {
	MaxIterations      int     `toml:"max_iterations"`
	DefaultTemperature float64 `toml:"default_temperature"`
}

// WebConfig controls search and scraping.
type WebConfig struct {
	Enabled              bool   `toml:"enabled"`
	Timeout              int    `toml:"timeout"` // seconds
	MaxConcurrent        int    `toml:"max_concurrent"`
	UserAgent            string `toml:"user_agent"`
	SearchRegion         string `toml:"search_region"`
	DefaultSearchResults int    `toml:"default_search_results"`
	MaxSearchResults     int    `toml:"max_search_results"`
	SearchBaseURL        string `toml:"search_base_url"`
}

// UsageConfig controls the token usage ledger.
type UsageConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, console
}

// Provider names.
const (
	ProviderDeepInfra = "deepinfra"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// ProviderNames lists the known providers in display order.
var ProviderNames = []string{ProviderDeepInfra, ProviderOpenAI, ProviderOllama, ProviderAnthropic}
