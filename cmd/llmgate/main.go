// Command llmgate runs the LLM middleware: an HTTP API, an MCP server and a
// handful of CLI helpers around the tool-calling loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/agent"
	"github.com/flynn-ai/llmgate/internal/config"
	"github.com/flynn-ai/llmgate/internal/logging"
	"github.com/flynn-ai/llmgate/internal/model"
	"github.com/flynn-ai/llmgate/internal/stats"
	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/tools"
	"github.com/flynn-ai/llmgate/internal/tools/executor"
	"github.com/flynn-ai/llmgate/internal/usage"
	"github.com/flynn-ai/llmgate/internal/web"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "llmgate",
	Short: "LLM middleware with text-protocol tool calling",
	Long: `llmgate puts one chat API in front of DeepInfra, OpenAI, Ollama and
Anthropic. Tools are described in the system prompt and tool calls are parsed
back out of the reply text, so every backend can use them.

Configuration is read from ~/.llmgate/config.toml; API keys can also be
supplied through DEEPINFRA_API_KEY, OPENAI_API_KEY and ANTHROPIC_API_KEY.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, mcpCmd, chatCmd, toolsCmd, providersCmd, usageCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tools  *tool.Registry
	router *model.Router
	ledger *usage.Ledger // nil when usage tracking is disabled
	stats  *stats.Collector
	agent  *agent.Agent
	web    *web.Service
}

// loadApp reads the configuration and wires every component.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newApp(cfg, logger)
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.OrNop(logger),
		stats:  stats.NewCollector(),
	}

	var svc executor.WebService
	if cfg.Web.Enabled {
		a.web = web.NewService(web.OptionsFromConfig(cfg.Web, a.logger))
		svc = a.web
	}
	a.tools = tools.NewRegistry(svc, a.logger)
	a.router = model.NewRouter(cfg, a.logger)

	var recorder agent.Recorder
	if cfg.Usage.Enabled {
		ledger, err := usage.Open(cfg.Usage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open usage ledger: %w", err)
		}
		a.ledger = ledger
		recorder = ledger
	}

	temperature := cfg.Agent.DefaultTemperature
	a.agent = agent.New(agent.Config{
		Resolver:      a.router,
		Tools:         a.tools,
		MaxIterations: cfg.Agent.MaxIterations,
		Temperature:   &temperature,
		Recorder:      recorder,
		Stats:         a.stats,
		Logger:        a.logger,
	})

	a.logger.Debug("components wired",
		zap.Int("tools", a.tools.Len()),
		zap.Bool("web", cfg.Web.Enabled),
		zap.Bool("usage", a.ledger != nil))
	return a, nil
}

// Close releases the ledger and idle connections.
func (a *app) Close() {
	if a.web != nil {
		a.web.Close()
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("close usage ledger", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
