package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/mcpserver"
	"github.com/flynn-ai/llmgate/internal/server"
)

var (
	serveListen  string
	mcpListen    string
	mcpTransport string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts the HTTP API:

  POST /api/chat        run a conversation through the tool-calling loop
  GET  /api/tools       list the registered tools
  GET  /api/providers   list providers and their models
  GET  /api/health      configuration summary and runtime stats
  GET  /api/usage       token usage from the ledger`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools and the chat loop over MCP",
	Long: `Exposes every registered tool plus a "chat" tool that runs the full
tool-calling loop as a Model Context Protocol server.

Transports:
  stdio  talk MCP over stdin/stdout (default)
  sse    serve MCP over HTTP server-sent events on --listen`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (default from config)")

	mcpCmd.Flags().StringVarP(&mcpTransport, "transport", "t", mcpserver.TransportStdio, "transport: stdio or sse")
	mcpCmd.Flags().StringVarP(&mcpListen, "listen", "l", ":8001", "listen address for the sse transport")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveListen
	if addr == "" {
		addr = a.cfg.Server.Listen
	}

	opts := server.Options{
		Config:    a.cfg,
		Agent:     a.agent,
		Tools:     a.tools,
		Providers: a.router,
		Stats:     a.stats,
		Logger:    a.logger,
	}
	if a.ledger != nil {
		opts.Usage = a.ledger
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a.logger.Info("starting server",
		zap.String("name", a.cfg.Server.Name),
		zap.String("version", a.cfg.Server.Version),
		zap.String("addr", addr),
		zap.String("default_provider", a.cfg.Providers.DefaultProvider))
	return server.New(opts).ListenAndServe(ctx, addr)
}

func runMCP(cmd *cobra.Command, args []string) error {
	switch mcpTransport {
	case mcpserver.TransportStdio, mcpserver.TransportSSE:
	default:
		return fmt.Errorf("unknown transport %q (use %s or %s)", mcpTransport, mcpserver.TransportStdio, mcpserver.TransportSSE)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcpserver.New(mcpserver.Options{
		Version: a.cfg.Server.Version,
		Tools:   a.tools,
		Agent:   a.agent,
		Logger:  a.logger,
	})

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if mcpTransport == mcpserver.TransportSSE {
		return srv.ServeSSE(ctx, mcpListen)
	}
	return srv.RunStdio(ctx)
}
