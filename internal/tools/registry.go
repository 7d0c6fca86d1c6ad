// Package tools wires the built-in tools into a tool registry.
package tools

import (
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/tools/executor"
)

// Initialize registers the built-in tools in prompt order: calculator,
// web_search, news_search, web_scraper, web_summarizer. A nil svc registers
// the web tools in their disabled form.
func Initialize(r *tool.Registry, svc executor.WebService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("tools")

	r.Register(&executor.Calculator{})
	r.Register(&executor.WebSearch{Service: svc, Logger: logger})
	r.Register(&executor.NewsSearch{Service: svc, Logger: logger})
	r.Register(&executor.WebScraper{Service: svc, Logger: logger})
	r.Register(&executor.WebSummarizer{Service: svc, Logger: logger})

	logger.Debug("tools registered", zap.Strings("tools", r.Names()))
}

// NewRegistry returns a registry holding the built-in tools.
func NewRegistry(svc executor.WebService, logger *zap.Logger) *tool.Registry {
	r := tool.NewRegistry()
	Initialize(r, svc, logger)
	return r
}
