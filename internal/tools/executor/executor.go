// Package executor implements the built-in tools: a calculator and the web
// search, scraping and summarization tools.
package executor

import (
	"context"

	"github.com/flynn-ai/llmgate/internal/web"
)

// WebService is the web intelligence provider behind the web tools.
// *web.Service satisfies it.
type WebService interface {
	SearchAndScrape(ctx context.Context, q web.Query, maxScrape int, includeContent bool) (*web.Bundle, error)
	PageContent(ctx context.Context, url string) web.Page
	SearchWithSummary(ctx context.Context, text string, maxSources int) (*web.Summary, error)
}

// ErrWebDisabled is the message returned by web tools when web access is
// turned off in the configuration.
const ErrWebDisabled = "web access is disabled"

func disabled() map[string]any {
	return map[string]any{"error": ErrWebDisabled}
}

func queryRequired() map[string]any {
	return map[string]any{"error": "query is required"}
}
