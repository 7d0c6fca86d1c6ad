package executor

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/web"
)

var validTimeRanges = map[string]bool{"d": true, "w": true, "m": true, "y": true}

// maxScrapeTargets bounds how many search hits are scraped for content.
const maxScrapeTargets = 3

// WebSearch searches the web and attaches the content of the top pages.
type WebSearch struct {
	Service WebService // nil when web access is disabled
	Logger  *zap.Logger
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Description() string {
	return "Searches the internet for up-to-date information. Use it for news, facts, current events and anything not in your knowledge base."
}

func (t *WebSearch) Parameters() []tool.Parameter {
	return []tool.Parameter{
		{Name: "query", Type: "string", Description: "Search query in any language", Required: true},
		{Name: "max_results", Type: "integer", Description: "Maximum number of results (1-10, default 5)"},
		{Name: "include_content", Type: "boolean", Description: "Include full page content (default true)"},
	}
}

func (t *WebSearch) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.Service == nil {
		return disabled(), nil
	}
	args := tool.Args(input)
	query := args.String("query", "")
	if query == "" {
		return queryRequired(), nil
	}
	maxResults, err := args.Int("max_results", 5)
	if err != nil {
		return nil, err
	}
	maxResults = tool.Clamp(maxResults, 1, 10)
	includeContent := args.Bool("include_content", true)

	logger(t.Logger).Info("web search", zap.String("query", query), zap.Int("max_results", maxResults))

	bundle, err := t.Service.SearchAndScrape(ctx, web.Query{Text: query, MaxResults: maxResults},
		min(maxResults, maxScrapeTargets), includeContent)
	if err != nil {
		return map[string]any{"query": query, "error": "search failed: " + err.Error(), "results": []any{}}, nil
	}

	results := make([]map[string]any, 0, len(bundle.Results))
	for _, r := range bundle.Results {
		item := map[string]any{
			"title":          r.Title,
			"url":            r.URL,
			"snippet":        r.Snippet,
			"published_date": r.PublishedDate,
		}
		if page := bundle.PageFor(r.URL); includeContent && page != nil && page.OK() && page.Content != "" {
			item["full_content"] = web.Truncate(page.Content, 2000)
			item["meta_description"] = page.MetaDescription
		}
		results = append(results, item)
	}

	return map[string]any{
		"query":       query,
		"results":     results,
		"total_found": len(results),
		"timestamp":   bundle.Timestamp,
		"source":      "duckduckgo_search",
	}, nil
}

// NewsSearch searches recent news.
type NewsSearch struct {
	Service WebService
	Logger  *zap.Logger
}

func (t *NewsSearch) Name() string { return "news_search" }

func (t *NewsSearch) Description() string {
	return "Searches recent news on a topic. Use it for current events and the latest developments."
}

func (t *NewsSearch) Parameters() []tool.Parameter {
	return []tool.Parameter{
		{Name: "query", Type: "string", Description: "News search query", Required: true},
		{Name: "max_results", Type: "integer", Description: "Maximum number of news items (1-15, default 8)"},
		{Name: "time_range", Type: "string", Description: "Time range: d (day), w (week), m (month), y (year); default w"},
	}
}

func (t *NewsSearch) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.Service == nil {
		return disabled(), nil
	}
	args := tool.Args(input)
	query := args.String("query", "")
	if query == "" {
		return queryRequired(), nil
	}
	maxResults, err := args.Int("max_results", 8)
	if err != nil {
		return nil, err
	}
	maxResults = tool.Clamp(maxResults, 1, 15)
	timeRange := strings.ToLower(args.String("time_range", "w"))
	if !validTimeRanges[timeRange] {
		timeRange = "w"
	}

	logger(t.Logger).Info("news search", zap.String("query", query), zap.String("time_range", timeRange))

	bundle, err := t.Service.SearchAndScrape(ctx,
		web.Query{Text: query, MaxResults: maxResults, TimeRange: timeRange, News: true},
		min(maxResults, maxScrapeTargets), true)
	if err != nil {
		return map[string]any{"query": query, "error": "news search failed: " + err.Error(), "news": []any{}}, nil
	}

	news := make([]map[string]any, 0, len(bundle.Results))
	for _, r := range bundle.Results {
		item := map[string]any{
			"title":          r.Title,
			"url":            r.URL,
			"snippet":        r.Snippet,
			"published_date": r.PublishedDate,
			"source":         r.Source,
		}
		if page := bundle.PageFor(r.URL); page != nil && page.OK() && page.Content != "" {
			item["full_content"] = web.Truncate(page.Content, 1500)
		}
		news = append(news, item)
	}

	return map[string]any{
		"query":       query,
		"news":        news,
		"total_found": len(news),
		"time_range":  timeRange,
		"timestamp":   bundle.Timestamp,
		"source":      web.SourceNews,
	}, nil
}

// WebScraper fetches a single page after a reputation check.
type WebScraper struct {
	Service WebService
	Logger  *zap.Logger
}

func (t *WebScraper) Name() string { return "web_scraper" }

func (t *WebScraper) Description() string {
	return "Fetches the full content of a web page by URL: title, text, meta description, links and images."
}

func (t *WebScraper) Parameters() []tool.Parameter {
	return []tool.Parameter{
		{Name: "url", Type: "string", Description: "Page URL starting with http:// or https://", Required: true},
		{Name: "extract_links", Type: "boolean", Description: "Include the links found on the page (default false)"},
	}
}

func (t *WebScraper) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.Service == nil {
		return disabled(), nil
	}
	args := tool.Args(input)
	url := args.String("url", "")
	if url == "" {
		return map[string]any{"error": "url is required"}, nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return map[string]any{"error": "url must start with http:// or https://"}, nil
	}
	extractLinks := args.Bool("extract_links", false)

	rep := web.AnalyzeReputation(url)
	if rep.RiskLevel == web.RiskHigh {
		logger(t.Logger).Warn("refusing risky url", zap.String("url", url), zap.Int("risk_score", rep.RiskScore))
		return map[string]any{"url": url, "error": "URL may be unsafe", "risk_analysis": rep, "content": ""}, nil
	}

	logger(t.Logger).Info("scraping url", zap.String("url", url))
	page := t.Service.PageContent(ctx, url)
	if !page.OK() {
		return map[string]any{"url": url, "error": page.Error, "content": ""}, nil
	}

	out := map[string]any{
		"url":              url,
		"title":            page.Title,
		"content":          page.Content,
		"meta_description": page.MetaDescription,
		"status_code":      page.StatusCode,
		"content_length":   utf8.RuneCountInString(page.Content),
		"risk_analysis":    rep,
		"images":           page.Images,
		"images_count":     max(page.ImagesFound, len(page.Images)),
	}
	if extractLinks {
		out["links"] = page.Links
		out["links_count"] = max(page.LinksFound, len(page.Links))
	}
	return out, nil
}

// WebSummarizer searches and condenses several sources into one digest.
type WebSummarizer struct {
	Service WebService
	Logger  *zap.Logger
}

func (t *WebSummarizer) Name() string { return "web_summarizer" }

func (t *WebSummarizer) Description() string {
	return "Searches the internet and builds a short summary from several sources. Ideal for a broad overview of a topic."
}

func (t *WebSummarizer) Parameters() []tool.Parameter {
	return []tool.Parameter{
		{Name: "query", Type: "string", Description: "Topic or query to research and summarize", Required: true},
		{Name: "max_sources", Type: "integer", Description: "Maximum number of sources (1-5, default 3)"},
	}
}

func (t *WebSummarizer) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.Service == nil {
		return disabled(), nil
	}
	args := tool.Args(input)
	query := args.String("query", "")
	if query == "" {
		return queryRequired(), nil
	}
	maxSources, err := args.Int("max_sources", 3)
	if err != nil {
		return nil, err
	}
	maxSources = tool.Clamp(maxSources, 1, 5)

	logger(t.Logger).Info("summarizing", zap.String("query", query), zap.Int("max_sources", maxSources))

	sum, err := t.Service.SearchWithSummary(ctx, query, maxSources)
	if err != nil {
		return map[string]any{
			"query":   query,
			"error":   "summary failed: " + err.Error(),
			"summary": "",
			"sources": []any{},
		}, nil
	}

	sources := make([]map[string]any, 0, len(sum.Pages))
	for _, p := range sum.Pages {
		if !p.OK() {
			continue
		}
		sources = append(sources, map[string]any{
			"title":   p.Title,
			"url":     p.URL,
			"snippet": web.Truncate(p.MetaDescription, 200),
		})
	}

	return map[string]any{
		"query":                query,
		"summary":              sum.Text,
		"sources":              sources,
		"sources_count":        sum.Sources,
		"timestamp":            sum.Timestamp,
		"search_results_total": len(sum.Results),
	}, nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
