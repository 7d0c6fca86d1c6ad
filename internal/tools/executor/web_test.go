package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flynn-ai/llmgate/internal/tool"
	"github.com/flynn-ai/llmgate/internal/web"
)

type fakeWeb struct {
	bundle  *web.Bundle
	summary *web.Summary
	page    web.Page
	err     error

	gotQuery     web.Query
	gotMaxScrape int
	gotContent   bool
	gotSources   int
	gotURL       string
}

func (f *fakeWeb) SearchAndScrape(ctx context.Context, q web.Query, maxScrape int, includeContent bool) (*web.Bundle, error) {
	f.gotQuery, f.gotMaxScrape, f.gotContent = q, maxScrape, includeContent
	return f.bundle, f.err
}

func (f *fakeWeb) PageContent(ctx context.Context, url string) web.Page {
	f.gotURL = url
	return f.page
}

func (f *fakeWeb) SearchWithSummary(ctx context.Context, text string, maxSources int) (*web.Summary, error) {
	f.gotSources = maxSources
	return f.summary, f.err
}

func sampleBundle() *web.Bundle {
	return &web.Bundle{
		Query: "golang",
		Results: []web.Result{
			{Title: "Go", URL: "https://go.dev/", Snippet: "The Go language", PublishedDate: "2026-10-01", Source: "go.dev"},
			{Title: "Failed", URL: "https://broken.example/", Snippet: "down"},
			{Title: "Video", URL: "https://youtube.com/watch?v=1"},
		},
		Pages: []web.Page{
			{URL: "https://broken.example/", Error: "HTTP 500: 500 Internal Server Error"},
			{URL: "https://go.dev/", Title: "Go", Content: strings.Repeat("g", 2500), MetaDescription: "Build simple software"},
		},
		Timestamp: "2026-10-18T10:00:00Z",
	}
}

func TestWebSearch(t *testing.T) {
	svc := &fakeWeb{bundle: sampleBundle()}
	ws := &WebSearch{Service: svc}

	res, err := ws.Execute(context.Background(), map[string]any{"query": "  golang ", "max_results": "20"})
	require.NoError(t, err)

	assert.Equal(t, web.Query{Text: "golang", MaxResults: 10}, svc.gotQuery)
	assert.Equal(t, 3, svc.gotMaxScrape)
	assert.True(t, svc.gotContent)

	out := res.(map[string]any)
	assert.Equal(t, "golang", out["query"])
	assert.Equal(t, 3, out["total_found"])
	assert.Equal(t, "duckduckgo_search", out["source"])
	assert.Equal(t, "2026-10-18T10:00:00Z", out["timestamp"])

	results := out["results"].([]map[string]any)
	require.Len(t, results, 3)
	assert.Len(t, results[0]["full_content"], 2000)
	assert.Equal(t, "Build simple software", results[0]["meta_description"])
	assert.NotContains(t, results[1], "full_content", "failed page contributes no content")
	if diff := cmp.Diff(map[string]any{
		"title": "Video", "url": "https://youtube.com/watch?v=1", "snippet": "", "published_date": "",
	}, results[2]); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestWebSearchArguments(t *testing.T) {
	svc := &fakeWeb{bundle: sampleBundle()}
	ws := &WebSearch{Service: svc}

	_, err := ws.Execute(context.Background(), map[string]any{"query": "go", "max_results": 0.0, "include_content": false})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.gotQuery.MaxResults)
	assert.Equal(t, 1, svc.gotMaxScrape)
	assert.False(t, svc.gotContent)

	res, err := ws.Execute(context.Background(), map[string]any{"query": "   "})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "query is required"}, res)

	_, err = ws.Execute(context.Background(), map[string]any{"query": "go", "max_results": "many"})
	require.Error(t, err)
	assert.Equal(t, tool.KindInvalidArguments, tool.FailureKind(err))
}

func TestWebSearchServiceError(t *testing.T) {
	ws := &WebSearch{Service: &fakeWeb{err: errors.New("HTTP 503")}}

	res, err := ws.Execute(context.Background(), map[string]any{"query": "go"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "go", "error": "search failed: HTTP 503", "results": []any{}}, res)
	assert.True(t, tool.IsErrorResult(res))
}

func TestNewsSearch(t *testing.T) {
	svc := &fakeWeb{bundle: sampleBundle()}
	ns := &NewsSearch{Service: svc}

	res, err := ns.Execute(context.Background(), map[string]any{"query": "go", "time_range": "x"})
	require.NoError(t, err)

	assert.Equal(t, web.Query{Text: "go", MaxResults: 8, TimeRange: "w", News: true}, svc.gotQuery)
	assert.Equal(t, 3, svc.gotMaxScrape)

	out := res.(map[string]any)
	assert.Equal(t, "w", out["time_range"])
	assert.Equal(t, "duckduckgo_news", out["source"])
	news := out["news"].([]map[string]any)
	require.Len(t, news, 3)
	assert.Equal(t, "go.dev", news[0]["source"])
	assert.Len(t, news[0]["full_content"], 1500)

	_, err = ns.Execute(context.Background(), map[string]any{"query": "go", "time_range": "D", "max_results": 99})
	require.NoError(t, err)
	assert.Equal(t, "d", svc.gotQuery.TimeRange)
	assert.Equal(t, 15, svc.gotQuery.MaxResults)
}

func TestWebScraper(t *testing.T) {
	svc := &fakeWeb{page: web.Page{
		URL:             "https://go.dev/",
		StatusCode:      200,
		Title:           "Go",
		Content:         "héllo",
		MetaDescription: "Build simple software",
		Links:           []web.Link{{URL: "https://go.dev/doc/", Text: "Docs"}},
		Images:          []web.Image{{URL: "https://go.dev/logo.png", Alt: "logo"}},
		LinksFound:      42,
		ImagesFound:     1,
	}}
	sc := &WebScraper{Service: svc}

	res, err := sc.Execute(context.Background(), map[string]any{"url": "https://go.dev/"})
	require.NoError(t, err)
	out := res.(map[string]any)
	assert.Equal(t, "https://go.dev/", svc.gotURL)
	assert.Equal(t, 5, out["content_length"])
	assert.Equal(t, 200, out["status_code"])
	assert.Equal(t, 1, out["images_count"])
	assert.NotContains(t, out, "links")
	rep := out["risk_analysis"].(web.Reputation)
	assert.Equal(t, web.RiskLow, rep.RiskLevel)

	res, err = sc.Execute(context.Background(), map[string]any{"url": "https://go.dev/", "extract_links": "true"})
	require.NoError(t, err)
	out = res.(map[string]any)
	assert.Equal(t, svc.page.Links, out["links"])
	assert.Equal(t, 42, out["links_count"])
}

func TestWebScraperRejects(t *testing.T) {
	svc := &fakeWeb{}
	sc := &WebScraper{Service: svc}

	res, err := sc.Execute(context.Background(), map[string]any{"url": "ftp://example.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "url must start with http:// or https://"}, res)

	res, err = sc.Execute(context.Background(), map[string]any{"url": "http://a_b-c-d-e-f.one.two.three.example.com/"})
	require.NoError(t, err)
	out := res.(map[string]any)
	assert.Equal(t, "URL may be unsafe", out["error"])
	assert.Equal(t, "", out["content"])
	assert.Empty(t, svc.gotURL, "risky url is never fetched")

	svc.page = web.Page{URL: "https://go.dev/x", Error: "HTTP 404: 404 Not Found"}
	res, err = sc.Execute(context.Background(), map[string]any{"url": "https://go.dev/x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "https://go.dev/x", "error": "HTTP 404: 404 Not Found", "content": ""}, res)
}

func TestWebSummarizer(t *testing.T) {
	bundle := sampleBundle()
	bundle.Pages[1].MetaDescription = strings.Repeat("m", 300)
	svc := &fakeWeb{summary: &web.Summary{Bundle: bundle, Text: "Source 2: Go\n...", Sources: 1}}
	su := &WebSummarizer{Service: svc}

	res, err := su.Execute(context.Background(), map[string]any{"query": "go", "max_sources": 9})
	require.NoError(t, err)
	assert.Equal(t, 5, svc.gotSources)

	out := res.(map[string]any)
	assert.Equal(t, "Source 2: Go\n...", out["summary"])
	assert.Equal(t, 1, out["sources_count"])
	assert.Equal(t, 3, out["search_results_total"])
	sources := out["sources"].([]map[string]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://go.dev/", sources[0]["url"])
	assert.Len(t, sources[0]["snippet"], 200)
}

func TestWebToolsDisabled(t *testing.T) {
	for _, tl := range []tool.Tool{&WebSearch{}, &NewsSearch{}, &WebScraper{}, &WebSummarizer{}} {
		res, err := tl.Execute(context.Background(), map[string]any{"query": "go", "url": "https://go.dev/"})
		require.NoError(t, err, tl.Name())
		assert.Equal(t, map[string]any{"error": ErrWebDisabled}, res, tl.Name())
	}
}
