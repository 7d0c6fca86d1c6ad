package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var articleBody = strings.Repeat("Goroutines are cheap. ", 60)

// fakeWeb serves a DuckDuckGo-like search page plus the pages it links to.
type fakeWeb struct {
	srv *httptest.Server

	mu      sync.Mutex
	queries []url.Values
}

func newFakeWeb(t *testing.T) *fakeWeb {
	t.Helper()
	f := &fakeWeb{}
	mux := http.NewServeMux()
	mux.HandleFunc("/html/", f.search)
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Go Article</title>
<meta name="description" content="All about Go"></head>
<body><nav>site menu</nav>
<article><h1>Concurrency</h1><p>%s</p>
<a href="/docs">Docs</a>
<a href="https://golang.org/">Go home</a>
<a href="mailto:gopher@example.com">Mail</a>
<a href="/empty"></a>
<img src="/img/logo.png" alt="logo">
</article>
<script>var tracking = 1;</script>
</body></html>`, articleBody)
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><main><p>Tiny   page</p></main></body></html>`)
	})
	mux.HandleFunc("/missing", http.NotFound)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeWeb) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if q.Get("q") == "boom" {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><body>`)
	if q.Get("q") != "videos" {
		redirect := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(f.srv.URL+"/article") + "&rut=abc"
		fmt.Fprintf(w, `<div class="result">
  <a class="result__a" href="%s">Go   Article</a>
  <a class="result__snippet">All about
   Go</a>
  <span class="result__url">blog.example</span>
  <span class="result__timestamp">2026-10-01</span>
</div>`, redirect)
		fmt.Fprintf(w, `<div class="result">
  <a class="result__a" href="%s/short">Short page</a>
  <a class="result__snippet">tiny</a>
</div>`, f.srv.URL)
	}
	fmt.Fprint(w, `<div class="result">
  <a class="result__a" href="https://www.youtube.com/watch?v=1">A video</a>
</div>
<div class="result"><a class="result__a">no href</a></div>
</body></html>`)
}

func (f *fakeWeb) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeWeb) service(t *testing.T) *Service {
	t.Helper()
	svc := NewService(Options{
		SearchBaseURL: f.srv.URL + "/html/",
		Region:        "ua-uk",
		HTTPClient:    &http.Client{Transport: &http.Transport{}},
	})
	t.Cleanup(svc.Close)
	return svc
}

func TestSearchParsesResults(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	res, err := svc.Search(context.Background(), Query{Text: "golang", MaxResults: 10})
	require.NoError(t, err)

	want := []Result{
		{Title: "Go Article", URL: f.srv.URL + "/article", Snippet: "All about Go", PublishedDate: "2026-10-01"},
		{Title: "Short page", URL: f.srv.URL + "/short", Snippet: "tiny"},
		{Title: "A video", URL: "https://www.youtube.com/watch?v=1"},
	}
	if diff := cmp.Diff(want, res.Results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "golang", res.Query)
	assert.Equal(t, SourceWeb, res.Source)
	assert.NotEmpty(t, res.Timestamp)

	q := f.lastQuery()
	assert.Equal(t, "golang", q.Get("q"))
	assert.Equal(t, "ua-uk", q.Get("kl"))
	assert.Empty(t, q.Get("df"))
}

func TestSearchLimitAndRegionOverride(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	res, err := svc.Search(context.Background(), Query{Text: "golang", MaxResults: 1, Region: "us-en", TimeRange: "m"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	q := f.lastQuery()
	assert.Equal(t, "us-en", q.Get("kl"))
	assert.Equal(t, "m", q.Get("df"))
}

func TestSearchRecentNews(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	res, err := svc.SearchRecentNews(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Equal(t, SourceNews, res.Source)
	assert.Equal(t, "w", f.lastQuery().Get("df"))

	require.Len(t, res.Results, 3)
	assert.Equal(t, "blog.example", res.Results[0].Source)
	assert.Equal(t, "127.0.0.1", res.Results[1].Source)
	assert.Equal(t, "www.youtube.com", res.Results[2].Source)
}

func TestSearchUpstreamFailure(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	_, err := svc.Search(context.Background(), Query{Text: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestScrapeExtractsPage(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	page := svc.PageContent(context.Background(), f.srv.URL+"/article")
	require.True(t, page.OK(), page.Error)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "Go Article", page.Title)
	assert.Equal(t, "All about Go", page.MetaDescription)
	assert.Contains(t, page.Content, "Concurrency")
	assert.Contains(t, page.Content, "Goroutines are cheap.")
	assert.NotContains(t, page.Content, "tracking")
	assert.NotContains(t, page.Content, "site menu")

	wantLinks := []Link{
		{URL: f.srv.URL + "/docs", Text: "Docs"},
		{URL: "https://golang.org/", Text: "Go home"},
	}
	if diff := cmp.Diff(wantLinks, page.Links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []Image{{URL: f.srv.URL + "/img/logo.png", Alt: "logo"}}, page.Images)
}

func TestScrapeFallsBackToPlainText(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	page := svc.PageContent(context.Background(), f.srv.URL+"/short")
	require.True(t, page.OK(), page.Error)
	assert.Equal(t, "Tiny page", page.Content)
	assert.Empty(t, page.Links)
	assert.NotNil(t, page.Links)
}

func TestScrapeFailureIsReported(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	page := svc.PageContent(context.Background(), f.srv.URL+"/missing")
	assert.False(t, page.OK())
	assert.Contains(t, page.Error, "HTTP 404")
	assert.Equal(t, f.srv.URL+"/missing", page.URL)
}

func TestScrapeManyKeepsOrder(t *testing.T) {
	f := newFakeWeb(t)
	scraper := NewScraper(Options{MaxConcurrent: 2, HTTPClient: &http.Client{Transport: &http.Transport{}}})
	defer scraper.client.CloseIdleConnections()

	urls := []string{f.srv.URL + "/missing", f.srv.URL + "/article", f.srv.URL + "/short"}
	pages := scraper.ScrapeMany(context.Background(), urls)

	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, urls[i], p.URL)
	}
	assert.False(t, pages[0].OK())
	assert.Equal(t, "Go Article", pages[1].Title)
	assert.Equal(t, "Tiny page", pages[2].Content)
}

func TestSearchAndScrape(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	bundle, err := svc.SearchAndScrape(context.Background(), Query{Text: "golang", MaxResults: 5}, 3, true)
	require.NoError(t, err)

	assert.Len(t, bundle.Results, 3)
	require.Len(t, bundle.Pages, 2, "youtube result is not scraped")
	assert.Empty(t, bundle.Note)

	article := bundle.PageFor(f.srv.URL + "/article")
	require.NotNil(t, article)
	assert.Equal(t, "Go Article", article.Title)
	assert.Nil(t, bundle.PageFor("https://www.youtube.com/watch?v=1"))
}

func TestSearchAndScrapeWithoutContent(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	bundle, err := svc.SearchAndScrape(context.Background(), Query{Text: "golang"}, 3, false)
	require.NoError(t, err)
	assert.Len(t, bundle.Results, 3)
	assert.Empty(t, bundle.Pages)
}

func TestSearchAndScrapeNothingScrapable(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	bundle, err := svc.SearchAndScrape(context.Background(), Query{Text: "videos"}, 3, true)
	require.NoError(t, err)
	assert.Len(t, bundle.Results, 1)
	assert.Empty(t, bundle.Pages)
	assert.Equal(t, "No scrapable URLs found", bundle.Note)
}

func TestSearchWithSummary(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	sum, err := svc.SearchWithSummary(context.Background(), "golang", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Sources)
	assert.True(t, strings.HasPrefix(sum.Text, "Source 1: Go Article\n"), sum.Text)
	assert.Contains(t, sum.Text, "...\nURL: "+f.srv.URL+"/article\n")
	assert.Contains(t, sum.Text, "Source 2: \nTiny page\nURL: "+f.srv.URL+"/short\n")

	head := "Source 1: Go Article\n"
	body := sum.Text[len(head):strings.Index(sum.Text, "\nURL: ")]
	assert.Equal(t, summaryTextCap, len([]rune(body)))
}

func TestSearchWithSummaryFallback(t *testing.T) {
	f := newFakeWeb(t)
	svc := f.service(t)

	sum, err := svc.SearchWithSummary(context.Background(), "videos", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Sources)
	assert.Equal(t, summaryFallback, sum.Text)
}

func TestAnalyzeReputation(t *testing.T) {
	tests := []struct {
		url       string
		trusted   bool
		https     bool
		score     int
		level     string
		recs      []string
		registrar string
	}{
		{
			url: "https://en.wikipedia.org/wiki/Go", trusted: true, https: true,
			level: RiskLow, recs: []string{"URL looks safe"}, registrar: "wikipedia.org",
		},
		{
			url: "http://example.com/page", level: RiskLow,
			recs: []string{"URL uses insecure HTTP protocol"}, registrar: "example.com",
		},
		{
			url: "https://evilwikipedia.org", https: true,
			level: RiskLow, recs: []string{"URL looks safe"}, registrar: "evilwikipedia.org",
		},
		{
			url: "https://a-b-c-d-e.x.y.z.example.com", https: true, score: 2,
			level: RiskMedium, recs: []string{}, registrar: "example.com",
		},
		{
			url: "http://a_b-c-d-e-f.one.two.three.example.com", score: 3, level: RiskHigh,
			recs:      []string{"URL uses insecure HTTP protocol", "Domain may be suspicious, proceed with caution"},
			registrar: "example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rep := AnalyzeReputation(tt.url)
			assert.Empty(t, rep.Error)
			assert.Equal(t, tt.trusted, rep.IsTrusted)
			assert.Equal(t, tt.https, rep.IsHTTPS)
			assert.Equal(t, tt.score, rep.RiskScore)
			assert.Equal(t, tt.level, rep.RiskLevel)
			assert.Equal(t, tt.recs, rep.Recommendations)
			assert.Equal(t, tt.registrar, rep.RegisteredName)
		})
	}
}

func TestAnalyzeReputationInvalid(t *testing.T) {
	for _, raw := range []string{"not a url", "://bad", "mailto:x@example.com"} {
		rep := AnalyzeReputation(raw)
		assert.Equal(t, RiskUnknown, rep.RiskLevel, raw)
		assert.NotEmpty(t, rep.Error, raw)
	}
}

func TestIsScrapableURL(t *testing.T) {
	tests := map[string]bool{
		"https://go.dev/doc/":               true,
		"http://example.com/a?b=c":          true,
		"https://example.com/report.PDF":    false,
		"https://example.com/archive.zip":   false,
		"https://www.youtube.com/watch?v=1": false,
		"https://youtu.be/xyz":              false,
		"https://m.facebook.com/page":       false,
		"ftp://example.com/file":            false,
		"/relative/path":                    false,
		"https://":                          false,
		"%zz":                               false,
	}
	for raw, want := range tests {
		assert.Equal(t, want, IsScrapableURL(raw), raw)
	}
}

func TestDecodeRedirect(t *testing.T) {
	assert.Equal(t, "https://go.dev/", decodeRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&rut=1"))
	assert.Equal(t, "https://go.dev/", decodeRedirect("https://go.dev/"))
	assert.Empty(t, decodeRedirect("javascript:void(0)"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 10))
	assert.Equal(t, "hi", Truncate("hi", -1))
}
