package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DefaultSearchBaseURL is the DuckDuckGo HTML endpoint.
const DefaultSearchBaseURL = "https://html.duckduckgo.com/html/"

// maxProviderResults is the most results requested from the search provider.
const maxProviderResults = 50

// Search sources.
const (
	SourceWeb  = "duckduckgo"
	SourceNews = "duckduckgo_news"
)

// Query is a search request.
type Query struct {
	Text       string
	MaxResults int
	Region     string // e.g. ua-uk; empty uses the configured region
	TimeRange  string // d, w, m, y or empty
	News       bool
}

// Result is one search hit.
type Result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	PublishedDate string `json:"published_date"`
	Source        string `json:"source,omitempty"`
}

// SearchResults is the outcome of a search.
type SearchResults struct {
	Query     string   `json:"query"`
	Results   []Result `json:"results"`
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
}

// Searcher queries DuckDuckGo's HTML interface.
type Searcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	region    string
	logger    *zap.Logger
}

// NewSearcher creates a searcher.
func NewSearcher(opts Options) *Searcher {
	opts = opts.withDefaults()
	return &Searcher{
		client:    opts.HTTPClient,
		baseURL:   opts.SearchBaseURL,
		userAgent: opts.UserAgent,
		region:    opts.Region,
		logger:    opts.Logger,
	}
}

// Search runs a query. News queries default to the last week.
func (s *Searcher) Search(ctx context.Context, q Query) (*SearchResults, error) {
	limit := q.MaxResults
	if limit <= 0 || limit > maxProviderResults {
		limit = maxProviderResults
	}
	source := SourceWeb
	if q.News {
		source = SourceNews
		if q.TimeRange == "" {
			q.TimeRange = "w"
		}
	}

	s.logger.Info("searching", zap.String("query", q.Text), zap.Bool("news", q.News), zap.Int("max_results", limit))

	doc, _, err := fetchDocument(ctx, s.client, s.searchURL(q), s.userAgent)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", q.Text), zap.Error(err))
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	results := parseResults(doc, limit, q.News)
	return &SearchResults{
		Query:     q.Text,
		Results:   results,
		Timestamp: timestamp(),
		Source:    source,
	}, nil
}

func (s *Searcher) searchURL(q Query) string {
	params := url.Values{}
	params.Set("q", q.Text)
	region := q.Region
	if region == "" {
		region = s.region
	}
	if region != "" {
		params.Set("kl", region)
	}
	if q.TimeRange != "" {
		params.Set("df", q.TimeRange)
	}
	return s.baseURL + "?" + params.Encode()
}

// parseResults extracts result blocks from a DuckDuckGo HTML page.
func parseResults(doc *goquery.Document, limit int, news bool) []Result {
	results := []Result{}
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		link := sel.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		r := Result{
			Title:         collapseSpace(link.Text()),
			URL:           decodeRedirect(href),
			Snippet:       collapseSpace(sel.Find(".result__snippet").First().Text()),
			PublishedDate: collapseSpace(sel.Find(".result__timestamp").First().Text()),
		}
		if r.URL == "" || r.Title == "" {
			return true
		}
		if news {
			r.Source = collapseSpace(sel.Find(".result__url").First().Text())
			if r.Source == "" {
				if u, err := url.Parse(r.URL); err == nil {
					r.Source = u.Hostname()
				}
			}
		}
		results = append(results, r)
		return true
	})
	return results
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func decodeRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
