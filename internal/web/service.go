package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	// summarySources is the most scraped pages folded into a summary.
	summarySources  = 3
	summaryTextCap  = 500
	summaryFallback = "Could not retrieve page content."
)

// Bundle is the result of a search followed by scraping the top hits.
type Bundle struct {
	Query     string   `json:"query"`
	Results   []Result `json:"search_results"`
	Pages     []Page   `json:"scraped_content"`
	Timestamp string   `json:"timestamp"`
	// Note explains an empty Pages, e.g. when no result was scrapable.
	Note string `json:"note,omitempty"`
}

// PageFor returns the scraped page for url, or nil.
func (b *Bundle) PageFor(url string) *Page {
	for i := range b.Pages {
		if b.Pages[i].URL == url {
			return &b.Pages[i]
		}
	}
	return nil
}

// Summary is a Bundle with a plain-text digest of its pages.
type Summary struct {
	*Bundle
	Text    string `json:"summary"`
	Sources int    `json:"summary_sources"`
}

// Service combines search and scraping.
type Service struct {
	searcher *Searcher
	scraper  *Scraper
	client   *http.Client
	logger   *zap.Logger
}

// NewService creates a service sharing one HTTP client between search and
// scraping.
func NewService(opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		searcher: NewSearcher(opts),
		scraper:  NewScraper(opts),
		client:   opts.HTTPClient,
		logger:   opts.Logger,
	}
}

// Search runs a single search.
func (s *Service) Search(ctx context.Context, q Query) (*SearchResults, error) {
	return s.searcher.Search(ctx, q)
}

// SearchAndScrape searches, then scrapes up to maxScrape of the top results.
// Results that are not scrapable are skipped; that alone is not an error.
func (s *Service) SearchAndScrape(ctx context.Context, q Query, maxScrape int, includeContent bool) (*Bundle, error) {
	res, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Query:     q.Text,
		Results:   res.Results,
		Pages:     []Page{},
		Timestamp: timestamp(),
	}
	if !includeContent || maxScrape <= 0 {
		return bundle, nil
	}

	var urls []string
	for i, r := range res.Results {
		if i >= maxScrape {
			break
		}
		if r.URL != "" && IsScrapableURL(r.URL) {
			urls = append(urls, r.URL)
		}
	}
	if len(urls) == 0 {
		bundle.Note = "No scrapable URLs found"
		return bundle, nil
	}

	bundle.Pages = s.scraper.ScrapeMany(ctx, urls)
	s.logger.Info("search and scrape complete",
		zap.String("query", q.Text),
		zap.Int("results", len(bundle.Results)),
		zap.Int("scraped", len(bundle.Pages)))
	return bundle, nil
}

// PageContent scrapes one URL. Failures are reported in Page.Error.
func (s *Service) PageContent(ctx context.Context, url string) Page {
	page, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return Page{URL: url, Error: err.Error(), Links: []Link{}, Images: []Image{}}
	}
	return *page
}

// SearchRecentNews searches news from the last week.
func (s *Service) SearchRecentNews(ctx context.Context, text string, maxResults int) (*SearchResults, error) {
	return s.searcher.Search(ctx, Query{Text: text, MaxResults: maxResults, TimeRange: "w", News: true})
}

// SearchWithSummary searches, scrapes up to maxSources results and builds a
// text digest of the pages that were retrieved.
func (s *Service) SearchWithSummary(ctx context.Context, text string, maxSources int) (*Summary, error) {
	bundle, err := s.SearchAndScrape(ctx, Query{Text: text, MaxResults: maxSources}, maxSources, true)
	if err != nil {
		return nil, err
	}

	var parts []string
	for i, p := range bundle.Pages {
		if i >= summarySources {
			break
		}
		if !p.OK() || p.Content == "" {
			continue
		}
		body := p.Content
		if len([]rune(body)) > summaryTextCap {
			body = Truncate(body, summaryTextCap-3) + "..."
		}
		parts = append(parts, fmt.Sprintf("Source %d: %s\n%s\nURL: %s\n", i+1, p.Title, body, p.URL))
	}

	sum := &Summary{Bundle: bundle, Text: summaryFallback, Sources: len(parts)}
	if len(parts) > 0 {
		sum.Text = strings.Join(parts, "\n")
	}
	return sum, nil
}

// Close releases idle connections.
func (s *Service) Close() {
	s.client.CloseIdleConnections()
}
