// Package web provides search, page scraping and URL reputation checks for
// the web tools.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/flynn-ai/llmgate/internal/config"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 5 << 20

// Options configures the web service.
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int
	UserAgent     string
	Region        string
	SearchBaseURL string
	HTTPClient    *http.Client // optional, overrides Timeout
	Logger        *zap.Logger
}

// OptionsFromConfig builds Options from the [web] config section.
func OptionsFromConfig(cfg config.WebConfig, logger *zap.Logger) Options {
	return Options{
		Timeout:       time.Duration(cfg.Timeout) * time.Second,
		MaxConcurrent: cfg.MaxConcurrent,
		UserAgent:     cfg.UserAgent,
		Region:        cfg.SearchRegion,
		SearchBaseURL: cfg.SearchBaseURL,
		Logger:        logger,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = config.DefaultUserAgent
	}
	if o.SearchBaseURL == "" {
		o.SearchBaseURL = DefaultSearchBaseURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// fetchDocument GETs a URL and parses the body as HTML, decoding it to UTF-8
// from the declared or sniffed charset.
func fetchDocument(ctx context.Context, client *http.Client, rawURL, userAgent string) (*goquery.Document, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parse html: %w", err)
	}
	return doc, resp.StatusCode, nil
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
