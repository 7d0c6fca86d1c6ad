package web

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/flynn-ai/llmgate/internal/fanout"
)

// Page limits.
const (
	MaxLinks  = 20
	MaxImages = 10

	// minArticleChars is the shortest markdown extraction accepted before
	// falling back to plain page text.
	minArticleChars  = 100
	maxFallbackChars = 5000
	maxContentChars  = 20000
)

// Link is a hyperlink found on a page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Image is an image found on a page.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Page is a scraped web page. Error is set, and the other fields are
// empty, when the page could not be fetched.
type Page struct {
	URL             string  `json:"url"`
	StatusCode      int     `json:"status_code,omitempty"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	MetaDescription string  `json:"meta_description"`
	Links           []Link  `json:"links"`
	Images          []Image `json:"images"`
	// LinksFound and ImagesFound count every valid link and image before
	// the caps are applied.
	LinksFound  int    `json:"-"`
	ImagesFound int    `json:"-"`
	Error       string `json:"error,omitempty"`
}

// OK reports whether the page was fetched successfully.
func (p *Page) OK() bool { return p.Error == "" }

// Scraper fetches pages and extracts their readable content.
type Scraper struct {
	client        *http.Client
	userAgent     string
	maxConcurrent int
	logger        *zap.Logger
}

// NewScraper creates a scraper.
func NewScraper(opts Options) *Scraper {
	opts = opts.withDefaults()
	return &Scraper{
		client:        opts.HTTPClient,
		userAgent:     opts.UserAgent,
		maxConcurrent: opts.MaxConcurrent,
		logger:        opts.Logger,
	}
}

// Scrape fetches one page.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	s.logger.Info("scraping", zap.String("url", rawURL))

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	doc, status, err := fetchDocument(ctx, s.client, rawURL, s.userAgent)
	if err != nil {
		s.logger.Warn("scrape failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	page := &Page{
		URL:             rawURL,
		StatusCode:      status,
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		MetaDescription: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		Links:           []Link{},
		Images:          []Image{},
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := collapseSpace(a.Text())
		abs := resolve(base, a.AttrOr("href", ""))
		if text == "" || abs == "" {
			return
		}
		page.LinksFound++
		if len(page.Links) < MaxLinks {
			page.Links = append(page.Links, Link{URL: abs, Text: text})
		}
	})

	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		abs := resolve(base, img.AttrOr("src", ""))
		if abs == "" {
			return
		}
		page.ImagesFound++
		if len(page.Images) < MaxImages {
			page.Images = append(page.Images, Image{URL: abs, Alt: strings.TrimSpace(img.AttrOr("alt", ""))})
		}
	})

	page.Content = extractContent(doc, base.Host)
	return page, nil
}

// ScrapeMany scrapes urls with bounded concurrency. The result has one
// Page per url, in order; failures are reported in Page.Error.
func (s *Scraper) ScrapeMany(ctx context.Context, urls []string) []Page {
	outcomes := fanout.Map(ctx, urls, s.maxConcurrent, func(ctx context.Context, u string) (*Page, error) {
		return s.Scrape(ctx, u)
	})

	pages := make([]Page, len(urls))
	for i, o := range outcomes {
		if o.Err != nil {
			pages[i] = Page{URL: urls[i], Error: o.Err.Error(), Links: []Link{}, Images: []Image{}}
			continue
		}
		pages[i] = *o.Value
	}
	return pages
}

var (
	inlineSpace = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLines  = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// extractContent converts the main content element to markdown. Pages whose
// article text is too short fall back to the flattened body text.
func extractContent(doc *goquery.Document, host string) string {
	doc.Find("script, style, noscript, nav, iframe, svg").Remove()

	main := doc.Find("article").First()
	if main.Length() == 0 {
		main = doc.Find("main").First()
	}
	if main.Length() == 0 {
		main = doc.Find("body").First()
	}

	converter := md.NewConverter(host, true, nil)
	markdown := converter.Convert(main)
	markdown = inlineSpace.ReplaceAllString(markdown, " ")
	markdown = blankLines.ReplaceAllString(markdown, "\n\n")
	markdown = strings.TrimSpace(markdown)
	if len([]rune(markdown)) > minArticleChars {
		return Truncate(markdown, maxContentChars)
	}

	return Truncate(collapseSpace(doc.Text()), maxFallbackChars)
}

// resolve makes href absolute against base. Only http(s) URLs with a host
// are returned.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Host == "" || (abs.Scheme != "http" && abs.Scheme != "https") {
		return ""
	}
	return abs.String()
}
