package web

import (
	"net/url"
	"strings"
)

var (
	unscrapableExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".zip", ".rar"}
	unscrapableDomains    = []string{"youtube.com", "youtu.be", "twitter.com", "facebook.com", "instagram.com"}
)

// IsScrapableURL reports whether a URL points at an HTML page worth fetching:
// http(s) with a host, not a document or archive, and not a video or social
// media site.
func IsScrapableURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}

	lower := strings.ToLower(rawURL)
	for _, ext := range unscrapableExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range unscrapableDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	return true
}
