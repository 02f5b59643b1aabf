// Package metadata reads page title, description and preview image for a
// bookmarked URL.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrUnsupportedScheme = errors.New("only http and https URLs can be fetched")
	ErrNotHTML           = errors.New("response is not an HTML document")
)

// Fetcher downloads a page and extracts its metadata.
type Fetcher struct {
	logger      *slog.Logger
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

type FetcherConfig struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64
}

// Page is what a fetch yields. Raw holds every meta property/name pair found.
type Page struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Favicon     string            `json:"favicon"`
	SiteName    string            `json:"site_name"`
	Raw         map[string]string `json:"raw"`
}

func NewFetcher(logger *slog.Logger, cfg *FetcherConfig) *Fetcher {
	timeout := 10 * time.Second
	userAgent := "go-marks/1.0"
	maxBodySize := int64(2 << 20)

	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		if cfg.UserAgent != "" {
			userAgent = cfg.UserAgent
		}
		if cfg.MaxBodySize > 0 {
			maxBodySize = cfg.MaxBodySize
		}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        50,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 5,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Fetcher{
		logger:      logger,
		client:      client,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Fetch retrieves rawURL and parses its head.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: status %d", target.Host, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, ErrNotHTML
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	// Relative links resolve against the final URL after redirects.
	page := Extract(doc, resp.Request.URL)

	f.logger.Debug("metadata fetched",
		"url", page.URL,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	return page, nil
}

// Extract reads metadata from a parsed document. Open Graph values win over
// twitter cards, which win over plain HTML.
func Extract(doc *goquery.Document, base *url.URL) *Page {
	raw := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		content, ok := s.Attr("content")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || !ok {
			return
		}
		if _, seen := raw[key]; !seen {
			raw[key] = strings.TrimSpace(content)
		}
	})

	page := &Page{
		URL: base.String(),
		Raw: raw,
	}

	page.Title = first(raw["og:title"], raw["twitter:title"], strings.TrimSpace(doc.Find("head title").First().Text()))
	page.Description = first(raw["og:description"], raw["twitter:description"], raw["description"])
	page.SiteName = first(raw["og:site_name"], raw["application-name"], base.Hostname())
	page.Image = resolve(base, first(raw["og:image"], raw["og:image:url"], raw["twitter:image"]))

	var icon string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		for _, r := range strings.Fields(rel) {
			if r == "icon" || r == "apple-touch-icon" {
				icon = s.AttrOr("href", "")
				return icon == ""
			}
		}
		return true
	})
	if icon == "" {
		icon = "/favicon.ico"
	}
	page.Favicon = resolve(base, icon)

	return page
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
