package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"

	"github.com/cruxlabs/crux/internal/model"
)

// PageFetcher retrieves a user-supplied source page and turns it into a
// supplementary EvidenceItem. Fetches honor the target's robots.txt.
type PageFetcher struct {
	httpClient *http.Client
	authority  *AuthorityClassifier
	userAgent  string
	maxBytes   int64

	mu     sync.RWMutex
	robots map[string]*robotstxt.RobotsData
}

// NewPageFetcher creates a fetcher from configuration.
func NewPageFetcher(cfg model.FetchConfig) *PageFetcher {
	return &PageFetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		authority: NewAuthorityClassifier(),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch retrieves the page at rawURL and extracts title plus visible
// text as an EvidenceItem. Returns an error when robots.txt disallows
// the fetch.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*model.EvidenceItem, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}

	allowed, err := f.canFetch(ctx, parsed)
	if err == nil && !allowed {
		return nil, fmt.Errorf("robots.txt disallows fetching %s", parsed.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title, text := ExtractPageText(string(body))
	if title == "" {
		title = rawURL
	}
	text = truncateBytes(text, 1000)

	return &model.EvidenceItem{
		Title:     title,
		Excerpt:   text,
		URL:       rawURL,
		Publisher: parsed.Hostname(),
		Authority: f.authority.Classify(rawURL),
		Relevance: 1, // User-supplied source, always relevant to the claim
	}, nil
}

// canFetch checks robots.txt for the URL's host, caching per host.
// Unreachable or missing robots.txt allows the fetch.
func (f *PageFetcher) canFetch(ctx context.Context, u *url.URL) (bool, error) {
	f.mu.RLock()
	data, ok := f.robots[u.Host]
	f.mu.RUnlock()

	if !ok {
		robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return true, err
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return true, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err = robotstxt.FromResponse(resp)
		if err != nil {
			return true, err
		}

		f.mu.Lock()
		f.robots[u.Host] = data
		f.mu.Unlock()
	}

	return data.TestAgent(u.Path, f.userAgent), nil
}

// ExtractPageText returns the page title and the visible body text,
// skipping script/style/nav content.
func ExtractPageText(htmlContent string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", ""
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer":
				return
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				buf.WriteString(t)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text = strings.TrimSpace(buf.String())
	if title != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, title))
	}
	return title, text
}

// truncateBytes caps s at max bytes without splitting a UTF-8 rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
