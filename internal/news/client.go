package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cruxlabs/crux/internal/model"
)

// sleepFunc is the sleep used between retry attempts (injectable for tests).
var sleepFunc = sleepCtx

// Client fetches candidate evidence from a NewsData-compatible provider.
// It does not cache results; caching, if any, lives in the orchestrator.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	authority   *AuthorityClassifier
	apiKey      string
	baseURL     string
	maxQueryLen int
	maxAttempts int
	backoffBase time.Duration
}

// NewClient creates a provider client from configuration.
func NewClient(cfg model.NewsConfig) *Client {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.BackoffBase
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxQueryLen := cfg.MaxQueryLen
	if maxQueryLen <= 0 {
		maxQueryLen = 512
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		authority:   NewAuthorityClassifier(),
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		maxQueryLen: maxQueryLen,
		maxAttempts: maxAttempts,
		backoffBase: backoff,
	}
}

// Search fetches evidence for a claim query, most relevant first. A
// freshness window of zero means no recency restriction.
func (c *Client) Search(ctx context.Context, query string, limit int, freshness time.Duration) ([]model.EvidenceItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: non-positive limit %d", ErrInvalidQuery, limit)
	}

	query = TruncateQuery(query, c.maxQueryLen)

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	if freshness > 0 {
		params.Set("timeframe", timeframe(freshness))
	}

	items, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	scoreRelevance(items, query)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Latest fetches recent articles matching the topic seed list, for the
// scan pipeline.
func (c *Client) Latest(ctx context.Context, topics []string, window time.Duration, limit int) ([]model.EvidenceItem, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrInvalidQuery)
	}
	query := strings.Join(topics, " OR ")
	return c.Search(ctx, query, limit, window)
}

// TruncateQuery deterministically trims an over-long query from the end,
// preserving the claim's lead and avoiding a mid-word cut.
func TruncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	cut := query[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// fetch performs the provider request with exponential backoff on
// transient failures and a single delayed retry on rate limiting.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]model.EvidenceItem, error) {
	var lastErr error
	rateLimitRetried := false

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepFunc(ctx, c.backoffBase*(1<<(attempt-1))); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		items, retryAfter, err := c.fetchOnce(ctx, params)
		if err == nil {
			return items, nil
		}
		lastErr = err

		if retryAfter >= 0 {
			// Provider rate limit: one delayed retry honoring the hint,
			// then give up.
			if rateLimitRetried {
				break
			}
			rateLimitRetried = true
			delay := retryAfter
			if delay == 0 {
				delay = c.backoffBase * 2
			}
			if err := sleepFunc(ctx, delay); err != nil {
				return nil, err
			}
			// The delay replaces this attempt's backoff.
			attempt--
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrEvidenceUnavailable, lastErr)
}

// fetchOnce issues one provider request. A non-negative retryAfter marks
// a rate-limit response (0 when the provider gave no hint).
func (c *Client) fetchOnce(ctx context.Context, params url.Values) (items []model.EvidenceItem, retryAfter time.Duration, err error) {
	endpoint := c.baseURL + "/news?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-ACCESS-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("provider unavailable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("provider rate limited")
	case resp.StatusCode >= 500:
		return nil, -1, fmt.Errorf("provider unavailable: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, -1, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4_000_000))
	if err != nil {
		return nil, -1, fmt.Errorf("read body: %w", err)
	}

	var payload struct {
		Status  string `json:"status"`
		Results []struct {
			Title       string `json:"title"`
			Link        string `json:"link"`
			Description string `json:"description"`
			PubDate     string `json:"pubDate"`
			SourceID    string `json:"source_id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, -1, fmt.Errorf("decode response: %w", err)
	}

	seen := make(map[string]bool, len(payload.Results))
	for _, r := range payload.Results {
		if r.Title == "" || seen[r.Title] {
			continue
		}
		seen[r.Title] = true

		item := model.EvidenceItem{
			Title:     r.Title,
			Excerpt:   r.Description,
			URL:       r.Link,
			Publisher: r.SourceID,
			Authority: c.authority.Classify(r.Link),
		}
		if t, err := time.Parse("2006-01-02 15:04:05", r.PubDate); err == nil {
			item.PublishedAt = t.UTC()
		}
		items = append(items, item)
	}

	return items, -1, nil
}

// scoreRelevance assigns a token-overlap relevance score in [0,1] to
// each item. The provider does not expose its own ranking signal.
func scoreRelevance(items []model.EvidenceItem, query string) {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return
	}
	for i := range items {
		itemTokens := tokenSet(items[i].Title + " " + items[i].Excerpt)
		overlap := 0
		for tok := range queryTokens {
			if itemTokens[tok] {
				overlap++
			}
		}
		items[i].Relevance = float64(overlap) / float64(len(queryTokens))
	}
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(model.NormalizeClaim(text)) {
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func timeframe(window time.Duration) string {
	hours := int(window.Hours())
	if hours < 1 {
		hours = 1
	}
	if hours > 48 {
		hours = 48
	}
	return strconv.Itoa(hours)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
