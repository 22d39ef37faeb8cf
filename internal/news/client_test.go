package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cruxlabs/crux/internal/model"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &slept
}

func testClientConfig(baseURL string) model.NewsConfig {
	return model.NewsConfig{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		MaxAttempts:       3,
		BackoffBase:       100 * time.Millisecond,
		MaxQueryLen:       512,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}
}

const resultsBody = `{
	"status": "success",
	"results": [
		{"title": "Flood waters recede in coastal towns", "link": "https://reuters.com/flood", "description": "Officials confirm the flooding has stopped.", "pubDate": "2026-08-20 10:30:00", "source_id": "reuters"},
		{"title": "Flood waters recede in coastal towns", "link": "https://mirror.example/flood", "description": "dup", "pubDate": "bad date", "source_id": "mirror"},
		{"title": "Local bakery wins award", "link": "https://blog.example/bakery", "description": "Unrelated news.", "pubDate": "", "source_id": "blog"}
	]
}`

func TestSearch_ParsesAndScores(t *testing.T) {
	noSleep(t)
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.Header.Get("X-ACCESS-KEY")
		fmt.Fprint(w, resultsBody)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL))
	items, err := c.Search(context.Background(), "flood waters coastal towns", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotQuery != "flood waters coastal towns" {
		t.Errorf("query = %q", gotQuery)
	}

	// Duplicate title dropped.
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Publisher != "reuters" || items[0].PublishedAt.IsZero() {
		t.Errorf("first item = %+v", items[0])
	}
	if items[0].Relevance <= items[1].Relevance {
		t.Errorf("on-topic item scored %.2f, off-topic %.2f", items[0].Relevance, items[1].Relevance)
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	c := NewClient(testClientConfig("http://unused"))

	if _, err := c.Search(context.Background(), "   ", 5, 0); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("empty query: err = %v, want ErrInvalidQuery", err)
	}
	if _, err := c.Search(context.Background(), "some claim", 0, 0); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("zero limit: err = %v, want ErrInvalidQuery", err)
	}
}

func TestSearch_RetriesTransientThenSucceeds(t *testing.T) {
	slept := noSleep(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, resultsBody)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL))
	items, err := c.Search(context.Background(), "flood waters", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) == 0 {
		t.Error("no items after recovery")
	}
	if calls != 3 {
		t.Errorf("provider called %d times, want 3", calls)
	}

	// Backoff doubles between attempts.
	if len(*slept) != 2 || (*slept)[0] != 100*time.Millisecond || (*slept)[1] != 200*time.Millisecond {
		t.Errorf("backoff sleeps = %v, want [100ms 200ms]", *slept)
	}
}

func TestSearch_ExhaustedRetries(t *testing.T) {
	noSleep(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL))
	_, err := c.Search(context.Background(), "flood waters", 10, 0)
	if !errors.Is(err, ErrEvidenceUnavailable) {
		t.Fatalf("err = %v, want ErrEvidenceUnavailable", err)
	}
	if calls != 3 {
		t.Errorf("provider called %d times, want 3", calls)
	}
}

func TestSearch_RateLimitHonorsRetryAfter(t *testing.T) {
	slept := noSleep(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, resultsBody)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL))
	if _, err := c.Search(context.Background(), "flood waters", 10, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
	if len(*slept) != 1 || (*slept)[0] != 7*time.Second {
		t.Errorf("sleeps = %v, want the Retry-After hint", *slept)
	}
}

func TestSearch_RateLimitRetriesOnlyOnce(t *testing.T) {
	noSleep(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL))
	_, err := c.Search(context.Background(), "flood waters", 10, 0)
	if !errors.Is(err, ErrEvidenceUnavailable) {
		t.Fatalf("err = %v, want ErrEvidenceUnavailable", err)
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2 (no endless rate-limit loop)", calls)
	}
}

func TestLatest_JoinsTopics(t *testing.T) {
	noSleep(t)
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"status":"success","results":[]}`)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL))
	if _, err := c.Latest(context.Background(), []string{"crisis", "war", "disaster"}, 6*time.Hour, 10); err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if gotQuery != "crisis OR war OR disaster" {
		t.Errorf("query = %q", gotQuery)
	}

	if _, err := c.Latest(context.Background(), nil, time.Hour, 10); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("no topics: err = %v, want ErrInvalidQuery", err)
	}
}

func TestTruncateQuery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		maxLen int
		want   string
	}{
		{"short passes through", "a short claim", 512, "a short claim"},
		{"cuts at word boundary", "one two three four", 12, "one two"},
		{"exact length untouched", "abcde", 5, "abcde"},
		{"no space falls back to hard cut", "abcdefghij", 5, "abcde"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateQuery(tt.query, tt.maxLen); got != tt.want {
				t.Errorf("TruncateQuery(%q, %d) = %q, want %q", tt.query, tt.maxLen, got, tt.want)
			}
		})
	}
}
