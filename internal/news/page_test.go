package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cruxlabs/crux/internal/model"
)

const articlePage = `<html>
<head><title>Dam failure floods villages</title><style>body{}</style></head>
<body>
<nav>Home | News</nav>
<script>var tracking = true;</script>
<p>Engineers confirmed the dam failed after record rainfall.</p>
<footer>About us</footer>
</body>
</html>`

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage)
	})
	mux.HandleFunc("/private/leak", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fetchConfig() model.FetchConfig {
	return model.FetchConfig{
		Enabled:      true,
		Timeout:      2 * time.Second,
		UserAgent:    "crux-test",
		MaxBodyBytes: 1_000_000,
	}
}

func TestFetch_ExtractsEvidence(t *testing.T) {
	srv := pageServer(t)
	f := NewPageFetcher(fetchConfig())

	item, err := f.Fetch(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if item.Title != "Dam failure floods villages" {
		t.Errorf("title = %q", item.Title)
	}
	if !strings.Contains(item.Excerpt, "Engineers confirmed the dam failed") {
		t.Errorf("excerpt = %q", item.Excerpt)
	}
	for _, leaked := range []string{"tracking", "Home | News", "About us", "body{}"} {
		if strings.Contains(item.Excerpt, leaked) {
			t.Errorf("excerpt leaked non-content text %q", leaked)
		}
	}
	if item.Relevance != 1 {
		t.Errorf("relevance = %v, want 1", item.Relevance)
	}
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	srv := pageServer(t)
	f := NewPageFetcher(fetchConfig())

	if _, err := f.Fetch(context.Background(), srv.URL+"/private/leak"); err == nil {
		t.Error("disallowed path fetched without error")
	}
}

func TestFetch_BadURL(t *testing.T) {
	f := NewPageFetcher(fetchConfig())
	if _, err := f.Fetch(context.Background(), "not a url"); err == nil {
		t.Error("invalid URL fetched without error")
	}
}

func TestFetch_TruncationKeepsValidUTF8(t *testing.T) {
	// The odd-length prefix lines the 1000-byte cut up mid-rune.
	page := "<html><head><title>Bericht</title></head><body><p>x" +
		strings.Repeat("ü", 800) + "</p></body></html>"
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewPageFetcher(fetchConfig())
	item, err := f.Fetch(context.Background(), srv.URL+"/long")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(item.Excerpt) > 1000 {
		t.Errorf("excerpt = %d bytes, want at most 1000", len(item.Excerpt))
	}
	if !utf8.ValidString(item.Excerpt) {
		t.Error("excerpt truncation split a rune")
	}
}

func TestExtractPageText(t *testing.T) {
	title, text := ExtractPageText(articlePage)
	if title != "Dam failure floods villages" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "Engineers confirmed") || strings.Contains(text, "tracking") {
		t.Errorf("text = %q", text)
	}
}
