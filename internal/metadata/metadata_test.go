package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clayton/appintel/internal/config"
)

const pageWithSelectors = `<!DOCTYPE html>
<html><body>
  <h2 class="subtitle">Track habits that stick</h2>
  <p class="attributes">New: widgets and streak freezes.</p>
</body></html>`

const pageWithLegacySelectors = `<!DOCTYPE html>
<html><body>
  <h2 class="product-header__subtitle">Your daily habit coach</h2>
  <div class="section--hero"><p>Limited-time premium trial.</p></div>
</body></html>`

const pageWithJSONLD = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{"@type": "SoftwareApplication", "alternativeHeadline": "Habits made simple",
 "description": "The easiest way to build better routines, one day at a time."}
</script>
</head><body><h1>Habit Hero</h1></body></html>`

func testScraper(t *testing.T, serverURL string) *Scraper {
	t.Helper()
	s := New(config.AppStore{
		Country:         "us",
		ScrapeDelayMS:   0,
		ScrapeRetries:   2,
		RequestTimeoutS: 5,
	})
	s.BaseURL = serverURL
	return s
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestFetchCurrentMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/us/app/id111" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, pageWithSelectors)
	}))
	defer server.Close()

	result, err := testScraper(t, server.URL).Fetch(context.Background(), "111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Found() {
		t.Fatal("expected fields to be found")
	}
	if got := strOrEmpty(result.Subtitle); got != "Track habits that stick" {
		t.Errorf("subtitle = %q", got)
	}
	if got := strOrEmpty(result.PromotionalText); got != "New: widgets and streak freezes." {
		t.Errorf("promo = %q", got)
	}
}

func TestFetchLegacyMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageWithLegacySelectors)
	}))
	defer server.Close()

	result, err := testScraper(t, server.URL).Fetch(context.Background(), "111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := strOrEmpty(result.Subtitle); got != "Your daily habit coach" {
		t.Errorf("subtitle = %q", got)
	}
	if got := strOrEmpty(result.PromotionalText); got != "Limited-time premium trial." {
		t.Errorf("promo = %q", got)
	}
}

func TestFetchJSONLDFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageWithJSONLD)
	}))
	defer server.Close()

	result, err := testScraper(t, server.URL).Fetch(context.Background(), "111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := strOrEmpty(result.Subtitle); got != "Habits made simple" {
		t.Errorf("subtitle = %q", got)
	}
	if result.PromotionalText == nil {
		t.Fatal("expected promo from JSON-LD description")
	}
}

func TestFetchNoFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Nothing useful</h1></body></html>`)
	}))
	defer server.Close()

	result, err := testScraper(t, server.URL).Fetch(context.Background(), "111")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Found() {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestFetchRetriesOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, pageWithSelectors)
	}))
	defer server.Close()

	result, err := testScraper(t, server.URL).Fetch(context.Background(), "111")
	if err != nil {
		t.Fatalf("Fetch after retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if !result.Found() {
		t.Error("expected fields after retry")
	}
}

func TestFetchDoesNotRetry404(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := testScraper(t, server.URL).Fetch(context.Background(), "111"); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 170); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'a'
	}
	if got := truncate(string(long), 170); len([]rune(got)) != 170 {
		t.Errorf("truncated length = %d", len([]rune(got)))
	}
}
