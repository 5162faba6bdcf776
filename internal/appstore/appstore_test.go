package appstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clayton/appintel/internal/config"
)

const searchFixture = `{
  "resultCount": 2,
  "results": [
    {
      "trackId": 111, "trackName": "Habit Hero", "artistName": "Hero Labs",
      "bundleId": "com.hero.habits", "price": 0, "currency": "USD",
      "averageUserRating": 4.5, "userRatingCount": 1200, "version": "2.1.0",
      "description": "Build habits.", "artworkUrl512": "https://img/512.png",
      "artworkUrl100": "https://img/100.png",
      "screenshotUrls": ["https://img/s1.png"], "primaryGenreName": "Productivity"
    },
    {
      "trackId": 222, "trackName": "Streaks", "artistName": "Streak Co",
      "artworkUrl100": "https://img/streaks100.png",
      "averageUserRating": 3.9, "userRatingCount": 80
    }
  ]
}`

const reviewsFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns:im="http://itunes.apple.com/rss" xmlns="http://www.w3.org/2005/Atom">
  <id>https://itunes.apple.com/us/rss/customerreviews/id=111/xml</id>
  <title>iTunes Store: Customer Reviews</title>
  <updated>2026-08-01T12:00:00-07:00</updated>
  <entry>
    <id>https://apps.apple.com/us/app/habit-hero/id111</id>
    <title>Habit Hero</title>
    <im:name>Habit Hero</im:name>
  </entry>
  <entry>
    <id>9001</id>
    <title>Love it</title>
    <content type="text">Best habit tracker I have used.</content>
    <im:rating>5</im:rating>
    <im:version>2.1.0</im:version>
    <author><name>happyuser</name></author>
    <updated>2026-07-30T08:00:00-07:00</updated>
  </entry>
  <entry>
    <id>9002</id>
    <title>Crashes constantly</title>
    <content type="text">App crashes on launch after the update.</content>
    <im:rating>1</im:rating>
    <im:version>2.1.0</im:version>
    <author><name>sadusr</name></author>
    <updated>2026-07-29T08:00:00-07:00</updated>
  </entry>
  <entry>
    <id>9003</id>
    <title>Fine I guess</title>
    <content type="text">It works.</content>
    <im:rating>3</im:rating>
    <author><name>meh</name></author>
  </entry>
</feed>`

func testClient(t *testing.T) *Client {
	t.Helper()
	return New(config.AppStore{
		Country:         "us",
		MaxReviewPages:  3,
		PageDelayMS:     0,
		RequestTimeoutS: 5,
	})
}

func TestSearchParsesListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("term"); got != "habit tracker" {
			t.Errorf("term = %q", got)
		}
		if got := r.URL.Query().Get("entity"); got != "software" {
			t.Errorf("entity = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchFixture)
	}))
	defer server.Close()

	client := testClient(t)
	client.SearchURL = server.URL

	listings, err := client.Search(context.Background(), "habit tracker", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}

	first := listings[0]
	if first.AppID != "111" || first.Name != "Habit Hero" {
		t.Errorf("first listing = %s %q", first.AppID, first.Name)
	}
	if first.SearchRank != 1 || listings[1].SearchRank != 2 {
		t.Errorf("ranks = %d, %d", first.SearchRank, listings[1].SearchRank)
	}
	if first.IconURL == nil || *first.IconURL != "https://img/512.png" {
		t.Errorf("icon = %v, want 512 variant", first.IconURL)
	}
	if listings[1].IconURL == nil || *listings[1].IconURL != "https://img/streaks100.png" {
		t.Errorf("second icon should fall back to the 100px artwork")
	}
	if listings[1].BundleID != nil {
		t.Errorf("missing bundle id should stay nil")
	}
	if first.RatingCount == nil || *first.RatingCount != 1200 {
		t.Errorf("rating count = %v", first.RatingCount)
	}
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(t)
	client.SearchURL = server.URL

	if _, err := client.Search(context.Background(), "habit tracker", 10); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestLookupReturnsDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "111" {
			t.Errorf("id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchFixture)
	}))
	defer server.Close()

	client := testClient(t)
	client.LookupURL = server.URL

	details, err := client.Lookup(context.Background(), "111")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if details == nil {
		t.Fatal("expected details")
	}
	if details.Name != "Habit Hero" || len(details.ScreenshotURLs) != 1 {
		t.Errorf("details = %+v", details)
	}
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"resultCount": 0, "results": []}`)
	}))
	defer server.Close()

	client := testClient(t)
	client.LookupURL = server.URL

	details, err := client.Lookup(context.Background(), "999")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if details != nil {
		t.Fatalf("expected nil for unknown app, got %+v", details)
	}
}

func TestFetchReviewsFiltersBands(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/atom+xml")
		if pages == 1 {
			fmt.Fprint(w, reviewsFixture)
			return
		}
		// Empty second page ends the pager.
		fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title></feed>`)
	}))
	defer server.Close()

	client := testClient(t)
	client.FeedBase = server.URL

	low, err := client.FetchLowRatingReviews(context.Background(), "111")
	if err != nil {
		t.Fatalf("FetchLowRatingReviews: %v", err)
	}
	if len(low) != 1 {
		t.Fatalf("got %d low reviews, want 1", len(low))
	}
	r := low[0]
	if r.ReviewID != "9002" || r.Rating != 1 {
		t.Errorf("review = %s rating %d", r.ReviewID, r.Rating)
	}
	if r.Author == nil || *r.Author != "sadusr" {
		t.Errorf("author = %v", r.Author)
	}
	if r.Content == nil || *r.Content != "App crashes on launch after the update." {
		t.Errorf("content = %v", r.Content)
	}
	if r.Version == nil || *r.Version != "2.1.0" {
		t.Errorf("version = %v", r.Version)
	}

	pages = 0
	high, err := client.FetchHighRatingReviews(context.Background(), "111")
	if err != nil {
		t.Fatalf("FetchHighRatingReviews: %v", err)
	}
	if len(high) != 1 || high[0].ReviewID != "9001" || high[0].Rating != 5 {
		t.Fatalf("high reviews = %+v", high)
	}
}

func TestFetchReviewsFirstPageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(t)
	client.FeedBase = server.URL

	if _, err := client.FetchLowRatingReviews(context.Background(), "111"); err == nil {
		t.Fatal("expected error when the first page fails")
	}
}

func TestFetchReviewsStopsOnLaterPageFailure(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		if pages > 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, reviewsFixture)
	}))
	defer server.Close()

	client := testClient(t)
	client.FeedBase = server.URL

	low, err := client.FetchLowRatingReviews(context.Background(), "111")
	if err != nil {
		t.Fatalf("later-page failure should not surface: %v", err)
	}
	if len(low) != 1 {
		t.Fatalf("got %d low reviews, want 1", len(low))
	}
}
