// Package appstore fetches listings, reviews and lookup details from the
// public iTunes endpoints.
package appstore

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"

	"github.com/clayton/appintel/internal/config"
)

const (
	defaultSearchURL = "https://itunes.apple.com/search"
	defaultLookupURL = "https://itunes.apple.com/lookup"
	defaultFeedBase  = "https://itunes.apple.com"
)

// Client talks to the iTunes search, lookup and customer-review endpoints.
// All calls are synchronous; the review pager sleeps between pages to
// respect the catalog's implicit throttling.
type Client struct {
	SearchURL string
	LookupURL string
	FeedBase  string

	http      *resty.Client
	feeds     *gofeed.Parser
	country   string
	maxPages  int
	pageDelay time.Duration
}

// New creates a catalog client from the app_store config block.
func New(cfg config.AppStore) *Client {
	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	feedParser := gofeed.NewParser()
	feedParser.Client = &http.Client{Timeout: timeout}

	return &Client{
		SearchURL: defaultSearchURL,
		LookupURL: defaultLookupURL,
		FeedBase:  defaultFeedBase,
		http:      httpClient,
		feeds:     feedParser,
		country:   cfg.Country,
		maxPages:  cfg.MaxReviewPages,
		pageDelay: time.Duration(cfg.PageDelayMS) * time.Millisecond,
	}
}
