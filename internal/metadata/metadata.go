// Package metadata scrapes app-page fields the catalog APIs do not expose,
// currently the subtitle and promotional text shown on apps.apple.com.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/clayton/appintel/internal/config"
)

const defaultBaseURL = "https://apps.apple.com"

// The store renders with dynamic class suffixes, so each field carries a
// chain of selectors from newest markup to legacy.
var subtitleSelectors = []string{
	"h2.subtitle",
	`h2[class*="subtitle"]`,
	".product-header__subtitle",
	"h2.product-header__subtitle",
}

var promoSelectors = []string{
	"p.attributes",
	".section--hero .we-truncate__child",
	".product-hero__editorial-content",
	".section--hero p",
}

// Result holds the scraped fields for one app page. Both fields may be nil
// when the page layout defeats every selector.
type Result struct {
	Subtitle        *string
	PromotionalText *string
}

// Found reports whether the scrape recovered at least one field.
func (r Result) Found() bool {
	return r.Subtitle != nil || r.PromotionalText != nil
}

// Scraper fetches and parses public app pages with polite pacing.
type Scraper struct {
	BaseURL string

	http        *resty.Client
	country     string
	delay       time.Duration
	retries     int
	lastRequest time.Time
}

// New creates a scraper from the app_store config block.
func New(cfg config.AppStore) *Scraper {
	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.ScrapeRetries
	if retries <= 0 {
		retries = 3
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"User-Agent":                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Connection":                "keep-alive",
			"Upgrade-Insecure-Requests": "1",
		})

	return &Scraper{
		BaseURL: defaultBaseURL,
		http:    httpClient,
		country: cfg.Country,
		delay:   time.Duration(cfg.ScrapeDelayMS) * time.Millisecond,
		retries: retries,
	}
}

// Fetch scrapes the page for one app. Parse failures and missing fields
// come back as an empty Result rather than an error; only transport-level
// failures after all retries surface.
func (s *Scraper) Fetch(ctx context.Context, appID string) (Result, error) {
	url := fmt.Sprintf("%s/%s/app/id%s", s.BaseURL, s.country, appID)

	body, err := s.fetchWithRetry(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("fetching page for app %s: %w", appID, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Result{}, nil
	}
	return parseDocument(doc), nil
}

func (s *Scraper) fetchWithRetry(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retries+1; attempt++ {
		if err := s.pace(ctx); err != nil {
			return "", err
		}

		resp, err := s.http.R().SetContext(ctx).Get(url)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode() == 429:
			lastErr = fmt.Errorf("rate limited (429)")
		case resp.IsError():
			// Non-retryable page errors (404 and friends).
			return "", fmt.Errorf("page returned %d", resp.StatusCode())
		default:
			return resp.String(), nil
		}

		if attempt <= s.retries {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", lastErr
}

func (s *Scraper) pace(ctx context.Context) error {
	if s.delay <= 0 || s.lastRequest.IsZero() {
		s.lastRequest = time.Now()
		return nil
	}
	if wait := s.delay - time.Since(s.lastRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	s.lastRequest = time.Now()
	return nil
}

func parseDocument(doc *goquery.Document) Result {
	result := Result{
		Subtitle:        selectText(doc, subtitleSelectors),
		PromotionalText: selectText(doc, promoSelectors),
	}
	if result.Subtitle == nil || result.PromotionalText == nil {
		fillFromJSONLD(doc, &result)
	}
	return result
}

func selectText(doc *goquery.Document, selectors []string) *string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return &text
		}
	}
	return nil
}

// fillFromJSONLD backfills missing fields from the page's structured-data
// script, which survives markup changes better than the visible selectors.
func fillFromJSONLD(doc *goquery.Document, result *Result) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data struct {
			Type                string `json:"@type"`
			AlternativeHeadline string `json:"alternativeHeadline"`
			Description         string `json:"description"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return true
		}
		if data.Type != "SoftwareApplication" && data.Type != "MobileApplication" {
			return true
		}

		if result.Subtitle == nil && data.AlternativeHeadline != "" {
			headline := strings.TrimSpace(data.AlternativeHeadline)
			result.Subtitle = &headline
		}
		if result.PromotionalText == nil && data.Description != "" {
			promo := strings.TrimSpace(truncate(data.Description, 170))
			result.PromotionalText = &promo
		}
		return false
	})
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
