package appstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/clayton/appintel/internal/database"
)

// FetchLowRatingReviews pages through the customer-review feed and returns
// the 1-2 star reviews.
func (c *Client) FetchLowRatingReviews(ctx context.Context, appID string) ([]database.ReviewRecord, error) {
	return c.fetchReviews(ctx, appID, 1, 2)
}

// FetchHighRatingReviews pages through the customer-review feed and returns
// the 4-5 star reviews.
func (c *Client) FetchHighRatingReviews(ctx context.Context, appID string) ([]database.ReviewRecord, error) {
	return c.fetchReviews(ctx, appID, 4, 5)
}

func (c *Client) fetchReviews(ctx context.Context, appID string, minRating, maxRating int) ([]database.ReviewRecord, error) {
	maxPages := c.maxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var records []database.ReviewRecord
	for page := 1; page <= maxPages; page++ {
		feed, err := c.fetchReviewPage(ctx, appID, page)
		if err != nil {
			// Later pages routinely 404 once the feed runs out. Keep what
			// we already have unless the very first page failed.
			if page == 1 {
				return nil, err
			}
			break
		}

		pageRecords := reviewsFromFeed(feed)
		if len(pageRecords) == 0 {
			break
		}
		for _, r := range pageRecords {
			if r.Rating >= minRating && r.Rating <= maxRating {
				records = append(records, r)
			}
		}

		if page < maxPages && c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return records, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}
	}
	return records, nil
}

func (c *Client) fetchReviewPage(ctx context.Context, appID string, page int) (*gofeed.Feed, error) {
	url := fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%s/sortBy=mostRecent/xml",
		c.FeedBase, c.country, page, appID)
	feed, err := c.feeds.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching review page %d for app %s: %w", page, appID, err)
	}
	return feed, nil
}

// reviewsFromFeed converts feed entries to review records. The feed's first
// entry describes the app itself and carries no rating, so entries without
// an im:rating extension are skipped.
func reviewsFromFeed(feed *gofeed.Feed) []database.ReviewRecord {
	var records []database.ReviewRecord
	for _, item := range feed.Items {
		rating, ok := itemRating(item)
		if !ok {
			continue
		}
		records = append(records, database.ReviewRecord{
			ReviewID:    item.GUID,
			Author:      itemAuthor(item),
			Title:       optional(item.Title),
			Content:     itemBody(item),
			Rating:      rating,
			Version:     itemExtension(item, "version"),
			PublishedAt: itemUpdated(item),
		})
	}
	return records
}

func itemRating(item *gofeed.Item) (int, bool) {
	raw := itemExtension(item, "rating")
	if raw == nil {
		return 0, false
	}
	rating, err := strconv.Atoi(*raw)
	if err != nil || rating < 1 || rating > 5 {
		return 0, false
	}
	return rating, true
}

func itemExtension(item *gofeed.Item, name string) *string {
	exts, ok := item.Extensions["im"][name]
	if !ok || len(exts) == 0 {
		return nil
	}
	return optional(exts[0].Value)
}

// itemBody prefers the entry's content element; older feed variants only
// populate the summary.
func itemBody(item *gofeed.Item) *string {
	if item.Content != "" {
		return optional(item.Content)
	}
	return optional(item.Description)
}

func itemAuthor(item *gofeed.Item) *string {
	if item.Author == nil {
		return nil
	}
	return optional(item.Author.Name)
}

func itemUpdated(item *gofeed.Item) *string {
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC().Format(time.RFC3339)
		return &t
	}
	return optional(item.Updated)
}
