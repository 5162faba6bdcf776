package appstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/clayton/appintel/internal/database"
)

// searchResponse mirrors the iTunes search/lookup payload.
type searchResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []searchResult `json:"results"`
}

type searchResult struct {
	TrackID            int64    `json:"trackId"`
	TrackName          string   `json:"trackName"`
	ArtistName         string   `json:"artistName"`
	BundleID           string   `json:"bundleId"`
	Price              float64  `json:"price"`
	Currency           string   `json:"currency"`
	AverageUserRating  float64  `json:"averageUserRating"`
	UserRatingCount    int      `json:"userRatingCount"`
	Version            string   `json:"version"`
	Description        string   `json:"description"`
	ArtworkURL512      string   `json:"artworkUrl512"`
	ArtworkURL100      string   `json:"artworkUrl100"`
	ScreenshotURLs     []string `json:"screenshotUrls"`
	IpadScreenshotURLs []string `json:"ipadScreenshotUrls"`
	ReleaseNotes       string   `json:"releaseNotes"`
	PrimaryGenreName   string   `json:"primaryGenreName"`
}

// Search queries the iTunes software catalog for a keyword and returns
// listings in search-rank order.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]database.AppListing, error) {
	var payload searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"term":    keyword,
			"country": c.country,
			"entity":  "software",
			"limit":   strconv.Itoa(limit),
		}).
		SetResult(&payload).
		Get(c.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("searching catalog for %q: %w", keyword, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog search for %q returned %d", keyword, resp.StatusCode())
	}

	return listingsFromResults(payload.Results), nil
}

func listingsFromResults(results []searchResult) []database.AppListing {
	listings := make([]database.AppListing, 0, len(results))
	for i, r := range results {
		listings = append(listings, listingFromResult(r, i+1))
	}
	return listings
}

func listingFromResult(r searchResult, rank int) database.AppListing {
	icon := r.ArtworkURL512
	if icon == "" {
		icon = r.ArtworkURL100
	}
	return database.AppListing{
		AppID:         strconv.FormatInt(r.TrackID, 10),
		Name:          r.TrackName,
		Developer:     optional(r.ArtistName),
		BundleID:      optional(r.BundleID),
		Price:         &r.Price,
		Currency:      optional(r.Currency),
		AverageRating: &r.AverageUserRating,
		RatingCount:   &r.UserRatingCount,
		Version:       optional(r.Version),
		Description:   optional(r.Description),
		IconURL:       optional(icon),
		SearchRank:    rank,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
