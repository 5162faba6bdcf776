package appstore

import (
	"context"
	"fmt"
	"strconv"
)

// AppDetails holds the lookup payload for a single app.
type AppDetails struct {
	AppID              string
	Name               string
	BundleID           string
	Version            string
	ArtworkURL         string
	ScreenshotURLs     []string
	IpadScreenshotURLs []string
	Description        string
	ReleaseNotes       string
	Genre              string
}

// Lookup fetches details (including screenshot URLs) for one app.
// Returns nil when the app is not found.
func (c *Client) Lookup(ctx context.Context, appID string) (*AppDetails, error) {
	var payload searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", appID).
		SetResult(&payload).
		Get(c.LookupURL)
	if err != nil {
		return nil, fmt.Errorf("looking up app %s: %w", appID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("lookup for app %s returned %d", appID, resp.StatusCode())
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}

	r := payload.Results[0]
	return &AppDetails{
		AppID:              strconv.FormatInt(r.TrackID, 10),
		Name:               r.TrackName,
		BundleID:           r.BundleID,
		Version:            r.Version,
		ArtworkURL:         r.ArtworkURL512,
		ScreenshotURLs:     r.ScreenshotURLs,
		IpadScreenshotURLs: r.IpadScreenshotURLs,
		Description:        r.Description,
		ReleaseNotes:       r.ReleaseNotes,
		Genre:              r.PrimaryGenreName,
	}, nil
}

// DownloadScreenshot fetches raw screenshot bytes and the content type.
func (c *Client) DownloadScreenshot(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("downloading screenshot %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("screenshot %s returned %d", url, resp.StatusCode())
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
