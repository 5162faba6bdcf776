// Package aggregate orchestrates a keyword run's data collection: catalog
// search, app upserts and banded review fetching, reusing cached rows
// whenever the freshness policy allows.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/freshness"
)

// Catalog is the slice of the store client the orchestrator needs.
type Catalog interface {
	Search(ctx context.Context, keyword string, limit int) ([]database.AppListing, error)
	FetchLowRatingReviews(ctx context.Context, appID string) ([]database.ReviewRecord, error)
	FetchHighRatingReviews(ctx context.Context, appID string) ([]database.ReviewRecord, error)
}

// Result is the collected corpus for one keyword.
type Result struct {
	Keyword     string
	Apps        []database.App
	LowReviews  []database.Review
	HighReviews []database.Review
}

// Orchestrator wires the catalog client, the database and the freshness
// policy into a single aggregation entry point.
type Orchestrator struct {
	db       *database.DB
	catalog  Catalog
	policy   freshness.Policy
	appDelay time.Duration

	now func() time.Time
}

// New creates an orchestrator. The app delay throttles consecutive per-app
// review fetches.
func New(db *database.DB, catalog Catalog, policy freshness.Policy, cfg config.AppStore) *Orchestrator {
	return &Orchestrator{
		db:       db,
		catalog:  catalog,
		policy:   policy,
		appDelay: time.Duration(cfg.AppDelayMS) * time.Millisecond,
		now:      time.Now,
	}
}

// Aggregate collects apps and banded reviews for a keyword. A keyword with
// no matching apps yields an empty Result, not an error. Per-app review
// failures are logged and skipped so one flaky feed cannot sink the run.
func (o *Orchestrator) Aggregate(ctx context.Context, keyword string, limit int, force bool) (*Result, error) {
	if force {
		log.Printf("forcing fresh data for %q, purging cached apps", keyword)
		if err := o.db.DeleteAppsForKeyword(keyword); err != nil {
			return nil, fmt.Errorf("purging apps for %q: %w", keyword, err)
		}
	}

	apps, err := o.resolveApps(ctx, keyword, limit)
	if err != nil {
		return nil, err
	}

	result := &Result{Keyword: keyword, Apps: apps}
	if len(apps) == 0 {
		log.Printf("no apps found for %q", keyword)
		return result, nil
	}

	for i, app := range apps {
		if i > 0 && o.appDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.appDelay):
			}
		}

		low, high, err := o.reviewsForApp(ctx, app)
		if err != nil {
			log.Printf("skipping reviews for %s (%s): %v", app.Name, app.AppID, err)
			continue
		}
		result.LowReviews = append(result.LowReviews, low...)
		result.HighReviews = append(result.HighReviews, high...)
	}

	log.Printf("aggregated %d apps, %d low and %d high reviews for %q",
		len(result.Apps), len(result.LowReviews), len(result.HighReviews), keyword)
	return result, nil
}

// resolveApps returns the top apps for a keyword, searching the catalog
// only when the cached list is too old or too small.
func (o *Orchestrator) resolveApps(ctx context.Context, keyword string, limit int) ([]database.App, error) {
	now := o.now()
	recent, err := o.db.CountAppsNewerThan(keyword, o.policy.AppListCutoff(now))
	if err != nil {
		return nil, fmt.Errorf("checking cached app list for %q: %w", keyword, err)
	}
	if o.policy.AppListFresh(recent, limit) {
		log.Printf("reusing cached app list for %q (%d recent apps)", keyword, recent)
		apps, err := o.db.GetAppsForKeyword(keyword)
		if err != nil {
			return nil, err
		}
		if len(apps) > limit {
			apps = apps[:limit]
		}
		return apps, nil
	}

	log.Printf("searching catalog for top %d apps matching %q", limit, keyword)
	listings, err := o.catalog.Search(ctx, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog search for %q: %w", keyword, err)
	}

	apps := make([]database.App, 0, len(listings))
	for _, listing := range listings {
		app, err := o.upsertApp(keyword, listing)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

func (o *Orchestrator) upsertApp(keyword string, listing database.AppListing) (*database.App, error) {
	existing, err := o.db.GetApp(listing.AppID, keyword)
	if err != nil {
		return nil, fmt.Errorf("loading app %s: %w", listing.AppID, err)
	}
	if existing == nil {
		id, err := o.db.InsertApp(keyword, listing)
		if err != nil {
			return nil, err
		}
		return o.db.GetAppByRowID(id)
	}

	// A record still inside the app-list TTL keeps its cached fields even
	// when a re-search sweeps it up again.
	if existing.CreatedAt.After(o.policy.AppListCutoff(o.now())) {
		return existing, nil
	}
	if err := o.db.UpdateAppListing(existing.ID, listing); err != nil {
		return nil, err
	}
	return o.db.GetAppByRowID(existing.ID)
}

// reviewsForApp returns both rating bands for one app, fetching from the
// feed only when the cached reviews have aged out.
func (o *Orchestrator) reviewsForApp(ctx context.Context, app database.App) ([]database.Review, []database.Review, error) {
	latest, err := o.db.LatestReviewTime(app.ID)
	if err != nil {
		return nil, nil, err
	}

	if o.policy.ReviewsStale(latest, o.now()) {
		if err := o.fetchAndStore(ctx, app); err != nil {
			return nil, nil, err
		}
	} else {
		log.Printf("using cached reviews for %s", app.Name)
	}

	low, err := o.db.GetLowReviewsForApp(app.ID)
	if err != nil {
		return nil, nil, err
	}
	high, err := o.db.GetHighReviewsForApp(app.ID)
	if err != nil {
		return nil, nil, err
	}
	return low, high, nil
}

func (o *Orchestrator) fetchAndStore(ctx context.Context, app database.App) error {
	log.Printf("fetching reviews for %s (%s)", app.Name, app.AppID)

	low, err := o.catalog.FetchLowRatingReviews(ctx, app.AppID)
	if err != nil {
		return fmt.Errorf("fetching low reviews: %w", err)
	}
	high, err := o.catalog.FetchHighRatingReviews(ctx, app.AppID)
	if err != nil {
		return fmt.Errorf("fetching high reviews: %w", err)
	}

	created := 0
	for _, r := range append(low, high...) {
		isNew, err := o.db.UpsertReview(app.ID, r)
		if err != nil {
			return fmt.Errorf("storing review: %w", err)
		}
		if isNew {
			created++
		}
	}
	log.Printf("stored %d low and %d high reviews for %s (%d new)",
		len(low), len(high), app.Name, created)
	return nil
}
