// Package screenshots runs multimodal LLM critiques of App Store
// screenshots for the cached apps of a keyword.
package screenshots

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/clayton/appintel/internal/appstore"
	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/freshness"
	"github.com/clayton/appintel/internal/llm"
)

// Catalog is the slice of the store client the analyzer needs: screenshot
// URL discovery and image download.
type Catalog interface {
	Lookup(ctx context.Context, appID string) (*appstore.AppDetails, error)
	DownloadScreenshot(ctx context.Context, url string) ([]byte, string, error)
}

// AppOutcome is the per-app result of a screenshot run.
type AppOutcome struct {
	App      database.App
	Analysis *database.ScreenshotAnalysis
	Cached   bool
	Skipped  string // non-empty reason when the app was skipped
}

// Analyzer fetches, encodes and critiques screenshots per app.
type Analyzer struct {
	db       *database.DB
	catalog  Catalog
	provider llm.Provider
	cfg      config.LLM
	policy   freshness.Policy
	appDelay time.Duration

	now func() time.Time
}

// New creates a screenshot analyzer.
func New(db *database.DB, catalog Catalog, provider llm.Provider, cfg *config.Config) *Analyzer {
	return &Analyzer{
		db:       db,
		catalog:  catalog,
		provider: provider,
		cfg:      cfg.LLM,
		policy:   freshness.FromConfig(cfg.Freshness),
		appDelay: time.Duration(cfg.AppStore.ScrapeDelayMS) * time.Millisecond,
		now:      time.Now,
	}
}

func (a *Analyzer) resolveModel(model string) string {
	if model != "" {
		return model
	}
	if a.cfg.ScreenshotModel != "" {
		return a.cfg.ScreenshotModel
	}
	return a.cfg.Model
}

// RunKeyword analyzes screenshots for every cached app of a keyword.
// Per-app failures are recorded as skips; the run itself fails only when no
// apps are cached.
func (a *Analyzer) RunKeyword(ctx context.Context, keyword, model string, force bool) ([]AppOutcome, error) {
	apps, err := a.db.GetAppsForKeyword(keyword)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("no cached apps for %q, run analyze first", keyword)
	}

	var outcomes []AppOutcome
	for i, app := range apps {
		if i > 0 && a.appDelay > 0 {
			select {
			case <-ctx.Done():
				return outcomes, ctx.Err()
			case <-time.After(a.appDelay):
			}
		}
		outcomes = append(outcomes, a.runApp(ctx, app, model, force))
	}
	return outcomes, nil
}

func (a *Analyzer) runApp(ctx context.Context, app database.App, model string, force bool) AppOutcome {
	outcome := AppOutcome{App: app}

	if !force {
		cutoff := a.now().Add(-a.policy.ScreenshotTTL)
		if rec, err := a.db.LatestScreenshotAnalysis(app.ID, cutoff); err == nil && rec != nil {
			log.Printf("using cached screenshot analysis for %s from %s",
				app.Name, rec.CreatedAt.Format("2006-01-02 15:04"))
			outcome.Analysis = rec
			outcome.Cached = true
			return outcome
		}
	}

	details, err := a.catalog.Lookup(ctx, app.AppID)
	if err != nil {
		log.Printf("looking up %s: %v", app.Name, err)
		outcome.Skipped = "lookup failed"
		return outcome
	}
	if details == nil {
		outcome.Skipped = "app not found in catalog"
		return outcome
	}
	if len(details.ScreenshotURLs) == 0 {
		outcome.Skipped = "no screenshots"
		return outcome
	}

	parts, downloaded := a.buildParts(ctx, app.Name, details.ScreenshotURLs)
	if downloaded == 0 {
		outcome.Skipped = "screenshot downloads failed"
		return outcome
	}

	model = a.resolveModel(model)
	log.Printf("analyzing %d screenshots for %s with %s", downloaded, app.Name, model)
	analysis, err := a.provider.Complete(ctx, llm.Request{
		System:      "You are an expert UI/UX analyst specializing in mobile app design and App Store optimization.",
		Parts:       parts,
		Model:       model,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		log.Printf("screenshot analysis for %s: %v", app.Name, err)
		outcome.Skipped = "analysis failed"
		return outcome
	}

	rec := database.ScreenshotAnalysis{
		AppRowID:        app.ID,
		ScreenshotCount: downloaded,
		Analysis:        analysis,
		ScreenshotURLs:  details.ScreenshotURLs,
		LLMModel:        &model,
	}
	id, err := a.db.InsertScreenshotAnalysis(rec)
	if err != nil {
		log.Printf("saving screenshot analysis for %s: %v", app.Name, err)
		outcome.Skipped = "save failed"
		return outcome
	}
	rec.ID = id
	rec.CreatedAt = a.now()
	outcome.Analysis = &rec
	return outcome
}

// buildParts downloads each screenshot and assembles the multimodal message.
// Failed downloads are dropped; the prompt numbers only what survived.
func (a *Analyzer) buildParts(ctx context.Context, appName string, urls []string) ([]llm.ContentPart, int) {
	parts := []llm.ContentPart{{
		Text: fmt.Sprintf("You are analyzing App Store screenshots for the app '%s'. Please provide:\n\n"+
			"1. A description of each screenshot in order (what is shown, key features highlighted)\n"+
			"2. An overall analysis of:\n"+
			"   - Keywords and text used across screenshots\n"+
			"   - Visual style and design patterns\n"+
			"   - Content themes and messaging\n"+
			"   - Target audience insights based on the screenshots\n\n"+
			"Be specific and detailed in your analysis.", appName),
	}}

	downloaded := 0
	for i, url := range urls {
		data, contentType, err := a.catalog.DownloadScreenshot(ctx, url)
		if err != nil {
			log.Printf("downloading screenshot %d for %s: %v", i+1, appName, err)
			continue
		}
		if contentType == "" {
			contentType = "image/png"
		}
		downloaded++
		parts = append(parts,
			llm.ContentPart{Text: fmt.Sprintf("\nScreenshot %d:", downloaded)},
			llm.ContentPart{ImageURL: fmt.Sprintf("data:%s;base64,%s",
				contentType, base64.StdEncoding.EncodeToString(data))},
		)
	}
	return parts, downloaded
}
