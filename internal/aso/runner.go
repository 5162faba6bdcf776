package aso

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/freshness"
	"github.com/clayton/appintel/internal/metadata"
)

// MetadataSource is the slice of the page scraper the runner needs.
type MetadataSource interface {
	Fetch(ctx context.Context, appID string) (metadata.Result, error)
}

// Outcome is one ASO run for an app within a keyword's competitor set.
type Outcome struct {
	App                  database.App
	Result               *Result
	KeywordOpportunities json.RawMessage
	Cached               bool
	CachedAt             time.Time
}

// Runner wires scraping, the ASO analysis and persistence together.
type Runner struct {
	db       *database.DB
	analyzer *Analyzer
	scraper  MetadataSource
	policy   freshness.Policy

	now func() time.Time
}

// NewRunner creates an ASO runner.
func NewRunner(db *database.DB, analyzer *Analyzer, scraper MetadataSource, policy freshness.Policy) *Runner {
	return &Runner{
		db:       db,
		analyzer: analyzer,
		scraper:  scraper,
		policy:   policy,
		now:      time.Now,
	}
}

// Run analyzes one app's store presence against the other cached apps for
// the keyword. The keyword's apps must already be cached by an analyze run.
func (r *Runner) Run(ctx context.Context, keyword, appID, model string, force bool) (*Outcome, error) {
	apps, err := r.db.GetAppsForKeyword(keyword)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("no cached apps for %q, run analyze first", keyword)
	}

	var userApp *database.App
	var competitors []database.App
	for i := range apps {
		if apps[i].AppID == appID {
			userApp = &apps[i]
		} else {
			competitors = append(competitors, apps[i])
		}
	}
	if userApp == nil {
		return nil, fmt.Errorf("app %s is not in the cached results for %q", appID, keyword)
	}
	if len(competitors) == 0 {
		return nil, fmt.Errorf("no competitors cached for %q", keyword)
	}

	outcome := &Outcome{App: *userApp}

	if !force {
		if rec := r.reusable(userApp.ID, keyword, len(competitors)); rec != nil {
			log.Printf("using cached ASO analysis from %s", rec.CreatedAt.Format("2006-01-02 15:04"))
			outcome.Result = &Result{
				LLMAnalysis:     rec.LLMAnalysis,
				Recommendations: recommendationsOrEmpty(rec.Recommendations),
				CompetitorCount: rec.CompetitorCount,
			}
			if rec.LLMModel != nil {
				outcome.Result.Model = *rec.LLMModel
			}
			outcome.Cached = true
			outcome.CachedAt = rec.CreatedAt
			outcome.KeywordOpportunities = r.storedKeywordOpportunities(keyword)
			return outcome, nil
		}
	}

	log.Printf("scraping store pages for %d apps", len(apps))
	userMeta := r.scrape(ctx, userApp.AppID)
	compMetadata := make([]AppMetadata, 0, len(competitors))
	competitorIDs := make([]string, 0, len(competitors))
	for _, c := range competitors {
		compMetadata = append(compMetadata, FromApp(c, r.scrape(ctx, c.AppID)))
		competitorIDs = append(competitorIDs, c.AppID)
	}

	result, err := r.analyzer.Analyze(ctx, FromApp(*userApp, userMeta), compMetadata, keyword, model)
	if err != nil {
		return nil, err
	}

	rec := database.AsoAnalysis{
		AppRowID:         userApp.ID,
		Keyword:          keyword,
		CompetitorCount:  result.CompetitorCount,
		CompetitorAppIDs: competitorIDs,
		LLMAnalysis:      result.LLMAnalysis,
		Recommendations:  result.Recommendations,
	}
	if result.Model != "" {
		m := result.Model
		rec.LLMModel = &m
	}
	if _, err := r.db.InsertAsoAnalysis(rec); err != nil {
		return nil, fmt.Errorf("saving ASO analysis: %w", err)
	}
	outcome.Result = result

	// The keyword pass covers the whole competitor set including the
	// user's own app; its output rides on the keyword's latest review
	// analysis when one exists.
	allMetadata := append([]AppMetadata{FromApp(*userApp, userMeta)}, compMetadata...)
	opportunities, err := r.analyzer.ExtractKeywords(ctx, allMetadata, keyword, model)
	if err != nil {
		log.Printf("keyword extraction failed: %v", err)
	} else {
		outcome.KeywordOpportunities = opportunities
		r.attachKeywordOpportunities(keyword, opportunities)
	}

	return outcome, nil
}

func (r *Runner) reusable(appRowID int64, keyword string, currentCompetitors int) *database.AsoAnalysis {
	now := r.now()
	rec, err := r.db.LatestAsoAnalysis(appRowID, keyword, now.Add(-r.policy.AsoTTL))
	if err != nil {
		log.Printf("checking cached ASO analysis: %v", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	if r.policy.CompetitorsDrifted(rec.CompetitorCount, currentCompetitors) {
		return nil
	}
	return rec
}

func (r *Runner) scrape(ctx context.Context, appID string) metadata.Result {
	result, err := r.scraper.Fetch(ctx, appID)
	if err != nil {
		log.Printf("scraping app %s failed: %v", appID, err)
		return metadata.Result{}
	}
	return result
}

func (r *Runner) attachKeywordOpportunities(keyword string, opportunities json.RawMessage) {
	rec, err := r.db.LatestAnalysis(keyword, time.Time{})
	if err != nil || rec == nil {
		return
	}
	if err := r.db.SetKeywordOpportunities(rec.ID, opportunities); err != nil {
		log.Printf("attaching keyword opportunities: %v", err)
	}
}

func (r *Runner) storedKeywordOpportunities(keyword string) json.RawMessage {
	rec, err := r.db.LatestAnalysis(keyword, time.Time{})
	if err != nil || rec == nil {
		return nil
	}
	return rec.KeywordOpportunities
}

func recommendationsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return EmptyRecommendations
	}
	return raw
}
