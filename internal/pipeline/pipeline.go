// Package pipeline wires aggregation, persona extraction, the LLM passes
// and persistence into a single keyword run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/clayton/appintel/internal/aggregate"
	"github.com/clayton/appintel/internal/analysis"
	"github.com/clayton/appintel/internal/appstore"
	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/freshness"
	"github.com/clayton/appintel/internal/llm"
	"github.com/clayton/appintel/internal/personas"
)

// Options controls one keyword run.
type Options struct {
	Limit  int
	Model  string
	Force  bool
	Simple bool
}

// Outcome is the result of one keyword run.
type Outcome struct {
	Keyword    string
	Apps       []database.App
	TotalLow   int
	TotalHigh  int
	Analysis   *analysis.Comprehensive
	Simple     *analysis.Simple
	Cached     bool
	CachedAt   time.Time
	AnalysisID int64
}

// Pipeline runs the end-to-end keyword analysis.
type Pipeline struct {
	cfg          *config.Config
	db           *database.DB
	orchestrator *aggregate.Orchestrator
	assembler    *analysis.Assembler
	policy       freshness.Policy

	now func() time.Time
}

// New creates a pipeline with the real catalog client and OpenRouter
// provider.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	catalog := appstore.New(cfg.AppStore)
	provider := llm.NewOpenRouterProvider(cfg.LLM.BaseURL, cfg.APIKey())
	return newPipeline(cfg, db, catalog, provider)
}

func newPipeline(cfg *config.Config, db *database.DB, catalog aggregate.Catalog, provider llm.Provider) *Pipeline {
	policy := freshness.FromConfig(cfg.Freshness)
	return &Pipeline{
		cfg:          cfg,
		db:           db,
		orchestrator: aggregate.New(db, catalog, policy, cfg.AppStore),
		assembler:    analysis.New(provider, cfg.LLM),
		policy:       policy,
		now:          time.Now,
	}
}

// Run aggregates the keyword's corpus and produces an analysis, reusing a
// cached one when the freshness policy allows.
func (p *Pipeline) Run(ctx context.Context, keyword string, opts Options) (*Outcome, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	agg, err := p.orchestrator.Aggregate(ctx, keyword, opts.Limit, opts.Force)
	if err != nil {
		return nil, fmt.Errorf("aggregating %q: %w", keyword, err)
	}

	outcome := &Outcome{
		Keyword:   keyword,
		Apps:      agg.Apps,
		TotalLow:  len(agg.LowReviews),
		TotalHigh: len(agg.HighReviews),
	}
	if len(agg.LowReviews) == 0 && len(agg.HighReviews) == 0 {
		return outcome, fmt.Errorf("no reviews found for %q", keyword)
	}

	if opts.Simple {
		return p.runSimple(ctx, agg, opts, outcome)
	}
	return p.runComprehensive(ctx, agg, opts, outcome)
}

func (p *Pipeline) runComprehensive(ctx context.Context, agg *aggregate.Result, opts Options, outcome *Outcome) (*Outcome, error) {
	if !opts.Force {
		if rec := p.reusableAnalysis(agg, database.ShapeComprehensive); rec != nil {
			log.Printf("using cached analysis from %s", rec.CreatedAt.Format("2006-01-02 15:04"))
			outcome.Analysis = analysis.AssembleFromRecord(rec)
			outcome.Cached = true
			outcome.CachedAt = rec.CreatedAt
			outcome.AnalysisID = rec.ID
			return outcome, nil
		}
	}

	appNames := appNameIndex(agg.Apps)
	allReviews := append(append([]database.Review{}, agg.LowReviews...), agg.HighReviews...)

	log.Printf("extracting persona phrases from %d reviews", len(allReviews))
	extracted := personas.Extract(allReviews)
	rawPhrases := marshalExtraction(extracted)

	log.Printf("analyzing %d low and %d high reviews with %s",
		len(agg.LowReviews), len(agg.HighReviews), p.modelName(opts.Model))
	result, err := p.assembler.AnalyzeComprehensive(ctx, agg.Keyword, agg.LowReviews, agg.HighReviews, appNames, opts.Model)
	if err != nil {
		return nil, err
	}

	result.RawPersonaExtractions = rawPhrases
	result.Personas = p.normalizePersonas(ctx, agg.Keyword, extracted, opts.Model)
	result.InsiderLanguage = p.insiderLanguage(ctx, agg.Keyword, allReviews, opts.Model)

	rec := analysis.ToRecord(agg.Keyword, result)
	id, err := p.db.InsertAnalysis(rec)
	if err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	outcome.Analysis = result
	outcome.AnalysisID = id
	return outcome, nil
}

func (p *Pipeline) runSimple(ctx context.Context, agg *aggregate.Result, opts Options, outcome *Outcome) (*Outcome, error) {
	if len(agg.LowReviews) == 0 {
		return outcome, fmt.Errorf("no low-rating reviews found for %q", agg.Keyword)
	}

	if !opts.Force {
		if rec := p.reusableAnalysis(agg, database.ShapeSimple); rec != nil {
			log.Printf("using cached analysis from %s", rec.CreatedAt.Format("2006-01-02 15:04"))
			outcome.Simple = simpleFromRecord(rec)
			outcome.Cached = true
			outcome.CachedAt = rec.CreatedAt
			outcome.AnalysisID = rec.ID
			return outcome, nil
		}
	}

	log.Printf("analyzing %d low reviews with %s", len(agg.LowReviews), p.modelName(opts.Model))
	result, err := p.assembler.AnalyzeSimple(ctx, agg.Keyword, agg.LowReviews, appNameIndex(agg.Apps), opts.Model)
	if err != nil {
		return nil, err
	}

	id, err := p.db.InsertAnalysis(analysis.SimpleToRecord(agg.Keyword, result))
	if err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	outcome.Simple = result
	outcome.AnalysisID = id
	return outcome, nil
}

// reusableAnalysis returns the latest cached analysis if its shape matches
// and the current corpus has not drifted past the policy threshold.
func (p *Pipeline) reusableAnalysis(agg *aggregate.Result, shape string) *database.Analysis {
	now := p.now()
	rec, err := p.db.LatestAnalysis(agg.Keyword, now.Add(-p.policy.AnalysisTTL))
	if err != nil {
		log.Printf("checking cached analysis: %v", err)
		return nil
	}
	if rec == nil || rec.Shape != shape {
		return nil
	}

	switch shape {
	case database.ShapeComprehensive:
		if p.policy.AnalysisCountsDrifted(rec.TotalLowReviewsAnalyzed, rec.TotalHighReviewsAnalyzed,
			len(agg.LowReviews), len(agg.HighReviews)) {
			return nil
		}
	case database.ShapeSimple:
		if p.policy.SimpleAnalysisDrifted(rec.TotalReviewsAnalyzed, len(agg.LowReviews)) {
			return nil
		}
	}
	return rec
}

// normalizePersonas degrades to the empty structure on failure; a broken
// persona pass must not discard a finished review analysis.
func (p *Pipeline) normalizePersonas(ctx context.Context, keyword string, extracted personas.Result, model string) json.RawMessage {
	raw, err := p.assembler.NormalizePersonas(ctx, keyword, extracted.Top(50), model)
	if err != nil {
		log.Printf("persona normalization failed: %v", err)
		return analysis.EmptyPersonas
	}
	return raw
}

func (p *Pipeline) insiderLanguage(ctx context.Context, keyword string, reviews []database.Review, model string) json.RawMessage {
	raw, err := p.assembler.AnalyzeInsiderLanguage(ctx, keyword, reviews, model)
	if err != nil {
		log.Printf("insider language analysis failed: %v", err)
		return analysis.EmptyInsiderLanguage
	}
	return raw
}

func (p *Pipeline) modelName(model string) string {
	if model != "" {
		return model
	}
	return p.cfg.LLM.Model
}

func appNameIndex(apps []database.App) map[int64]string {
	names := make(map[int64]string, len(apps))
	for _, app := range apps {
		names[app.ID] = app.Name
	}
	return names
}

func marshalExtraction(r personas.Result) json.RawMessage {
	payload := struct {
		Phrases            []personas.Phrase `json:"phrases"`
		ReviewsWithMatches int               `json:"reviews_with_matches"`
	}{r.Phrases, r.ReviewsWithMatches}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

func simpleFromRecord(rec *database.Analysis) *analysis.Simple {
	s := analysis.AssembleSimple(rec.LLMAnalysis, rec.TotalReviewsAnalyzed, "")
	if rec.LLMModel != nil {
		s.Model = *rec.LLMModel
	}
	if s.Summary == "" && rec.Summary != nil {
		s.Summary = *rec.Summary
	}
	return s
}
