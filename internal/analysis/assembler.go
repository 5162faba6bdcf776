package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/llm"
	"github.com/clayton/appintel/internal/personas"
)

// Empty JSON structures stored when an auxiliary LLM pass fails. Degraded
// analyses keep a parseable shape instead of NULLs.
var (
	EmptyPersonas        = json.RawMessage(`{"personas":[]}`)
	EmptyInsiderLanguage = json.RawMessage(`{"terms":[],"maturity":""}`)
)

// Assembler runs the LLM analysis passes and rebuilds results from cache.
type Assembler struct {
	provider llm.Provider
	cfg      config.LLM
}

// New creates an assembler over an LLM provider.
func New(provider llm.Provider, cfg config.LLM) *Assembler {
	return &Assembler{provider: provider, cfg: cfg}
}

func (a *Assembler) resolveModel(model string) string {
	if model != "" {
		return model
	}
	return a.cfg.Model
}

// AnalyzeComprehensive runs the dual-band analysis over fresh reviews.
// An empty model falls back to the configured default.
func (a *Assembler) AnalyzeComprehensive(ctx context.Context, keyword string, low, high []database.Review, appNames map[int64]string, model string) (*Comprehensive, error) {
	if len(low) == 0 && len(high) == 0 {
		return nil, errors.New("no reviews to analyze")
	}
	model = a.resolveModel(model)

	content, err := a.provider.Complete(ctx, llm.Request{
		System:      comprehensiveSystemPrompt,
		User:        buildComprehensivePrompt(keyword, low, high, appNames),
		Model:       model,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("review analysis: %w", err)
	}
	return AssembleComprehensive(content, len(low), len(high), model), nil
}

// AnalyzeSimple runs the low-rating-only analysis.
func (a *Assembler) AnalyzeSimple(ctx context.Context, keyword string, reviews []database.Review, appNames map[int64]string, model string) (*Simple, error) {
	if len(reviews) == 0 {
		return nil, errors.New("no reviews to analyze")
	}
	model = a.resolveModel(model)

	content, err := a.provider.Complete(ctx, llm.Request{
		System:      simpleSystemPrompt,
		User:        buildSimplePrompt(keyword, reviews, appNames),
		Model:       model,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("review analysis: %w", err)
	}
	return AssembleSimple(content, len(reviews), model), nil
}

// NormalizePersonas asks the LLM to group raw extracted phrases into named
// personas. The returned message always unmarshals into {"personas": [...]}.
func (a *Assembler) NormalizePersonas(ctx context.Context, keyword string, phrases []personas.Phrase, model string) (json.RawMessage, error) {
	if len(phrases) == 0 {
		return EmptyPersonas, nil
	}

	content, err := a.provider.Complete(ctx, llm.Request{
		System:      "You are a product researcher who builds user personas from qualitative review data.",
		User:        buildPersonaPrompt(keyword, phrases),
		Model:       a.resolveModel(model),
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("persona normalization: %w", err)
	}

	var parsed struct {
		Personas []PersonaGroup `json:"personas"`
	}
	obj, ok := llm.ExtractJSONObject(content)
	if !ok || json.Unmarshal([]byte(obj), &parsed) != nil {
		return EmptyPersonas, nil
	}
	return json.RawMessage(obj), nil
}

// AnalyzeInsiderLanguage extracts the category's jargon from the review
// corpus. The returned message always unmarshals into InsiderLanguage.
func (a *Assembler) AnalyzeInsiderLanguage(ctx context.Context, keyword string, reviews []database.Review, model string) (json.RawMessage, error) {
	if len(reviews) == 0 {
		return EmptyInsiderLanguage, nil
	}

	content, err := a.provider.Complete(ctx, llm.Request{
		System:      "You are a market researcher who studies how user communities talk about products.",
		User:        buildInsiderLanguagePrompt(keyword, reviews),
		Model:       a.resolveModel(model),
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("insider language analysis: %w", err)
	}

	var parsed InsiderLanguage
	obj, ok := llm.ExtractJSONObject(content)
	if !ok || json.Unmarshal([]byte(obj), &parsed) != nil {
		return EmptyInsiderLanguage, nil
	}
	return json.RawMessage(obj), nil
}

// comprehensivePayload mirrors the JSON shape the prompt asks for.
type comprehensivePayload struct {
	Summary            string             `json:"summary"`
	TableStakes        []TableStake       `json:"table_stakes"`
	PainPoints         []PainPoint        `json:"pain_points"`
	Differentiators    []Differentiator   `json:"differentiators"`
	CompetitiveSummary CompetitiveSummary `json:"competitive_summary"`
	TotalLow           int                `json:"total_low_reviews_analyzed"`
	TotalHigh          int                `json:"total_high_reviews_analyzed"`
}

// AssembleComprehensive builds a result from a raw LLM response. A response
// with no parseable JSON degrades to empty structures with the raw text
// preserved; it never fails.
func AssembleComprehensive(raw string, lowCount, highCount int, model string) *Comprehensive {
	content := llm.StripCodeFences(raw)
	c := &Comprehensive{
		LLMAnalysis:      content,
		TableStakes:      []TableStake{},
		PainPoints:       []PainPoint{},
		Differentiators:  []Differentiator{},
		TotalLowReviews:  lowCount,
		TotalHighReviews: highCount,
		Model:            model,
	}

	obj, ok := llm.ExtractJSONObject(content)
	if !ok {
		return c
	}
	var parsed comprehensivePayload
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return c
	}

	c.Summary = parsed.Summary
	if parsed.TableStakes != nil {
		c.TableStakes = parsed.TableStakes
	}
	if parsed.PainPoints != nil {
		c.PainPoints = parsed.PainPoints
	}
	if parsed.Differentiators != nil {
		c.Differentiators = parsed.Differentiators
	}
	c.CompetitiveSummary = parsed.CompetitiveSummary
	return c
}

// AssembleSimple builds a low-rating-only result from a raw LLM response.
func AssembleSimple(raw string, reviewCount int, model string) *Simple {
	content := llm.StripCodeFences(raw)
	s := &Simple{
		LLMAnalysis:   content,
		Patterns:      []Pattern{},
		Opportunities: []Opportunity{},
		TotalReviews:  reviewCount,
		Model:         model,
	}

	obj, ok := llm.ExtractJSONObject(content)
	if !ok {
		return s
	}
	var parsed struct {
		Summary       string        `json:"summary"`
		Patterns      []Pattern     `json:"patterns"`
		Opportunities []Opportunity `json:"opportunities"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return s
	}

	s.Summary = parsed.Summary
	if parsed.Patterns != nil {
		s.Patterns = parsed.Patterns
	}
	if parsed.Opportunities != nil {
		s.Opportunities = parsed.Opportunities
	}
	return s
}

// AssembleFromRecord rebuilds a comprehensive result from a stored analysis.
// It prefers the record's structured columns, falls back to re-extracting
// from the raw text, and finally to the columns older simple-shape records
// populate (patterns as pain points, opportunities as differentiators).
func AssembleFromRecord(rec *database.Analysis) *Comprehensive {
	c := &Comprehensive{
		LLMAnalysis:           rec.LLMAnalysis,
		TableStakes:           []TableStake{},
		PainPoints:            []PainPoint{},
		Differentiators:       []Differentiator{},
		Personas:              rec.Personas,
		RawPersonaExtractions: rec.RawPersonaExtractions,
		InsiderLanguage:       rec.InsiderLanguage,
		TotalLowReviews:       rec.TotalLowReviewsAnalyzed,
		TotalHighReviews:      rec.TotalHighReviewsAnalyzed,
	}
	if rec.LLMModel != nil {
		c.Model = *rec.LLMModel
	}

	var parsed comprehensivePayload
	parsedOK := false
	if obj, ok := llm.ExtractJSONObject(rec.LLMAnalysis); ok {
		parsedOK = json.Unmarshal([]byte(obj), &parsed) == nil
	}

	if c.TotalLowReviews == 0 && c.TotalHighReviews == 0 && parsedOK {
		c.TotalLowReviews = parsed.TotalLow
		c.TotalHighReviews = parsed.TotalHigh
	}

	switch {
	case unmarshalRaw(rec.TableStakes, &c.TableStakes):
	case parsedOK && parsed.TableStakes != nil:
		c.TableStakes = parsed.TableStakes
	}

	switch {
	case unmarshalRaw(rec.PainPoints, &c.PainPoints):
	case parsedOK && parsed.PainPoints != nil:
		c.PainPoints = parsed.PainPoints
	case rec.Patterns != nil:
		unmarshalRaw(rec.Patterns, &c.PainPoints)
	}

	switch {
	case unmarshalRaw(rec.Differentiators, &c.Differentiators):
	case parsedOK && parsed.Differentiators != nil:
		c.Differentiators = parsed.Differentiators
	default:
		var opps []Opportunity
		if unmarshalRaw(rec.Opportunities, &opps) {
			for _, o := range opps {
				c.Differentiators = append(c.Differentiators, Differentiator{
					Opportunity: o.Title,
					Description: o.Description,
				})
			}
		}
	}

	if !unmarshalRaw(rec.CompetitiveSummary, &c.CompetitiveSummary) && parsedOK {
		c.CompetitiveSummary = parsed.CompetitiveSummary
	}

	switch {
	case rec.Summary != nil && *rec.Summary != "":
		c.Summary = *rec.Summary
	case parsedOK && parsed.Summary != "":
		c.Summary = parsed.Summary
	default:
		if summary, ok := llm.ExtractSummary(rec.LLMAnalysis); ok {
			c.Summary = summary
		}
	}

	return c
}

// unmarshalRaw reports whether raw held a non-empty value that decoded
// into dst.
func unmarshalRaw(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return !isEmptyValue(dst)
}

func isEmptyValue(dst any) bool {
	switch v := dst.(type) {
	case *[]TableStake:
		return len(*v) == 0
	case *[]PainPoint:
		return len(*v) == 0
	case *[]Differentiator:
		return len(*v) == 0
	case *[]Opportunity:
		return len(*v) == 0
	case *CompetitiveSummary:
		return v.Empty()
	default:
		return false
	}
}

// ToRecord converts a comprehensive result plus its auxiliary extractions
// into a persistable analysis row.
func ToRecord(keyword string, c *Comprehensive) database.Analysis {
	rec := database.Analysis{
		Keyword:                  keyword,
		Shape:                    database.ShapeComprehensive,
		LLMAnalysis:              c.LLMAnalysis,
		TableStakes:              mustMarshal(c.TableStakes),
		PainPoints:               mustMarshal(c.PainPoints),
		Differentiators:          mustMarshal(c.Differentiators),
		Personas:                 c.Personas,
		RawPersonaExtractions:    c.RawPersonaExtractions,
		InsiderLanguage:          c.InsiderLanguage,
		TotalReviewsAnalyzed:     c.TotalLowReviews + c.TotalHighReviews,
		TotalLowReviewsAnalyzed:  c.TotalLowReviews,
		TotalHighReviewsAnalyzed: c.TotalHighReviews,
	}
	if !c.CompetitiveSummary.Empty() {
		rec.CompetitiveSummary = mustMarshal(c.CompetitiveSummary)
	}
	if c.Summary != "" {
		summary := c.Summary
		rec.Summary = &summary
	}
	if c.Model != "" {
		model := c.Model
		rec.LLMModel = &model
	}
	return rec
}

// SimpleToRecord converts a simple result into a persistable analysis row.
func SimpleToRecord(keyword string, s *Simple) database.Analysis {
	rec := database.Analysis{
		Keyword:              keyword,
		Shape:                database.ShapeSimple,
		LLMAnalysis:          s.LLMAnalysis,
		Patterns:             mustMarshal(s.Patterns),
		Opportunities:        mustMarshal(s.Opportunities),
		TotalReviewsAnalyzed: s.TotalReviews,
	}
	if s.Summary != "" {
		summary := s.Summary
		rec.Summary = &summary
	}
	if s.Model != "" {
		model := s.Model
		rec.LLMModel = &model
	}
	return rec
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
