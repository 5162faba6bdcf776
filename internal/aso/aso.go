// Package aso produces App Store Optimization recommendations and keyword
// intelligence from competitor metadata.
package aso

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/llm"
	"github.com/clayton/appintel/internal/metadata"
)

// EmptyRecommendations is stored when the LLM response carries no
// parseable JSON.
var EmptyRecommendations = json.RawMessage(`{}`)

// AppMetadata is the flattened per-app input for the ASO prompts: the
// catalog listing merged with scraped page fields.
type AppMetadata struct {
	AppID           string
	Name            string
	Rank            int
	Subtitle        *string
	PromotionalText *string
	Category        *string
	Rating          float64
	RatingCount     int
	Description     string
}

// FromApp builds prompt metadata from a cached app and its scraped page
// fields.
func FromApp(app database.App, scraped metadata.Result) AppMetadata {
	m := AppMetadata{
		AppID:           app.AppID,
		Name:            app.Name,
		Rank:            app.SearchRank,
		Subtitle:        scraped.Subtitle,
		PromotionalText: scraped.PromotionalText,
	}
	if app.AverageRating != nil {
		m.Rating = *app.AverageRating
	}
	if app.RatingCount != nil {
		m.RatingCount = *app.RatingCount
	}
	if app.Description != nil {
		m.Description = *app.Description
	}
	return m
}

// Result is one ASO analysis: the raw LLM text plus the parsed
// recommendation object.
type Result struct {
	LLMAnalysis     string
	Recommendations json.RawMessage
	CompetitorCount int
	Model           string
}

// Analyzer runs the ASO and keyword-extraction LLM passes.
type Analyzer struct {
	provider llm.Provider
	cfg      config.LLM
}

// NewAnalyzer creates an analyzer over an LLM provider.
func NewAnalyzer(provider llm.Provider, cfg config.LLM) *Analyzer {
	return &Analyzer{provider: provider, cfg: cfg}
}

func (a *Analyzer) resolveModel(model string) string {
	if model != "" {
		return model
	}
	if a.cfg.AsoModel != "" {
		return a.cfg.AsoModel
	}
	return a.cfg.Model
}

// Analyze produces ASO recommendations for one app against its keyword
// competitors.
func (a *Analyzer) Analyze(ctx context.Context, userApp AppMetadata, competitors []AppMetadata, keyword, model string) (*Result, error) {
	if len(competitors) == 0 {
		return nil, errors.New("no competitor data to analyze")
	}
	model = a.resolveModel(model)

	content, err := a.provider.Complete(ctx, llm.Request{
		System:      "You are an expert App Store Optimization (ASO) consultant with deep knowledge of keyword optimization, competitive positioning, and conversion rate optimization for mobile apps.",
		User:        buildAsoPrompt(userApp, competitors, keyword),
		Model:       model,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("ASO analysis: %w", err)
	}

	content = llm.StripCodeFences(content)
	result := &Result{
		LLMAnalysis:     content,
		Recommendations: EmptyRecommendations,
		CompetitorCount: len(competitors),
		Model:           model,
	}
	if obj, ok := llm.ExtractJSONObject(content); ok && json.Valid([]byte(obj)) {
		result.Recommendations = json.RawMessage(obj)
	}
	return result, nil
}

// ExtractKeywords mines competitor metadata for keyword intelligence. The
// returned blob is the parsed LLM object, or an empty object when the
// response does not parse.
func (a *Analyzer) ExtractKeywords(ctx context.Context, apps []AppMetadata, keyword, model string) (json.RawMessage, error) {
	if len(apps) == 0 {
		return nil, errors.New("no app metadata to analyze")
	}

	content, err := a.provider.Complete(ctx, llm.Request{
		System: "You are an expert App Store Optimization (ASO) keyword researcher with deep knowledge of Apple's App Store search algorithm, keyword weighting, and competitive keyword intelligence.",
		User:   buildKeywordPrompt(apps, keyword),
		Model:  a.resolveModel(model),
		// Keyword extraction wants focused output.
		Temperature: 0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword extraction: %w", err)
	}

	if obj, ok := llm.ExtractJSONObject(llm.StripCodeFences(content)); ok && json.Valid([]byte(obj)) {
		return json.RawMessage(obj), nil
	}
	return EmptyRecommendations, nil
}

func buildAsoPrompt(userApp AppMetadata, competitors []AppMetadata, keyword string) string {
	var comps strings.Builder
	for i, c := range competitors {
		fmt.Fprintf(&comps, "%d. %s (Rank #%d)\n   Subtitle: %s\n   Category: %s\n   Rating: %.1f/5 (%d reviews)\n   Description (first 300 chars): %s\n\n",
			i+1, c.Name, c.Rank, orText(c.Subtitle, "Not available"), orText(c.Category, "N/A"),
			c.Rating, c.RatingCount, truncate(c.Description, 300))
	}

	return fmt.Sprintf(`Analyze the following app metadata and provide ASO recommendations to improve discoverability and conversion for the keyword %q.

YOUR APP TO OPTIMIZE:
- Name: %s
- Current Subtitle: %s
- Current Promotional Text: %s
- Category: %s
- Rating: %.1f/5 (%d reviews)
- Description (first 500 chars): %s

COMPETITOR APPS (ranked by App Store search for %q):
%s
Provide specific, actionable ASO recommendations. Format as valid JSON:
{
  "name_recommendations": {
    "current_analysis": "Analysis of current name effectiveness for the keyword",
    "suggestions": ["suggestion 1", "suggestion 2"],
    "keywords_to_include": ["keyword1", "keyword2"]
  },
  "subtitle_recommendations": {
    "current_analysis": "Analysis of current subtitle or lack thereof",
    "suggested_subtitles": ["30-char option 1", "30-char option 2", "30-char option 3"],
    "competitor_patterns": "What successful competitors are doing"
  },
  "promotional_text_recommendations": {
    "current_analysis": "Analysis of promotional text effectiveness",
    "suggested_text": "Full 170-character promotional text suggestion",
    "key_themes": ["theme1", "theme2"]
  },
  "keyword_recommendations": {
    "primary_keywords": ["high-priority keyword 1", "keyword 2"],
    "secondary_keywords": ["lower-priority keywords"],
    "competitor_keywords": ["keywords competitors use effectively"],
    "gap_keywords": ["keywords competitors miss that you could target"]
  },
  "description_recommendations": {
    "current_analysis": "Analysis of description effectiveness",
    "suggested_opening": "Strong first paragraph suggestion (most important for ASO)",
    "key_features_to_highlight": ["feature1", "feature2"],
    "keyword_placement_tips": "Where to place keywords naturally"
  },
  "competitive_summary": {
    "your_current_position": "Assessment of where you stand",
    "top_3_priorities": ["Most impactful change 1", "Change 2", "Change 3"],
    "unique_angles": ["Positioning opportunities competitors don't own"]
  }
}

IMPORTANT:
- Subtitles MUST be under 30 characters
- Promotional text MUST be under 170 characters
- Base suggestions on gaps you see vs competitors
- Be specific and actionable`,
		keyword,
		userApp.Name, orText(userApp.Subtitle, "None set"), orText(userApp.PromotionalText, "None set"),
		orText(userApp.Category, "N/A"), userApp.Rating, userApp.RatingCount,
		truncate(userApp.Description, 500),
		keyword, comps.String())
}

func buildKeywordPrompt(apps []AppMetadata, keyword string) string {
	var appsText strings.Builder
	for i, app := range apps {
		fmt.Fprintf(&appsText, "%d. %s (Rank #%d)\n   Subtitle: %s\n   Rating: %.1f/5 (%d reviews)\n   Description (first 500 chars): %s\n\n",
			i+1, app.Name, app.Rank, orText(app.Subtitle, "Not available"),
			app.Rating, app.RatingCount, truncate(app.Description, 500))
	}

	return fmt.Sprintf(`Analyze the following competitor app metadata from the App Store search results for %q and extract keyword intelligence.

COMPETITOR APPS (ranked by App Store search):
%s
Your task:

1. **High-frequency keywords**: Identify terms that appear across many competitors' titles, subtitles, and descriptions. These are "table stakes" keywords that signal relevance for this category.

2. **Title keywords**: Extract the exact meaningful terms each competitor puts in their app name (excluding common words like "the", "app", "-", etc.).

3. **Subtitle keywords**: Extract terms from subtitles. These are heavily weighted by Apple's search algorithm.

4. **Description keywords**: Identify repeated terms in the first few sentences of descriptions across competitors.

5. **Keyword gaps/opportunities**: Terms that only 1-2 competitors use. These represent lower-competition keyword opportunities.

6. **Suggested keyword field**: Create a prioritized, comma-separated list of keywords optimized for the App Store Connect 100-character keyword field. Do NOT include the app name or category name (Apple ignores duplicates). Focus on high-value terms not already covered by a title or subtitle.

Format your response as valid JSON:
{
  "high_frequency_keywords": [
    {
      "keyword": "term",
      "competitor_count": 7,
      "total_competitors": 10,
      "found_in": ["App Name 1", "App Name 2"]
    }
  ],
  "title_keywords": [
    {
      "app_name": "App Name",
      "keywords": ["keyword1", "keyword2"]
    }
  ],
  "subtitle_keywords": [
    {
      "app_name": "App Name",
      "subtitle": "The full subtitle text",
      "keywords": ["keyword1", "keyword2"]
    }
  ],
  "description_keywords": [
    {
      "keyword": "term",
      "competitor_count": 5,
      "context": "Brief note on how it's used"
    }
  ],
  "keyword_gaps": [
    {
      "keyword": "term",
      "used_by_count": 1,
      "used_by": ["App Name"],
      "opportunity_note": "Why this is an opportunity"
    }
  ],
  "suggested_keyword_field": {
    "keywords": "comma,separated,keywords,max,100,chars",
    "character_count": 42,
    "rationale": "Brief explanation of prioritization"
  }
}

IMPORTANT:
- Only extract real keywords found in the provided metadata
- The suggested keyword field MUST be 100 characters or fewer
- Sort high-frequency keywords by competitor_count descending
- Sort keyword gaps by opportunity (fewest competitors first)
- Be specific and actionable`, keyword, appsText.String())
}

func orText(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
