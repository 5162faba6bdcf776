package database

import (
	"encoding/json"
	"time"
)

// App is a cached App Store listing, scoped to the search keyword that
// discovered it. The same store app appears once per keyword.
type App struct {
	ID            int64
	AppID         string
	Keyword       string
	Name          string
	Developer     *string
	BundleID      *string
	Price         *float64
	Currency      *string
	AverageRating *float64
	RatingCount   *int
	Version       *string
	Description   *string
	IconURL       *string
	SearchRank    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Review is a customer review. ReviewID is globally unique across apps.
type Review struct {
	ID          int64
	AppRowID    int64
	ReviewID    string
	Author      *string
	Title       *string
	Content     *string
	Rating      int
	Version     *string
	PublishedAt *string
	CreatedAt   time.Time
}

// Analysis shapes. The shape is decided when the record is written and
// stored explicitly, never re-inferred from the raw text.
const (
	ShapeSimple        = "simple"
	ShapeComprehensive = "comprehensive"
)

// Analysis is a persisted LLM review analysis, keyed by keyword.
// Structured sub-results are stored as JSON text and surfaced as raw
// messages; the analysis package owns their concrete types.
type Analysis struct {
	ID                       int64
	Keyword                  string
	Shape                    string
	LLMAnalysis              string
	Summary                  *string
	Patterns                 json.RawMessage
	Opportunities            json.RawMessage
	TableStakes              json.RawMessage
	PainPoints               json.RawMessage
	Differentiators          json.RawMessage
	CompetitiveSummary       json.RawMessage
	Personas                 json.RawMessage
	RawPersonaExtractions    json.RawMessage
	InsiderLanguage          json.RawMessage
	KeywordOpportunities     json.RawMessage
	TotalReviewsAnalyzed     int
	TotalLowReviewsAnalyzed  int
	TotalHighReviewsAnalyzed int
	LLMModel                 *string
	CreatedAt                time.Time
}

// ScreenshotAnalysis is a persisted screenshot critique for one app.
type ScreenshotAnalysis struct {
	ID              int64
	AppRowID        int64
	ScreenshotCount int
	Analysis        string
	ScreenshotURLs  []string
	LLMModel        *string
	CreatedAt       time.Time
}

// AsoAnalysis is a persisted ASO recommendation set for one app and keyword.
type AsoAnalysis struct {
	ID               int64
	AppRowID         int64
	Keyword          string
	CompetitorCount  int
	CompetitorAppIDs []string
	LLMAnalysis      string
	Recommendations  json.RawMessage
	LLMModel         *string
	CreatedAt        time.Time
}

// Stats contains aggregate database statistics.
type Stats struct {
	Apps               int
	Keywords           int
	Reviews            int
	LowReviews         int
	HighReviews        int
	Analyses           int
	ScreenshotAnalyses int
	AsoAnalyses        int
}
