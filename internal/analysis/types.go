// Package analysis turns review corpora into persisted LLM analyses and
// rebuilds identical result shapes from cached records.
package analysis

import "encoding/json"

// TableStake is a baseline feature praised across high-rating reviews.
type TableStake struct {
	Feature     string `json:"feature"`
	Description string `json:"description"`
	Evidence    string `json:"evidence,omitempty"`
}

// PainPoint is a recurring complaint category from low-rating reviews.
type PainPoint struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Frequency   string `json:"frequency,omitempty"`
}

// Differentiator is an unmet need worth building toward.
type Differentiator struct {
	Opportunity string `json:"opportunity"`
	Description string `json:"description"`
	Rationale   string `json:"rationale,omitempty"`
}

// CompetitiveSummary distills the landscape into fit-in and stand-out lists.
type CompetitiveSummary struct {
	TopTableStakes     []string `json:"top_3_table_stakes,omitempty"`
	TopDifferentiators []string `json:"top_3_differentiators,omitempty"`
}

// Empty reports whether the summary carries no positioning data.
func (c CompetitiveSummary) Empty() bool {
	return len(c.TopTableStakes) == 0 && len(c.TopDifferentiators) == 0
}

// Pattern is a complaint category from the low-rating-only analysis shape.
type Pattern struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Frequency   string `json:"frequency,omitempty"`
}

// Opportunity is a prioritized product suggestion from the low-rating-only
// analysis shape.
type Opportunity struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}

// PersonaGroup is a named cluster of self-description phrases.
type PersonaGroup struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Phrases       []string `json:"phrases,omitempty"`
	TotalMentions int      `json:"total_mentions,omitempty"`
}

// InsiderTerm is a piece of category jargon users write naturally.
type InsiderTerm struct {
	Term      string `json:"term"`
	Meaning   string `json:"meaning"`
	Frequency string `json:"frequency,omitempty"`
}

// InsiderLanguage captures the category's vocabulary and how developed it is.
type InsiderLanguage struct {
	Terms    []InsiderTerm `json:"terms"`
	Maturity string        `json:"maturity,omitempty"`
}

// Comprehensive is the dual-band analysis result. Both the fresh LLM path
// and the cached-record path produce this same shape.
type Comprehensive struct {
	LLMAnalysis        string
	Summary            string
	TableStakes        []TableStake
	PainPoints         []PainPoint
	Differentiators    []Differentiator
	CompetitiveSummary CompetitiveSummary

	Personas              json.RawMessage
	RawPersonaExtractions json.RawMessage
	InsiderLanguage       json.RawMessage

	TotalLowReviews  int
	TotalHighReviews int
	Model            string
}

// Simple is the single-band (low-rating only) analysis result.
type Simple struct {
	LLMAnalysis   string
	Summary       string
	Patterns      []Pattern
	Opportunities []Opportunity

	TotalReviews int
	Model        string
}
