package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertAnalysis appends an analysis record. Analyses are never updated in
// place; staleness decisions always see the newest record per keyword.
func (db *DB) InsertAnalysis(a Analysis) (int64, error) {
	if a.Shape != ShapeSimple && a.Shape != ShapeComprehensive {
		return 0, fmt.Errorf("analysis for %q: unknown shape %q", a.Keyword, a.Shape)
	}

	result, err := db.conn.Exec(
		`INSERT INTO analyses (keyword, shape, llm_analysis, summary, patterns, opportunities,
			table_stakes, pain_points, differentiators, competitive_summary,
			personas, raw_persona_extractions, insider_language, keyword_opportunities,
			total_reviews_analyzed, total_low_reviews_analyzed, total_high_reviews_analyzed, llm_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Keyword, a.Shape, a.LLMAnalysis, a.Summary,
		rawToText(a.Patterns), rawToText(a.Opportunities),
		rawToText(a.TableStakes), rawToText(a.PainPoints),
		rawToText(a.Differentiators), rawToText(a.CompetitiveSummary),
		rawToText(a.Personas), rawToText(a.RawPersonaExtractions),
		rawToText(a.InsiderLanguage), rawToText(a.KeywordOpportunities),
		a.TotalReviewsAnalyzed, a.TotalLowReviewsAnalyzed, a.TotalHighReviewsAnalyzed, a.LLMModel,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting analysis for %q: %w", a.Keyword, err)
	}
	return result.LastInsertId()
}

// SetKeywordOpportunities attaches a keyword-intelligence blob to an
// existing analysis. The ASO run produces this after the fact, so it is the
// one analysis field written outside InsertAnalysis.
func (db *DB) SetKeywordOpportunities(id int64, opportunities json.RawMessage) error {
	_, err := db.conn.Exec(
		"UPDATE analyses SET keyword_opportunities = ? WHERE id = ?",
		rawToText(opportunities), id,
	)
	if err != nil {
		return fmt.Errorf("setting keyword opportunities on analysis %d: %w", id, err)
	}
	return nil
}

// LatestAnalysis returns the most recent analysis for a keyword created
// after cutoff, or nil.
func (db *DB) LatestAnalysis(keyword string, cutoff time.Time) (*Analysis, error) {
	row := db.conn.QueryRow(
		analysisSelect+" WHERE keyword = ? AND created_at > ? ORDER BY created_at DESC LIMIT 1",
		keyword, formatTime(cutoff),
	)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAnalysisByID returns a single analysis, or nil if absent.
func (db *DB) GetAnalysisByID(id int64) (*Analysis, error) {
	row := db.conn.QueryRow(analysisSelect+" WHERE id = ?", id)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAnalysesForKeyword returns up to limit analyses for a keyword, newest first.
func (db *DB) GetAnalysesForKeyword(keyword string, limit int) ([]Analysis, error) {
	rows, err := db.conn.Query(
		analysisSelect+" WHERE keyword = ? ORDER BY created_at DESC LIMIT ?",
		keyword, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, rows.Err()
}

// KeywordSummary is one keyword's row on the browse index.
type KeywordSummary struct {
	Keyword   string
	Analyses  int
	Apps      int
	LastRunAt time.Time
}

// KeywordSummaries returns every analyzed keyword with counts, most recently
// analyzed first.
func (db *DB) KeywordSummaries() ([]KeywordSummary, error) {
	rows, err := db.conn.Query(
		`SELECT keyword, COUNT(*), MAX(created_at),
			(SELECT COUNT(*) FROM apps WHERE apps.keyword = analyses.keyword)
		FROM analyses GROUP BY keyword ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []KeywordSummary
	for rows.Next() {
		var s KeywordSummary
		var lastRun *string
		if err := rows.Scan(&s.Keyword, &s.Analyses, &lastRun, &s.Apps); err != nil {
			return nil, err
		}
		s.LastRunAt = parseTimestamp(lastRun)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

const analysisSelect = `SELECT id, keyword, shape, llm_analysis, summary, patterns, opportunities,
	table_stakes, pain_points, differentiators, competitive_summary,
	personas, raw_persona_extractions, insider_language, keyword_opportunities,
	total_reviews_analyzed, total_low_reviews_analyzed, total_high_reviews_analyzed,
	llm_model, created_at FROM analyses`

func scanAnalysis(s rowScanner) (*Analysis, error) {
	var a Analysis
	var llmAnalysis *string
	var patterns, opportunities, tableStakes, painPoints, differentiators *string
	var competitiveSummary, personas, rawExtractions, insiderLanguage, keywordOpps *string
	var createdAt *string
	err := s.Scan(
		&a.ID, &a.Keyword, &a.Shape, &llmAnalysis, &a.Summary, &patterns, &opportunities,
		&tableStakes, &painPoints, &differentiators, &competitiveSummary,
		&personas, &rawExtractions, &insiderLanguage, &keywordOpps,
		&a.TotalReviewsAnalyzed, &a.TotalLowReviewsAnalyzed, &a.TotalHighReviewsAnalyzed,
		&a.LLMModel, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if llmAnalysis != nil {
		a.LLMAnalysis = *llmAnalysis
	}
	a.Patterns = textToRaw(patterns)
	a.Opportunities = textToRaw(opportunities)
	a.TableStakes = textToRaw(tableStakes)
	a.PainPoints = textToRaw(painPoints)
	a.Differentiators = textToRaw(differentiators)
	a.CompetitiveSummary = textToRaw(competitiveSummary)
	a.Personas = textToRaw(personas)
	a.RawPersonaExtractions = textToRaw(rawExtractions)
	a.InsiderLanguage = textToRaw(insiderLanguage)
	a.KeywordOpportunities = textToRaw(keywordOpps)
	a.CreatedAt = parseTimestamp(createdAt)
	return &a, nil
}

// rawToText converts a JSON blob to a nullable TEXT column value.
func rawToText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func textToRaw(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	return json.RawMessage(*s)
}
