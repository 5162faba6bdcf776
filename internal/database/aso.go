package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertAsoAnalysis appends an ASO analysis for an (app, keyword) pair.
func (db *DB) InsertAsoAnalysis(a AsoAnalysis) (int64, error) {
	if a.CompetitorCount <= 0 {
		return 0, fmt.Errorf("aso analysis for app %d: competitor count must be positive", a.AppRowID)
	}

	ids, err := json.Marshal(a.CompetitorAppIDs)
	if err != nil {
		return 0, fmt.Errorf("marshaling competitor ids: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO aso_analyses (app_id, keyword, competitor_count, competitor_app_ids,
			llm_analysis, recommendations, llm_model)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.AppRowID, a.Keyword, a.CompetitorCount, string(ids),
		a.LLMAnalysis, rawToText(a.Recommendations), a.LLMModel,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting aso analysis: %w", err)
	}
	return result.LastInsertId()
}

// LatestAsoAnalysis returns the newest ASO analysis for an (app, keyword)
// pair created after cutoff, or nil.
func (db *DB) LatestAsoAnalysis(appRowID int64, keyword string, cutoff time.Time) (*AsoAnalysis, error) {
	row := db.conn.QueryRow(
		asoSelect+` WHERE app_id = ? AND keyword = ? AND created_at > ?
		ORDER BY created_at DESC LIMIT 1`,
		appRowID, keyword, formatTime(cutoff),
	)
	a, err := scanAso(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAsoAnalysesForKeyword returns up to limit ASO analyses for a keyword,
// newest first, across all apps.
func (db *DB) GetAsoAnalysesForKeyword(keyword string, limit int) ([]AsoAnalysis, error) {
	rows, err := db.conn.Query(
		asoSelect+" WHERE keyword = ? ORDER BY created_at DESC LIMIT ?",
		keyword, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []AsoAnalysis
	for rows.Next() {
		a, err := scanAso(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, rows.Err()
}

const asoSelect = `SELECT id, app_id, keyword, competitor_count, competitor_app_ids,
	llm_analysis, recommendations, llm_model, created_at FROM aso_analyses`

func scanAso(s rowScanner) (*AsoAnalysis, error) {
	var a AsoAnalysis
	var ids, llmAnalysis, recommendations, createdAt *string
	err := s.Scan(
		&a.ID, &a.AppRowID, &a.Keyword, &a.CompetitorCount, &ids,
		&llmAnalysis, &recommendations, &a.LLMModel, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if ids != nil {
		_ = json.Unmarshal([]byte(*ids), &a.CompetitorAppIDs)
	}
	if llmAnalysis != nil {
		a.LLMAnalysis = *llmAnalysis
	}
	a.Recommendations = textToRaw(recommendations)
	a.CreatedAt = parseTimestamp(createdAt)
	return &a, nil
}
