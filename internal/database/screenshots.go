package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertScreenshotAnalysis appends a screenshot analysis for an app.
func (db *DB) InsertScreenshotAnalysis(a ScreenshotAnalysis) (int64, error) {
	if a.ScreenshotCount <= 0 {
		return 0, fmt.Errorf("screenshot analysis for app %d: count must be positive", a.AppRowID)
	}

	urls, err := json.Marshal(a.ScreenshotURLs)
	if err != nil {
		return 0, fmt.Errorf("marshaling screenshot urls: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO screenshot_analyses (app_id, screenshot_count, analysis, screenshot_urls, llm_model)
		VALUES (?, ?, ?, ?, ?)`,
		a.AppRowID, a.ScreenshotCount, a.Analysis, string(urls), a.LLMModel,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting screenshot analysis: %w", err)
	}
	return result.LastInsertId()
}

// LatestScreenshotAnalysis returns the newest screenshot analysis for an app
// created after cutoff, or nil.
func (db *DB) LatestScreenshotAnalysis(appRowID int64, cutoff time.Time) (*ScreenshotAnalysis, error) {
	row := db.conn.QueryRow(
		`SELECT id, app_id, screenshot_count, analysis, screenshot_urls, llm_model, created_at
		FROM screenshot_analyses WHERE app_id = ? AND created_at > ?
		ORDER BY created_at DESC LIMIT 1`,
		appRowID, formatTime(cutoff),
	)

	var a ScreenshotAnalysis
	var urls, createdAt *string
	err := row.Scan(&a.ID, &a.AppRowID, &a.ScreenshotCount, &a.Analysis, &urls, &a.LLMModel, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if urls != nil {
		// Tolerate malformed stored JSON; the analysis text is still usable.
		_ = json.Unmarshal([]byte(*urls), &a.ScreenshotURLs)
	}
	a.CreatedAt = parseTimestamp(createdAt)
	return &a, nil
}

// GetScreenshotAnalysesForApp returns up to limit analyses for an app, newest first.
func (db *DB) GetScreenshotAnalysesForApp(appRowID int64, limit int) ([]ScreenshotAnalysis, error) {
	rows, err := db.conn.Query(
		`SELECT id, app_id, screenshot_count, analysis, screenshot_urls, llm_model, created_at
		FROM screenshot_analyses WHERE app_id = ? ORDER BY created_at DESC LIMIT ?`,
		appRowID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []ScreenshotAnalysis
	for rows.Next() {
		var a ScreenshotAnalysis
		var urls, createdAt *string
		if err := rows.Scan(&a.ID, &a.AppRowID, &a.ScreenshotCount, &a.Analysis, &urls, &a.LLMModel, &createdAt); err != nil {
			return nil, err
		}
		if urls != nil {
			_ = json.Unmarshal([]byte(*urls), &a.ScreenshotURLs)
		}
		a.CreatedAt = parseTimestamp(createdAt)
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
