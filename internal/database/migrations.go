package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS apps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id TEXT NOT NULL,
    keyword TEXT NOT NULL,
    name TEXT NOT NULL,
    developer TEXT,
    bundle_id TEXT,
    price REAL,
    currency TEXT,
    average_rating REAL,
    rating_count INTEGER,
    version TEXT,
    description TEXT,
    icon_url TEXT,
    search_rank INTEGER,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now')),
    UNIQUE (app_id, keyword)
);

CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id INTEGER NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
    review_id TEXT UNIQUE NOT NULL,
    author TEXT,
    title TEXT,
    content TEXT,
    rating INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 5),
    version TEXT,
    published_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword TEXT NOT NULL,
    shape TEXT NOT NULL CHECK(shape IN ('simple', 'comprehensive')),
    llm_analysis TEXT,
    summary TEXT,
    patterns TEXT,
    opportunities TEXT,
    table_stakes TEXT,
    pain_points TEXT,
    differentiators TEXT,
    competitive_summary TEXT,
    personas TEXT,
    raw_persona_extractions TEXT,
    insider_language TEXT,
    keyword_opportunities TEXT,
    total_reviews_analyzed INTEGER DEFAULT 0,
    total_low_reviews_analyzed INTEGER DEFAULT 0,
    total_high_reviews_analyzed INTEGER DEFAULT 0,
    llm_model TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS screenshot_analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id INTEGER NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
    screenshot_count INTEGER NOT NULL,
    analysis TEXT NOT NULL,
    screenshot_urls TEXT,
    llm_model TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS aso_analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id INTEGER NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
    keyword TEXT NOT NULL,
    competitor_count INTEGER NOT NULL,
    competitor_app_ids TEXT,
    llm_analysis TEXT,
    recommendations TEXT,
    llm_model TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_apps_keyword ON apps(keyword);
CREATE INDEX IF NOT EXISTS idx_apps_app_id ON apps(app_id);
CREATE INDEX IF NOT EXISTS idx_reviews_app ON reviews(app_id);
CREATE INDEX IF NOT EXISTS idx_reviews_rating ON reviews(rating);
CREATE INDEX IF NOT EXISTS idx_analyses_keyword ON analyses(keyword);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_screenshot_analyses_app ON screenshot_analyses(app_id);
CREATE INDEX IF NOT EXISTS idx_aso_analyses_app_keyword ON aso_analyses(app_id, keyword);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
