package database

import (
	"database/sql"
	"fmt"
	"time"
)

// AppListing carries the mutable fields of an App Store search result.
type AppListing struct {
	AppID         string
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
}

// InsertApp creates a new app record for a keyword.
func (db *DB) InsertApp(keyword string, l AppListing) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO apps (app_id, keyword, name, developer, bundle_id, price, currency,
			average_rating, rating_count, version, description, icon_url, search_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.AppID, keyword, l.Name, l.Developer, l.BundleID, l.Price, l.Currency,
		l.AverageRating, l.RatingCount, l.Version, l.Description, l.IconURL, l.SearchRank,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting app %s: %w", l.AppID, err)
	}
	return result.LastInsertId()
}

// UpdateAppListing refreshes the mutable fields of an existing app record.
// Identity and created_at are preserved.
func (db *DB) UpdateAppListing(id int64, l AppListing) error {
	_, err := db.conn.Exec(
		`UPDATE apps SET name = ?, developer = ?, bundle_id = ?, price = ?, currency = ?,
			average_rating = ?, rating_count = ?, version = ?, description = ?, icon_url = ?,
			search_rank = ?, updated_at = datetime('now')
		WHERE id = ?`,
		l.Name, l.Developer, l.BundleID, l.Price, l.Currency,
		l.AverageRating, l.RatingCount, l.Version, l.Description, l.IconURL,
		l.SearchRank, id,
	)
	if err != nil {
		return fmt.Errorf("updating app %d: %w", id, err)
	}
	return nil
}

// GetApp returns the app record for an (app_id, keyword) pair, or nil.
func (db *DB) GetApp(appID, keyword string) (*App, error) {
	row := db.conn.QueryRow(appSelect+" WHERE app_id = ? AND keyword = ?", appID, keyword)
	return scanApp(row)
}

// GetAppByRowID returns an app by its database id, or nil.
func (db *DB) GetAppByRowID(id int64) (*App, error) {
	row := db.conn.QueryRow(appSelect+" WHERE id = ?", id)
	return scanApp(row)
}

// GetAppsForKeyword returns all cached apps for a keyword in search-rank order.
func (db *DB) GetAppsForKeyword(keyword string) ([]App, error) {
	rows, err := db.conn.Query(appSelect+" WHERE keyword = ? ORDER BY search_rank ASC", keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		app, err := scanAppRow(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// CountAppsNewerThan counts cached apps for a keyword created after cutoff.
func (db *DB) CountAppsNewerThan(keyword string, cutoff time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM apps WHERE keyword = ? AND created_at > ?",
		keyword, formatTime(cutoff),
	).Scan(&count)
	return count, err
}

// DeleteAppsForKeyword removes all apps for a keyword. Reviews, screenshot
// analyses and ASO analyses cascade.
func (db *DB) DeleteAppsForKeyword(keyword string) error {
	_, err := db.conn.Exec("DELETE FROM apps WHERE keyword = ?", keyword)
	return err
}

const appSelect = `SELECT id, app_id, keyword, name, developer, bundle_id, price, currency,
	average_rating, rating_count, version, description, icon_url, search_rank,
	created_at, updated_at FROM apps`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppInto(s rowScanner) (*App, error) {
	var app App
	var rank *int
	var createdAt, updatedAt *string
	err := s.Scan(
		&app.ID, &app.AppID, &app.Keyword, &app.Name, &app.Developer, &app.BundleID,
		&app.Price, &app.Currency, &app.AverageRating, &app.RatingCount, &app.Version,
		&app.Description, &app.IconURL, &rank, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rank != nil {
		app.SearchRank = *rank
	}
	app.CreatedAt = parseTimestamp(createdAt)
	app.UpdatedAt = parseTimestamp(updatedAt)
	return &app, nil
}

func scanApp(row *sql.Row) (*App, error) {
	app, err := scanAppInto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return app, err
}

func scanAppRow(rows *sql.Rows) (*App, error) {
	return scanAppInto(rows)
}
