package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Rating bands. Three-star reviews are deliberately never collected, so no
// band covers them.
var (
	lowBand  = [2]int{1, 2}
	highBand = [2]int{4, 5}
)

// ReviewRecord carries a fetched review before persistence.
type ReviewRecord struct {
	ReviewID    string
	Author      *string
	Title       *string
	Content     *string
	Rating      int
	Version     *string
	PublishedAt *string
}

// UpsertReview inserts a review or refreshes an existing one by review_id.
// Returns true if a new row was created.
func (db *DB) UpsertReview(appRowID int64, r ReviewRecord) (bool, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return false, fmt.Errorf("review %s: rating %d out of range", r.ReviewID, r.Rating)
	}

	var existing int64
	err := db.conn.QueryRow("SELECT id FROM reviews WHERE review_id = ?", r.ReviewID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.conn.Exec(
			`INSERT INTO reviews (app_id, review_id, author, title, content, rating, version, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			appRowID, r.ReviewID, r.Author, r.Title, r.Content, r.Rating, r.Version, r.PublishedAt,
		)
		if err != nil {
			return false, fmt.Errorf("inserting review %s: %w", r.ReviewID, err)
		}
		return true, nil
	case err != nil:
		return false, err
	default:
		_, err = db.conn.Exec(
			`UPDATE reviews SET app_id = ?, author = ?, title = ?, content = ?, rating = ?, version = ?, published_at = ?
			WHERE id = ?`,
			appRowID, r.Author, r.Title, r.Content, r.Rating, r.Version, r.PublishedAt, existing,
		)
		if err != nil {
			return false, fmt.Errorf("updating review %s: %w", r.ReviewID, err)
		}
		return false, nil
	}
}

// GetLowReviewsForApp returns the cached 1-2 star reviews for an app.
func (db *DB) GetLowReviewsForApp(appRowID int64) ([]Review, error) {
	return db.reviewsForApp(appRowID, lowBand)
}

// GetHighReviewsForApp returns the cached 4-5 star reviews for an app.
func (db *DB) GetHighReviewsForApp(appRowID int64) ([]Review, error) {
	return db.reviewsForApp(appRowID, highBand)
}

func (db *DB) reviewsForApp(appRowID int64, band [2]int) ([]Review, error) {
	rows, err := db.conn.Query(
		reviewSelect+" WHERE app_id = ? AND rating IN (?, ?) ORDER BY published_at DESC",
		appRowID, band[0], band[1],
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

// LatestReviewTime returns the creation time of the most recently cached
// review for an app, or nil if none exist.
func (db *DB) LatestReviewTime(appRowID int64) (*time.Time, error) {
	var latest *string
	err := db.conn.QueryRow(
		"SELECT MAX(created_at) FROM reviews WHERE app_id = ?", appRowID,
	).Scan(&latest)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	t := parseTimestamp(latest)
	return &t, nil
}

// CountLowReviewsForApp counts cached 1-2 star reviews for an app.
func (db *DB) CountLowReviewsForApp(appRowID int64) (int, error) {
	return db.countReviews(appRowID, lowBand)
}

func (db *DB) countReviews(appRowID int64, band [2]int) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM reviews WHERE app_id = ? AND rating IN (?, ?)",
		appRowID, band[0], band[1],
	).Scan(&count)
	return count, err
}

const reviewSelect = `SELECT id, app_id, review_id, author, title, content, rating, version,
	published_at, created_at FROM reviews`

func scanReviews(rows *sql.Rows) ([]Review, error) {
	var reviews []Review
	for rows.Next() {
		var r Review
		var createdAt *string
		err := rows.Scan(
			&r.ID, &r.AppRowID, &r.ReviewID, &r.Author, &r.Title, &r.Content,
			&r.Rating, &r.Version, &r.PublishedAt, &createdAt,
		)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = parseTimestamp(createdAt)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
