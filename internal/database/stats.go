package database

// GetStats returns aggregate counts across all tables.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM apps", &stats.Apps},
		{"SELECT COUNT(DISTINCT keyword) FROM apps", &stats.Keywords},
		{"SELECT COUNT(*) FROM reviews", &stats.Reviews},
		{"SELECT COUNT(*) FROM reviews WHERE rating <= 2", &stats.LowReviews},
		{"SELECT COUNT(*) FROM reviews WHERE rating >= 4", &stats.HighReviews},
		{"SELECT COUNT(*) FROM analyses", &stats.Analyses},
		{"SELECT COUNT(*) FROM screenshot_analyses", &stats.ScreenshotAnalyses},
		{"SELECT COUNT(*) FROM aso_analyses", &stats.AsoAnalyses},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return stats, nil
}
