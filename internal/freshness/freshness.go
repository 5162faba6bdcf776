// Package freshness holds the cache-validity policy: pure, total decision
// functions over artifact timestamps and data drift. Nothing here touches
// the network or the database.
package freshness

import (
	"time"

	"github.com/clayton/appintel/internal/config"
)

// Policy carries the configured TTLs and drift thresholds.
type Policy struct {
	AppListTTL             time.Duration
	ReviewTTL              time.Duration
	AnalysisTTL            time.Duration
	ScreenshotTTL          time.Duration
	AsoTTL                 time.Duration
	ReviewDriftPercent     float64
	CompetitorDriftPercent float64
}

// FromConfig builds a Policy from the config freshness block.
func FromConfig(cfg config.Freshness) Policy {
	day := 24 * time.Hour
	return Policy{
		AppListTTL:             time.Duration(cfg.AppListTTLDays) * day,
		ReviewTTL:              time.Duration(cfg.ReviewTTLDays) * day,
		AnalysisTTL:            time.Duration(cfg.AnalysisTTLDays) * day,
		ScreenshotTTL:          time.Duration(cfg.ScreenshotTTLDays) * day,
		AsoTTL:                 time.Duration(cfg.AsoTTLDays) * day,
		ReviewDriftPercent:     cfg.ReviewDriftPercent,
		CompetitorDriftPercent: cfg.CompetitorDriftPct,
	}
}

// IsStale reports whether an artifact created at createdAt has outlived ttl.
func IsStale(createdAt, now time.Time, ttl time.Duration) bool {
	return createdAt.Before(now.Add(-ttl))
}

// AppListCutoff returns the creation-time threshold for a reusable app list.
func (p Policy) AppListCutoff(now time.Time) time.Time {
	return now.Add(-p.AppListTTL)
}

// AppListFresh reports whether enough recent app records exist to skip a new
// catalog search. Freshness is "do we have enough recent records", not "is
// the newest one recent": a partially aged list forces a refetch.
func (p Policy) AppListFresh(recentCount, wanted int) bool {
	return recentCount >= wanted
}

// ReviewsStale reports whether an app's cached reviews need refetching.
// latest is the creation time of the newest cached review, nil when none
// exist yet.
func (p Policy) ReviewsStale(latest *time.Time, now time.Time) bool {
	if latest == nil {
		return true
	}
	return IsStale(*latest, now, p.ReviewTTL)
}

// DriftPercent returns the relative change between a stored baseline count
// and the current count, in percent. A stored baseline of zero reads as
// full drift: with no baseline there is nothing to validate a cache against.
func DriftPercent(stored, current int) float64 {
	if stored == 0 {
		return 100
	}
	diff := current - stored
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(stored) * 100
}

// AnalysisCountsDrifted reports whether either rating band's review count
// moved past the drift threshold relative to the stored analysis.
func (p Policy) AnalysisCountsDrifted(storedLow, storedHigh, currentLow, currentHigh int) bool {
	return DriftPercent(storedLow, currentLow) > p.ReviewDriftPercent ||
		DriftPercent(storedHigh, currentHigh) > p.ReviewDriftPercent
}

// SimpleAnalysisDrifted is the single-band variant used for analyses that
// predate the low/high split.
func (p Policy) SimpleAnalysisDrifted(storedTotal, currentTotal int) bool {
	return DriftPercent(storedTotal, currentTotal) > p.ReviewDriftPercent
}

// ScreenshotStale reports whether a screenshot analysis is too old to reuse.
// Screenshots change rarely and re-scraping is loud, so this is purely
// time-based.
func (p Policy) ScreenshotStale(createdAt, now time.Time) bool {
	return IsStale(createdAt, now, p.ScreenshotTTL)
}

// CompetitorsDrifted reports whether the competitor set size moved past the
// drift threshold. A stored count of zero is always reusable: zero
// competitors admits no meaningful comparison, and treating it as drifted
// would refresh forever when no competitor data was ever available.
func (p Policy) CompetitorsDrifted(stored, current int) bool {
	if stored == 0 {
		return false
	}
	return DriftPercent(stored, current) > p.CompetitorDriftPercent
}

// AsoStale combines the ASO time and competitor-drift rules.
func (p Policy) AsoStale(createdAt, now time.Time, storedCompetitors, currentCompetitors int) bool {
	if IsStale(createdAt, now, p.AsoTTL) {
		return true
	}
	return p.CompetitorsDrifted(storedCompetitors, currentCompetitors)
}
