package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clayton/appintel/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func seedAnalysis(t *testing.T, db *database.DB, keyword string) int64 {
	t.Helper()
	db.InsertApp(keyword, database.AppListing{
		AppID:      "111",
		Name:       "Habit Hero",
		Developer:  ptr("Hero Labs"),
		SearchRank: 1,
	})
	id, err := db.InsertAnalysis(database.Analysis{
		Keyword:     keyword,
		Shape:       database.ShapeComprehensive,
		LLMAnalysis: "{}",
		Summary:     ptr("Crowded market with weak free tiers."),
		TableStakes: json.RawMessage(`[
			{"feature": "Streak tracking", "description": "Daily streaks"}
		]`),
		TotalReviewsAnalyzed:     12,
		TotalLowReviewsAnalyzed:  8,
		TotalHighReviewsAnalyzed: 4,
		LLMModel:                 ptr("google/gemini-2.5-pro"),
	})
	if err != nil {
		t.Fatalf("failed to seed analysis: %v", err)
	}
	return id
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seedAnalysis(t, db, "habit tracker")

	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "habit tracker") {
		t.Error("expected keyword in index")
	}
	if !strings.Contains(body, `href="/keyword/habit%20tracker"`) {
		t.Error("expected keyword link in index")
	}
}

func TestIndexEmpty(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No analyses yet") {
		t.Error("expected empty-state message")
	}
}

func TestKeywordRoute(t *testing.T) {
	db := openTestDB(t)
	seedAnalysis(t, db, "habit tracker")

	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/keyword/habit%20tracker", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "comprehensive") {
		t.Error("expected analysis shape in listing")
	}
	if !strings.Contains(body, "Habit Hero") {
		t.Error("expected cached app in listing")
	}
	if !strings.Contains(body, "Hero Labs") {
		t.Error("expected developer name in listing")
	}
}

func TestAnalysisRoute(t *testing.T) {
	db := openTestDB(t)
	id := seedAnalysis(t, db, "habit tracker")

	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", fmt.Sprintf("/analysis/%d", id), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Crowded market with weak free tiers.") {
		t.Error("expected summary in rendered report")
	}
	if !strings.Contains(body, "<strong>Streak tracking</strong>") {
		t.Error("expected markdown rendered to HTML")
	}
}

func TestAnalysisNotFound(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/analysis/999", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "--accent") {
		t.Error("expected CSS content")
	}
}
