package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/clayton/appintel/internal/config"
	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/llm"
	"github.com/clayton/appintel/internal/personas"
)

type mockProvider struct {
	response string
	err      error
	lastReq  llm.Request
}

func (m *mockProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockProvider) IsConfigured() bool { return true }

const comprehensiveResponse = "```json\n" + `{
  "summary": "Crowded space with weak offline support.",
  "table_stakes": [
    {"feature": "Streak tracking", "description": "Expected everywhere", "evidence": "mentioned often"}
  ],
  "pain_points": [
    {"category": "Sync", "description": "Data loss across devices", "frequency": "common"}
  ],
  "differentiators": [
    {"opportunity": "Offline-first", "description": "Work without a connection", "rationale": "top complaint"}
  ],
  "competitive_summary": {
    "top_3_table_stakes": ["Streaks", "Reminders", "Widgets"],
    "top_3_differentiators": ["Offline", "Privacy", "Export"]
  }
}` + "\n```"

func str(s string) *string { return &s }

func makeReviews(band int, n int) []database.Review {
	var reviews []database.Review
	for i := 0; i < n; i++ {
		reviews = append(reviews, database.Review{
			AppRowID: 1,
			Rating:   band,
			Title:    str("title"),
			Content:  str("content of the review"),
		})
	}
	return reviews
}

func testAssembler(p llm.Provider) *Assembler {
	return New(p, config.Default().LLM)
}

func TestAnalyzeComprehensive(t *testing.T) {
	provider := &mockProvider{response: comprehensiveResponse}
	a := testAssembler(provider)

	low := makeReviews(1, 5)
	high := makeReviews(5, 7)
	names := map[int64]string{1: "Habit Hero"}

	result, err := a.AnalyzeComprehensive(context.Background(), "habit tracker", low, high, names, "")
	if err != nil {
		t.Fatalf("AnalyzeComprehensive: %v", err)
	}

	if result.Summary != "Crowded space with weak offline support." {
		t.Errorf("summary = %q", result.Summary)
	}
	if len(result.TableStakes) != 1 || result.TableStakes[0].Feature != "Streak tracking" {
		t.Errorf("table stakes = %+v", result.TableStakes)
	}
	if len(result.PainPoints) != 1 || len(result.Differentiators) != 1 {
		t.Errorf("pain points/differentiators = %d/%d", len(result.PainPoints), len(result.Differentiators))
	}
	if len(result.CompetitiveSummary.TopTableStakes) != 3 {
		t.Errorf("competitive summary = %+v", result.CompetitiveSummary)
	}
	if result.TotalLowReviews != 5 || result.TotalHighReviews != 7 {
		t.Errorf("totals = %d/%d", result.TotalLowReviews, result.TotalHighReviews)
	}
	if result.Model != config.Default().LLM.Model {
		t.Errorf("model = %q, want configured default", result.Model)
	}

	if !strings.Contains(provider.lastReq.User, "Habit Hero") {
		t.Error("prompt should name the app")
	}
	if !strings.Contains(provider.lastReq.User, `"habit tracker"`) {
		t.Error("prompt should quote the keyword")
	}
}

func TestAnalyzeComprehensiveNoReviews(t *testing.T) {
	a := testAssembler(&mockProvider{})
	if _, err := a.AnalyzeComprehensive(context.Background(), "x", nil, nil, nil, ""); err == nil {
		t.Fatal("expected error with no reviews")
	}
}

func TestAnalyzeComprehensiveProviderError(t *testing.T) {
	a := testAssembler(&mockProvider{err: errors.New("rate limited")})
	_, err := a.AnalyzeComprehensive(context.Background(), "x", makeReviews(1, 1), nil, nil, "")
	if err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestAssembleComprehensiveMalformed(t *testing.T) {
	raw := "The model refused to answer in JSON today."
	result := AssembleComprehensive(raw, 3, 4, "test-model")

	if result.LLMAnalysis != raw {
		t.Errorf("raw text should be preserved")
	}
	if len(result.TableStakes) != 0 || len(result.PainPoints) != 0 || len(result.Differentiators) != 0 {
		t.Errorf("malformed response should yield empty structures: %+v", result)
	}
	if result.Summary != "" {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.TotalLowReviews != 3 || result.TotalHighReviews != 4 {
		t.Errorf("totals = %d/%d", result.TotalLowReviews, result.TotalHighReviews)
	}
}

func TestAssembleSimple(t *testing.T) {
	raw := `{"summary": "S", "patterns": [{"category": "Crashes", "description": "d"}],
		"opportunities": [{"title": "Stability", "description": "d", "priority": "high"}]}`
	result := AssembleSimple(raw, 9, "m")

	if result.Summary != "S" || len(result.Patterns) != 1 || len(result.Opportunities) != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.Opportunities[0].Priority != "high" {
		t.Errorf("priority = %q", result.Opportunities[0].Priority)
	}
	if result.TotalReviews != 9 {
		t.Errorf("total = %d", result.TotalReviews)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	fresh := AssembleComprehensive(comprehensiveResponse, 5, 7, "test-model")
	fresh.Personas = EmptyPersonas
	fresh.InsiderLanguage = EmptyInsiderLanguage

	rec := ToRecord("habit tracker", fresh)
	if rec.Shape != database.ShapeComprehensive {
		t.Errorf("shape = %q", rec.Shape)
	}
	if rec.TotalReviewsAnalyzed != 12 {
		t.Errorf("total = %d, want 12", rec.TotalReviewsAnalyzed)
	}

	rebuilt := AssembleFromRecord(&rec)
	if rebuilt.Summary != fresh.Summary {
		t.Errorf("summary = %q, want %q", rebuilt.Summary, fresh.Summary)
	}
	if len(rebuilt.TableStakes) != len(fresh.TableStakes) ||
		rebuilt.TableStakes[0] != fresh.TableStakes[0] {
		t.Errorf("table stakes = %+v", rebuilt.TableStakes)
	}
	if rebuilt.TotalLowReviews != 5 || rebuilt.TotalHighReviews != 7 {
		t.Errorf("totals = %d/%d", rebuilt.TotalLowReviews, rebuilt.TotalHighReviews)
	}
	if rebuilt.CompetitiveSummary.Empty() {
		t.Error("competitive summary lost in round trip")
	}
}

func TestAssembleFromRecordLegacySimple(t *testing.T) {
	// A simple-shape record has patterns/opportunities columns only.
	rec := database.Analysis{
		Keyword:     "habit tracker",
		Shape:       database.ShapeSimple,
		LLMAnalysis: "no json here",
		Patterns:    json.RawMessage(`[{"category": "Sync", "description": "d", "frequency": "common"}]`),
		Opportunities: json.RawMessage(
			`[{"title": "Offline mode", "description": "d", "priority": "high"}]`),
		Summary: str("Stored summary"),
	}

	result := AssembleFromRecord(&rec)
	if result.Summary != "Stored summary" {
		t.Errorf("summary = %q", result.Summary)
	}
	if len(result.PainPoints) != 1 || result.PainPoints[0].Category != "Sync" {
		t.Errorf("patterns should surface as pain points: %+v", result.PainPoints)
	}
	if len(result.Differentiators) != 1 || result.Differentiators[0].Opportunity != "Offline mode" {
		t.Errorf("opportunities should surface as differentiators: %+v", result.Differentiators)
	}
	if result.TotalLowReviews != 0 || result.TotalHighReviews != 0 {
		t.Errorf("legacy totals should default to zero")
	}
}

func TestAssembleFromRecordSummaryRegexFallback(t *testing.T) {
	// Raw text whose JSON is truncated beyond repair but still carries a
	// summary field.
	rec := database.Analysis{
		LLMAnalysis: `{"summary": "Recovered \"summary\" text", "table_stakes": [`,
	}
	result := AssembleFromRecord(&rec)
	if result.Summary != `Recovered "summary" text` {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestNormalizePersonas(t *testing.T) {
	provider := &mockProvider{response: `{"personas": [
		{"name": "Busy parent", "description": "d", "phrases": ["busy mom"], "total_mentions": 4}
	]}`}
	a := testAssembler(provider)

	raw, err := a.NormalizePersonas(context.Background(), "habit tracker",
		[]personas.Phrase{{Phrase: "busy mom", Count: 4}}, "")
	if err != nil {
		t.Fatalf("NormalizePersonas: %v", err)
	}

	var parsed struct {
		Personas []PersonaGroup `json:"personas"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parsed.Personas) != 1 || parsed.Personas[0].Name != "Busy parent" {
		t.Errorf("personas = %+v", parsed.Personas)
	}
	if !strings.Contains(provider.lastReq.User, "busy mom") {
		t.Error("prompt should include the raw phrase")
	}
}

func TestNormalizePersonasDegrades(t *testing.T) {
	a := testAssembler(&mockProvider{response: "not json"})
	raw, err := a.NormalizePersonas(context.Background(), "x",
		[]personas.Phrase{{Phrase: "p", Count: 1}}, "")
	if err != nil {
		t.Fatalf("NormalizePersonas: %v", err)
	}
	if string(raw) != string(EmptyPersonas) {
		t.Errorf("raw = %s, want empty structure", raw)
	}
}

func TestAnalyzeInsiderLanguage(t *testing.T) {
	provider := &mockProvider{response: `{"terms": [
		{"term": "streak freeze", "meaning": "skip a day without losing progress", "frequency": "common"}
	], "maturity": "well developed"}`}
	a := testAssembler(provider)

	raw, err := a.AnalyzeInsiderLanguage(context.Background(), "habit tracker", makeReviews(5, 2), "")
	if err != nil {
		t.Fatalf("AnalyzeInsiderLanguage: %v", err)
	}

	var parsed InsiderLanguage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parsed.Terms) != 1 || parsed.Terms[0].Term != "streak freeze" {
		t.Errorf("terms = %+v", parsed.Terms)
	}
}

func TestAnalyzeInsiderLanguageEmptyCorpus(t *testing.T) {
	a := testAssembler(&mockProvider{})
	raw, err := a.AnalyzeInsiderLanguage(context.Background(), "x", nil, "")
	if err != nil {
		t.Fatalf("AnalyzeInsiderLanguage: %v", err)
	}
	if string(raw) != string(EmptyInsiderLanguage) {
		t.Errorf("raw = %s", raw)
	}
}

func TestReviewsBlockTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	reviews := []database.Review{{AppRowID: 1, Rating: 1, Title: str("t"), Content: &long}}
	block := reviewsBlock(reviews, map[int64]string{1: "App"}, 30)

	if strings.Contains(block, long) {
		t.Error("long content should be truncated")
	}
	if !strings.Contains(block, "...") {
		t.Error("truncation marker missing")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("日", maxReviewContentLen+10)
	got := truncate(long, maxReviewContentLen)
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if want := strings.Repeat("日", maxReviewContentLen) + "..."; got != want {
		t.Errorf("truncated %d runes, want %d", len([]rune(got)), maxReviewContentLen+3)
	}
}
