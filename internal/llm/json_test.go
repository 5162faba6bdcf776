package llm

import "testing"

func TestExtractJSONObjectPlain(t *testing.T) {
	obj, ok := ExtractJSONObject(`{"summary": "S"}`)
	if !ok {
		t.Fatal("expected object to be found")
	}
	if obj != `{"summary": "S"}` {
		t.Errorf("unexpected object: %s", obj)
	}
}

func TestExtractJSONObjectWithProseAndFences(t *testing.T) {
	text := "Here is the analysis:\n```json\n{\"summary\": \"S\", \"nested\": {\"a\": 1}}\n```\nHope that helps!"
	obj, ok := ExtractJSONObject(text)
	if !ok {
		t.Fatal("expected object to be found")
	}
	if obj != `{"summary": "S", "nested": {"a": 1}}` {
		t.Errorf("unexpected object: %s", obj)
	}
}

func TestExtractJSONObjectBracesInStrings(t *testing.T) {
	text := `preamble {"note": "braces } inside { strings", "x": 2} trailer`
	obj, ok := ExtractJSONObject(text)
	if !ok {
		t.Fatal("expected object to be found")
	}
	parsed := ParseJSONResponse(obj)
	if parsed == nil || parsed["x"] != float64(2) {
		t.Errorf("expected parseable object, got %v", parsed)
	}
}

func TestExtractJSONObjectNone(t *testing.T) {
	if _, ok := ExtractJSONObject("no json here at all"); ok {
		t.Error("expected no object in plain prose")
	}
}

func TestParseJSONResponseMalformed(t *testing.T) {
	if got := ParseJSONResponse(`{"summary": `); got != nil {
		t.Errorf("expected nil for truncated JSON, got %v", got)
	}
	if got := ParseJSONResponse(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestExtractSummary(t *testing.T) {
	text := `garbage before "summary": "Apps compete on \"calm\" branding" garbage after`
	summary, ok := ExtractSummary(text)
	if !ok {
		t.Fatal("expected summary to be extracted")
	}
	if summary != `Apps compete on "calm" branding` {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestExtractSummaryAbsent(t *testing.T) {
	if _, ok := ExtractSummary("nothing to see"); ok {
		t.Error("expected no summary match")
	}
}
