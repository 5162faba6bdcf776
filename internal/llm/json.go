package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StripCodeFences removes markdown code fences around a response body.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	text = regexp.MustCompile("```json\\s*").ReplaceAllString(text, "")
	text = regexp.MustCompile("```\\s*").ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractJSONObject returns the first balanced {...} object embedded in
// text, after stripping code fences. LLM responses routinely wrap JSON in
// prose, so this scans rather than unmarshaling the whole payload.
func ExtractJSONObject(text string) (string, bool) {
	text = StripCodeFences(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	// Unbalanced: fall back to the outermost span, which json.Unmarshal
	// will reject but callers may still want to inspect.
	end := strings.LastIndexByte(text, '}')
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseJSONResponse extracts and parses the first JSON object in an LLM
// response. Returns nil when no parseable object is present; never errors.
func ParseJSONResponse(text string) map[string]any {
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return nil
	}
	return result
}

var summaryPattern = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ExtractSummary pulls the "summary" value out of raw text with a direct
// regex match. This is the recovery path for stored analyses whose embedded
// JSON no longer parses as a whole.
func ExtractSummary(text string) (string, bool) {
	m := summaryPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return unescapeJSONString(m[1]), true
}

func unescapeJSONString(s string) string {
	// Let the JSON decoder handle the escape sequences.
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		// Malformed escapes: degrade to dropping backslashes.
		return strings.ReplaceAll(s, `\`, "")
	}
	return out
}
