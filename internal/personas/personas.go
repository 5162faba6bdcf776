// Package personas mines review text for self-identifying phrases
// ("as a busy mom", "I'm a teacher") ahead of LLM persona grouping.
package personas

import (
	"regexp"
	"sort"
	"strings"

	"github.com/clayton/appintel/internal/database"
)

// Patterns capture the common self-identification constructs. Each capture
// is bounded to 3-60 characters and terminated at sentence punctuation or a
// small set of continuation words so it does not run into the next clause.
// Go's RE2 has no lookahead, so the terminator is consumed rather than
// peeked; end-of-text also terminates a capture.
var personaPatterns = []*regexp.Regexp{
	// "as a ___"
	regexp.MustCompile(`(?i)\bas\s+a\s+([^,.!?]{3,50}?)(?:[,.!?]|\s+(?:i|who|and|this|the|it)\b|$)`),

	// "I'm a ___" / "I am a ___"
	regexp.MustCompile(`(?i)\bi(?:'m|\s+am)\s+a\s+([^,.!?]{3,50}?)(?:[,.!?]|\s+(?:and|who|so|that|this)\b|$)`),

	// "being a ___"
	regexp.MustCompile(`(?i)\bbeing\s+a\s+([^,.!?]{3,50}?)(?:[,.!?]|\s+(?:i|this|and|it)\b|$)`),

	// "as someone who ___"
	regexp.MustCompile(`(?i)\bas\s+someone\s+who\s+([^,.!?]{5,60}?)(?:[,.!?]|$)`),
}

// exclusions are grammatical false positives from the same templates
// ("as a result", "as a matter of fact") that are not personas.
var exclusions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^result`),
	regexp.MustCompile(`(?i)^matter\s+of`),
	regexp.MustCompile(`(?i)^whole`),
	regexp.MustCompile(`(?i)^way\s+to`),
	regexp.MustCompile(`(?i)^bonus`),
	regexp.MustCompile(`(?i)^gift`),
	regexp.MustCompile(`(?i)^treat`),
	regexp.MustCompile(`(?i)^surprise`),
	regexp.MustCompile(`(?i)^reminder`),
	regexp.MustCompile(`(?i)^reference`),
	regexp.MustCompile(`(?i)^starting\s+point`),
	regexp.MustCompile(`(?i)^test`),
	regexp.MustCompile(`(?i)^trial`),
	regexp.MustCompile(`(?i)^backup`),
	regexp.MustCompile(`(?i)^replacement`),
	regexp.MustCompile(`(?i)^default`),
	regexp.MustCompile(`(?i)^last\s+resort`),
	regexp.MustCompile(`(?i)^first\s+step`),
	regexp.MustCompile(`(?i)^side\s+effect`),
	regexp.MustCompile(`(?i)^consequence`),
}

// fillerOnly rejects captures that are nothing but determiners or intensifiers.
var fillerOnly = regexp.MustCompile(`(?i)^(the|a|an|very|really|just|only|also)\s*$`)

// Phrase is one normalized persona phrase with its occurrence evidence.
type Phrase struct {
	Phrase    string   `json:"phrase"`
	Count     int      `json:"count"`
	ReviewIDs []string `json:"review_ids"`
}

// Result holds the outcome of one extraction run.
type Result struct {
	Phrases            []Phrase
	ReviewsWithMatches int
}

// Extract scans the given reviews for persona phrases. Counts aggregate
// across all reviews; a review id appears at most once per phrase even when
// several patterns hit it. Phrases are ordered by descending count with
// first-encounter order breaking ties, so the truncated prefix handed to the
// LLM is reproducible.
func Extract(reviews []database.Review) Result {
	type entry struct {
		phrase  string
		count   int
		ids     []string
		idsSeen map[string]bool
	}

	byPhrase := make(map[string]*entry)
	var order []string
	reviewsWithMatches := 0

	for _, review := range reviews {
		text := searchText(review)
		foundInReview := false

		for _, pattern := range personaPatterns {
			for _, match := range pattern.FindAllStringSubmatch(text, -1) {
				phrase := strings.ToLower(strings.TrimSpace(match[1]))

				if excluded(phrase) {
					continue
				}
				if len(phrase) < 3 {
					continue
				}
				if fillerOnly.MatchString(phrase) {
					continue
				}

				foundInReview = true

				e, ok := byPhrase[phrase]
				if !ok {
					e = &entry{phrase: phrase, idsSeen: make(map[string]bool)}
					byPhrase[phrase] = e
					order = append(order, phrase)
				}
				e.count++
				if !e.idsSeen[review.ReviewID] {
					e.idsSeen[review.ReviewID] = true
					e.ids = append(e.ids, review.ReviewID)
				}
			}
		}

		if foundInReview {
			reviewsWithMatches++
		}
	}

	phrases := make([]Phrase, 0, len(order))
	for _, key := range order {
		e := byPhrase[key]
		phrases = append(phrases, Phrase{Phrase: e.phrase, Count: e.count, ReviewIDs: e.ids})
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return phrases[i].Count > phrases[j].Count
	})

	return Result{Phrases: phrases, ReviewsWithMatches: reviewsWithMatches}
}

// Top returns at most n phrases from the ordered result.
func (r Result) Top(n int) []Phrase {
	if n >= len(r.Phrases) {
		return r.Phrases
	}
	return r.Phrases[:n]
}

func searchText(review database.Review) string {
	var parts []string
	if review.Title != nil && *review.Title != "" {
		parts = append(parts, *review.Title)
	}
	if review.Content != nil && *review.Content != "" {
		parts = append(parts, *review.Content)
	}
	return strings.Join(parts, " ")
}

func excluded(phrase string) bool {
	for _, pattern := range exclusions {
		if pattern.MatchString(phrase) {
			return true
		}
	}
	return false
}
