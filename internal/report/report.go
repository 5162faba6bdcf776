// Package report renders stored analyses as markdown or standalone HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/clayton/appintel/internal/analysis"
	"github.com/clayton/appintel/internal/database"
)

var md = goldmark.New()

// Markdown renders an analysis record and its keyword's cached apps as a
// markdown report.
func Markdown(rec *database.Analysis, apps []database.App) string {
	result := analysis.AssembleFromRecord(rec)

	var b strings.Builder
	fmt.Fprintf(&b, "# Review Intelligence: %s\n\n", rec.Keyword)
	fmt.Fprintf(&b, "Generated %s", rec.CreatedAt.Format("2006-01-02 15:04"))
	if result.Model != "" {
		fmt.Fprintf(&b, " with %s", result.Model)
	}
	b.WriteString("\n\n")

	if result.Summary != "" {
		b.WriteString("## Executive Summary\n\n")
		b.WriteString(result.Summary)
		b.WriteString("\n\n")
	}

	if len(result.TableStakes) > 0 {
		b.WriteString("## Table Stakes (What You Need to Fit In)\n\n")
		for i, stake := range result.TableStakes {
			fmt.Fprintf(&b, "%d. **%s** - %s", i+1, stake.Feature, stake.Description)
			if stake.Evidence != "" {
				fmt.Fprintf(&b, " _(%s)_", stake.Evidence)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(result.PainPoints) > 0 {
		b.WriteString("## Common Pain Points\n\n")
		for i, pain := range result.PainPoints {
			fmt.Fprintf(&b, "%d. **%s** - %s", i+1, pain.Category, pain.Description)
			if pain.Frequency != "" {
				fmt.Fprintf(&b, " _(%s)_", pain.Frequency)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(result.Differentiators) > 0 {
		b.WriteString("## Differentiation Opportunities\n\n")
		for i, diff := range result.Differentiators {
			fmt.Fprintf(&b, "%d. **%s** - %s", i+1, diff.Opportunity, diff.Description)
			if diff.Rationale != "" {
				fmt.Fprintf(&b, " _(%s)_", diff.Rationale)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if !result.CompetitiveSummary.Empty() {
		b.WriteString("## Competitive Positioning\n\n")
		if len(result.CompetitiveSummary.TopTableStakes) > 0 {
			b.WriteString("**Top features to fit in:**\n\n")
			for _, feature := range result.CompetitiveSummary.TopTableStakes {
				fmt.Fprintf(&b, "- %s\n", feature)
			}
			b.WriteString("\n")
		}
		if len(result.CompetitiveSummary.TopDifferentiators) > 0 {
			b.WriteString("**Top features to stand out:**\n\n")
			for _, feature := range result.CompetitiveSummary.TopDifferentiators {
				fmt.Fprintf(&b, "- %s\n", feature)
			}
			b.WriteString("\n")
		}
	}

	writePersonas(&b, result.Personas)
	writeInsiderLanguage(&b, result.InsiderLanguage)
	writeKeywordOpportunities(&b, rec.KeywordOpportunities)

	if len(apps) > 0 {
		b.WriteString("## Apps Analyzed\n\n")
		for _, app := range apps {
			fmt.Fprintf(&b, "%d. %s", app.SearchRank, app.Name)
			if app.Developer != nil {
				fmt.Fprintf(&b, " (%s)", *app.Developer)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if result.TotalLowReviews == 0 && result.TotalHighReviews == 0 && rec.TotalReviewsAnalyzed > 0 {
		// Simple-shape records only carry a blended total.
		fmt.Fprintf(&b, "---\n\nReviews analyzed: %d\n", rec.TotalReviewsAnalyzed)
	} else {
		fmt.Fprintf(&b, "---\n\nReviews analyzed: %d low-rating, %d high-rating\n",
			result.TotalLowReviews, result.TotalHighReviews)
	}
	return b.String()
}

func writePersonas(b *strings.Builder, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var payload struct {
		Personas []analysis.PersonaGroup `json:"personas"`
	}
	if json.Unmarshal(raw, &payload) != nil || len(payload.Personas) == 0 {
		return
	}

	b.WriteString("## User Personas\n\n")
	for _, persona := range payload.Personas {
		fmt.Fprintf(b, "### %s", persona.Name)
		if persona.TotalMentions > 0 {
			fmt.Fprintf(b, " (%d mentions)", persona.TotalMentions)
		}
		b.WriteString("\n\n")
		if persona.Description != "" {
			b.WriteString(persona.Description)
			b.WriteString("\n\n")
		}
		if len(persona.Phrases) > 0 {
			fmt.Fprintf(b, "Self-descriptions: %s\n\n", strings.Join(persona.Phrases, ", "))
		}
	}
}

func writeInsiderLanguage(b *strings.Builder, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var lang analysis.InsiderLanguage
	if json.Unmarshal(raw, &lang) != nil || len(lang.Terms) == 0 {
		return
	}

	b.WriteString("## Insider Language\n\n")
	for _, term := range lang.Terms {
		fmt.Fprintf(b, "- **%s**: %s", term.Term, term.Meaning)
		if term.Frequency != "" {
			fmt.Fprintf(b, " _(%s)_", term.Frequency)
		}
		b.WriteString("\n")
	}
	if lang.Maturity != "" {
		fmt.Fprintf(b, "\n%s\n", lang.Maturity)
	}
	b.WriteString("\n")
}

func writeKeywordOpportunities(b *strings.Builder, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var payload struct {
		HighFrequency []struct {
			Keyword         string `json:"keyword"`
			CompetitorCount int    `json:"competitor_count"`
		} `json:"high_frequency_keywords"`
		Gaps []struct {
			Keyword string `json:"keyword"`
		} `json:"keyword_gaps"`
		SuggestedField struct {
			Keywords string `json:"keywords"`
		} `json:"suggested_keyword_field"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return
	}
	if len(payload.HighFrequency) == 0 && len(payload.Gaps) == 0 && payload.SuggestedField.Keywords == "" {
		return
	}

	b.WriteString("## Keyword Opportunities\n\n")
	if len(payload.HighFrequency) > 0 {
		b.WriteString("**High-frequency keywords:**\n\n")
		for _, kw := range payload.HighFrequency {
			fmt.Fprintf(b, "- %s", kw.Keyword)
			if kw.CompetitorCount > 0 {
				fmt.Fprintf(b, " (%d competitors)", kw.CompetitorCount)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(payload.Gaps) > 0 {
		b.WriteString("**Low-competition gaps:**\n\n")
		for _, kw := range payload.Gaps {
			fmt.Fprintf(b, "- %s\n", kw.Keyword)
		}
		b.WriteString("\n")
	}
	if payload.SuggestedField.Keywords != "" {
		fmt.Fprintf(b, "**Suggested keyword field:** `%s`\n\n", payload.SuggestedField.Keywords)
	}
}

var htmlShell = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; }
h1, h2 { border-bottom: 1px solid #ddd; padding-bottom: 0.3rem; }
code { background: #f4f4f4; padding: 0.1rem 0.3rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders an analysis record as a standalone HTML page.
func HTML(rec *database.Analysis, apps []database.App) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(rec, apps)), &body); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	var out bytes.Buffer
	err := htmlShell.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Review Intelligence: " + rec.Keyword,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return out.Bytes(), nil
}
