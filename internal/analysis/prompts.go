package analysis

import (
	"fmt"
	"strings"

	"github.com/clayton/appintel/internal/database"
	"github.com/clayton/appintel/internal/personas"
)

const (
	maxReviewsPerBand    = 30
	maxReviewsSimple     = 50
	maxReviewContentLen  = 200
	maxPhrasesNormalized = 50
	maxReviewsInsider    = 50
)

const comprehensiveSystemPrompt = "You are an expert product analyst specializing in mobile app user experience, market opportunities, and competitive positioning."

const simpleSystemPrompt = "You are an expert product analyst specializing in mobile app user experience and market opportunities."

// reviewsBlock renders a capped slice of reviews as prompt text. Long
// review bodies are truncated to keep the prompt inside token limits.
// truncate shortens to max characters on a rune boundary; review text is
// routinely non-ASCII.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func reviewsBlock(reviews []database.Review, appNames map[int64]string, max int) string {
	if len(reviews) > max {
		reviews = reviews[:max]
	}

	var b strings.Builder
	for i, r := range reviews {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := ""
		if r.Content != nil {
			content = *r.Content
		}
		content = truncate(content, maxReviewContentLen)
		title := ""
		if r.Title != nil {
			title = *r.Title
		}
		fmt.Fprintf(&b, "App: %s\nRating: %d/5\nTitle: %s\nReview: %s\n---",
			appNames[r.AppRowID], r.Rating, title, content)
	}
	return b.String()
}

func buildComprehensivePrompt(keyword string, low, high []database.Review, appNames map[int64]string) string {
	return fmt.Sprintf(`Analyze the following reviews from the top apps for the keyword %q.

You have two sets of reviews:
1. LOW-RATING REVIEWS (1-2 stars): Dissatisfied users highlighting problems and missing features
2. HIGH-RATING REVIEWS (4-5 stars): Satisfied users praising features they love

Your task is to:

1. From the HIGH-RATING reviews, identify "table stakes" features - the core features that users expect and praise across multiple apps. These are features any app in this category must have to be competitive.

2. From the LOW-RATING reviews, identify pain points and opportunities for differentiation - problems that existing apps haven't solved well.

3. Synthesize both to determine:
   - Top 3 "Table Stakes" features: What you need to fit in (baseline expectations)
   - Top 3 "Differentiators": What you need to stand out (unmet needs/opportunities)

LOW-RATING REVIEWS (1-2 stars):

%s

HIGH-RATING REVIEWS (4-5 stars):

%s

Format your response as valid JSON with this structure:
{
  "summary": "Brief executive summary of the competitive landscape",
  "table_stakes": [
    {
      "feature": "Feature name",
      "description": "Why this is essential",
      "evidence": "How often it appears in positive reviews"
    }
  ],
  "pain_points": [
    {
      "category": "Pain point category",
      "description": "What users are complaining about",
      "frequency": "How common this is"
    }
  ],
  "differentiators": [
    {
      "opportunity": "Opportunity name",
      "description": "How to stand out by addressing this",
      "rationale": "Why this would differentiate"
    }
  ],
  "competitive_summary": {
    "top_3_table_stakes": ["Feature 1", "Feature 2", "Feature 3"],
    "top_3_differentiators": ["Differentiator 1", "Differentiator 2", "Differentiator 3"]
  }
}`,
		keyword,
		reviewsBlock(low, appNames, maxReviewsPerBand),
		reviewsBlock(high, appNames, maxReviewsPerBand))
}

func buildSimplePrompt(keyword string, reviews []database.Review, appNames map[int64]string) string {
	return fmt.Sprintf(`Analyze the following 1-2 star reviews from the top apps for the keyword %q.

These are negative reviews from users who are dissatisfied with these apps. Your task is to:

1. Identify common patterns and pain points across these reviews
2. Categorize the main complaints (e.g., UI/UX issues, performance problems, missing features, pricing concerns, etc.)
3. Suggest specific opportunities for a new app that could address these shortcomings
4. Prioritize the opportunities by potential impact and feasibility

Reviews to analyze:

%s

Format your response as valid JSON with this structure:
{
  "summary": "Brief executive summary",
  "patterns": [
    {
      "category": "Pain point category",
      "description": "What users are complaining about",
      "frequency": "How common this is"
    }
  ],
  "opportunities": [
    {
      "title": "Opportunity name",
      "description": "How to address this",
      "priority": "high/medium/low"
    }
  ]
}`,
		keyword,
		reviewsBlock(reviews, appNames, maxReviewsSimple))
}

func buildPersonaPrompt(keyword string, phrases []personas.Phrase) string {
	if len(phrases) > maxPhrasesNormalized {
		phrases = phrases[:maxPhrasesNormalized]
	}

	var b strings.Builder
	for _, p := range phrases {
		fmt.Fprintf(&b, "- %q (%d mentions)\n", p.Phrase, p.Count)
	}

	return fmt.Sprintf(`The following self-description phrases were extracted from App Store reviews of %q apps. Each phrase is how a reviewer described themselves, with the number of reviews it appeared in.

%s
Group these raw phrases into distinct user personas. Merge phrases that describe the same kind of user. Ignore phrases that do not describe a person.

Format your response as valid JSON with this structure:
{
  "personas": [
    {
      "name": "Short persona name",
      "description": "Who this user is and what they want",
      "phrases": ["raw phrase 1", "raw phrase 2"],
      "total_mentions": 12
    }
  ]
}`, keyword, b.String())
}

func buildInsiderLanguagePrompt(keyword string, reviews []database.Review) string {
	if len(reviews) > maxReviewsInsider {
		reviews = reviews[:maxReviewsInsider]
	}

	var b strings.Builder
	for i, r := range reviews {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		if r.Title != nil {
			b.WriteString(*r.Title)
			b.WriteString(". ")
		}
		if r.Content != nil {
			content := *r.Content
			if len(content) > maxReviewContentLen {
				content = content[:maxReviewContentLen] + "..."
			}
			b.WriteString(content)
		}
	}

	return fmt.Sprintf(`The following are App Store reviews of %q apps. Identify the insider language of this category: the jargon, shorthand and community terms that users write naturally but outsiders would not.

Reviews:

%s

Format your response as valid JSON with this structure:
{
  "terms": [
    {
      "term": "The term as users write it",
      "meaning": "What it means in this category",
      "frequency": "How often it appears"
    }
  ],
  "maturity": "One sentence on how developed this category's shared vocabulary is"
}`, keyword, b.String())
}
