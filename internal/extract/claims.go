// Package extract derives candidate claims from ingested articles.
package extract

import (
	"strings"

	"github.com/cruxlabs/crux/internal/model"
	"github.com/cruxlabs/crux/internal/news"
)

// CandidateClaim picks the single claim to verify for an article: the
// headline when it reads like a statement, otherwise the leading
// sentence of the description. This is a cheap heuristic, not a full
// claim-extraction pass.
func CandidateClaim(item model.EvidenceItem) string {
	title := cleanText(item.Title)
	if isStatement(title) {
		return title
	}

	for _, sentence := range SplitSentences(cleanText(item.Excerpt)) {
		if isStatement(sentence) {
			return sentence
		}
	}

	return title
}

// SplitSentences splits text on sentence terminators, keeping only
// spans that plausibly carry a full statement.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// Look ahead so abbreviations don't split mid-sentence.
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				if s := strings.TrimSpace(current.String()); plausibleSentence(s) {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); plausibleSentence(s) {
		sentences = append(sentences, s)
	}

	return sentences
}

// cleanText strips any HTML the provider left in the field.
func cleanText(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}
	_, text := news.ExtractPageText(s)
	return strings.TrimSpace(text)
}

// isStatement filters out headlines that are questions, bare fragments,
// or listicle teasers.
func isStatement(s string) bool {
	if len(s) < 20 || len(s) > 500 {
		return false
	}
	if strings.HasSuffix(s, "?") {
		return false
	}
	words := strings.Fields(s)
	return len(words) >= 4
}

func plausibleSentence(s string) bool {
	return len(s) >= 30 && len(s) <= 500
}
