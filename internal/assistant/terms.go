package assistant

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cfpd-planning/intake-assistant/internal/domain"
)

var (
	stationPattern = regexp.MustCompile(`\bstation\s+(\d+)\b`)
	// Four-digit years 2000-2049.
	yearPattern       = regexp.MustCompile(`\b(20[0-4]\d)\b`)
	quarterPattern    = regexp.MustCompile(`\bq[1-4]\s*20[0-4]\d\b`)
	fiscalYearPattern = regexp.MustCompile(`\bfy\s*20[0-4]\d\b`)
)

// CollectRequiredTerms scans the whole conversation (all roles) for tokens
// that must survive verbatim into the finalized sentence: station numbers,
// years, quarters, fiscal years, and a handful of keyword flags. The result
// is a set; extraction is deterministic and side-effect-free.
func CollectRequiredTerms(messages []domain.Message) map[string]struct{} {
	terms := make(map[string]struct{})

	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	text := strings.ToLower(strings.Join(parts, " "))

	for _, m := range stationPattern.FindAllStringSubmatch(text, -1) {
		terms["station "+m[1]] = struct{}{}
	}
	for _, m := range yearPattern.FindAllStringSubmatch(text, -1) {
		terms[m[1]] = struct{}{}
	}
	for _, m := range quarterPattern.FindAllString(text, -1) {
		terms[m] = struct{}{}
	}
	for _, m := range fiscalYearPattern.FindAllString(text, -1) {
		// Normalize "fy 2025" to "fy2025".
		terms[strings.ReplaceAll(m, " ", "")] = struct{}{}
	}

	if strings.Contains(text, "csv") {
		terms["csv"] = struct{}{}
	}
	if strings.Contains(text, "shift") {
		terms["shift"] = struct{}{}
	}
	if strings.Contains(text, "include date") || strings.Contains(text, "include the date") {
		terms["include date"] = struct{}{}
	}
	if strings.Contains(text, "response time") {
		terms["response time"] = struct{}{}
	}

	return terms
}

// SentenceHasRequiredTerms reports whether every required term appears in
// the sentence as a case-insensitive substring.
func SentenceHasRequiredTerms(sentence string, terms map[string]struct{}) bool {
	s := strings.ToLower(sentence)
	for t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

// sortedTerms returns the set's members in lexical order, for stable
// prompt construction and logging.
func sortedTerms(terms map[string]struct{}) []string {
	out := make([]string, 0, len(terms))
	for t := range terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
