package standardize

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// Abbreviation expansions applied before casing. Keys are matched against
// the whole raw token, case-insensitively.
var institutionAbbrevs = map[string]string{
	"mit":    "Massachusetts Institute of Technology",
	"jhu":    "Johns Hopkins University",
	"ucla":   "University of California, Los Angeles",
	"usc":    "University of Southern California",
	"ubc":    "University of British Columbia",
	"u.b.c.": "University of British Columbia",
	"uoft":   "University of Toronto",
	"mcg":    "McGill University",
	"mcg.":   "McGill University",
	"nyu":    "New York University",
	"cmu":    "Carnegie Mellon University",
}

var programAbbrevs = map[string]string{
	"cs":           "Computer Science",
	"comp sci":     "Computer Science",
	"ee":           "Electrical Engineering",
	"info studies": "Information Studies",
	"math":         "Mathematics",
	"stats":        "Statistics",
}

// Spelling fixes applied after casing.
var institutionFixes = map[string]string{
	"Mcgill University":  "McGill University",
	"Mcgiill University": "McGill University",
}

var programFixes = map[string]string{
	"Mathematic": "Mathematics",
}

// Words kept lowercase inside title-cased names.
var lowercaseWords = map[string]struct{}{
	"of": {}, "the": {}, "at": {}, "in": {}, "and": {}, "for": {},
}

var (
	punctEdges  = regexp.MustCompile(`^[\s\p{P}]+|[\s\p{P}]+$`)
	innerSpaces = regexp.MustCompile(`\s+`)
)

// ruleStrategy is the terminal tier: deterministic text normalization whose
// output is accepted verbatim even when it matches no canonical entry.
type ruleStrategy struct {
	canon *Canon
}

func (s *ruleStrategy) Resolve(_ context.Context, raw string, kind Kind) (string, bool) {
	cleaned := Clean(raw, kind)
	// Prefer the canonical capitalization when cleanup landed on a list
	// entry anyway.
	if s.canon != nil {
		if canonical, ok := s.canon.Lookup(cleaned, kind); ok {
			return canonical, true
		}
	}
	return cleaned, true
}

// Clean applies the deterministic normalization rules: abbreviation
// expansion, punctuation stripping, whitespace collapsing, title casing with
// connective words lowered, and common-misspelling fixes.
func Clean(raw string, kind Kind) string {
	text := innerSpaces.ReplaceAllString(punctEdges.ReplaceAllString(raw, ""), " ")
	if text == "" {
		return strings.TrimSpace(raw)
	}

	abbrevs := institutionAbbrevs
	fixes := institutionFixes
	if kind == KindProgram {
		abbrevs = programAbbrevs
		fixes = programFixes
	}
	if expanded, ok := abbrevs[strings.ToLower(text)]; ok {
		return expanded
	}

	text = titleCase(text)
	if fixed, ok := fixes[text]; ok {
		return fixed
	}
	return text
}

func titleCase(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		lower := strings.ToLower(word)
		if _, small := lowercaseWords[lower]; small && i > 0 {
			words[i] = lower
			continue
		}
		runes := []rune(lower)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
