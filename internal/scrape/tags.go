package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	scoreToken = regexp.MustCompile(`^(?i)(?P<test>gpa|gre(?:\s+v|\s+aw)?)\s+(?P<score>[0-9]+(?:\.[0-9]+)?)$`)
	termToken  = regexp.MustCompile(`^(?i)(?P<season>[a-z]+)\s*(?P<year>[0-9]{4}|[0-9]{2})$`)
)

var seasons = []string{"fall", "winter", "spring", "summer"}

// TagExtractor parses the unstructured tag cloud attached to a posting. Each
// token is matched against the recognized grammars (term, GPA, GRE scores,
// applicant origin) in any order; unmatched tokens are preserved verbatim.
type TagExtractor struct{}

// Parse expands raw tag tokens into Tags plus the applicant origin
// ("american", "international", or empty when not stated).
func (TagExtractor) Parse(tokens []string) (Tags, string) {
	var tags Tags
	var origin string

	for _, raw := range tokens {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		lower := strings.ToLower(token)

		if lower == "international" || lower == "american" {
			origin = lower
			continue
		}
		if parseScore(lower, &tags) {
			continue
		}
		if term, ok := parseTerm(lower); ok {
			tags.Term = term
			continue
		}
		tags.Extra = append(tags.Extra, token)
	}
	return tags, origin
}

func parseScore(token string, tags *Tags) bool {
	m := scoreToken.FindStringSubmatch(token)
	if m == nil {
		return false
	}
	test := strings.Join(strings.Fields(m[scoreToken.SubexpIndex("test")]), " ")
	score := m[scoreToken.SubexpIndex("score")]

	switch test {
	case "gpa":
		if v, err := strconv.ParseFloat(score, 64); err == nil {
			tags.GPA = &v
		}
	case "gre":
		if v, err := strconv.Atoi(strings.SplitN(score, ".", 2)[0]); err == nil {
			tags.GREQuant = &v
		}
	case "gre v":
		if v, err := strconv.Atoi(strings.SplitN(score, ".", 2)[0]); err == nil {
			tags.GREVerbal = &v
		}
	case "gre aw":
		if v, err := strconv.ParseFloat(score, 64); err == nil {
			tags.GREWriting = &v
		}
	}
	return true
}

func parseTerm(token string) (*Term, bool) {
	m := termToken.FindStringSubmatch(token)
	if m == nil {
		return nil, false
	}
	seasonText := strings.ToLower(m[termToken.SubexpIndex("season")])
	var season string
	for _, candidate := range seasons {
		if strings.HasPrefix(candidate, seasonText) {
			season = candidate
			break
		}
	}
	if season == "" {
		return nil, false
	}

	yearText := m[termToken.SubexpIndex("year")]
	if len(yearText) == 2 {
		yearText = "20" + yearText
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return nil, false
	}
	return &Term{Season: season, Year: year}, true
}
