package scrape

import (
	"regexp"
	"strings"
	"time"
)

// decisionText matches strings like "Accepted on 3 Mar" or "Wait listed on 3/1".
var decisionText = regexp.MustCompile(`^(?P<status>[A-Za-z][A-Za-z\s-]*?)?\s*on\s+(?P<date>[0-9]{1,2}\s+[A-Za-z]{3,}|[0-9]{1,2}/[0-9]{1,2})$`)

// DecisionExtractor parses the free-text decision cell of a posting fragment.
// Decision dates on the source site carry only day and month; the extractor
// resolves the year against the posting's added-on date, never producing a
// date in the future relative to now.
type DecisionExtractor struct {
	Now func() time.Time
}

// Parse extracts a Decision from the raw cell text. refYear anchors year
// inference (the posting's added-on year, or the term year when absent). The
// second return value is false when the text contains neither a status nor a
// date, in which case the fragment should be dropped.
//
// A bare date with no status text is kept with StatusOther rather than
// dropped; the upstream data presents these often enough that losing them
// skews acceptance-rate aggregates.
func (e DecisionExtractor) Parse(raw string, refYear int) (Decision, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Decision{}, false
	}

	m := decisionText.FindStringSubmatch(text)
	if m == nil {
		// Status with no date at all, e.g. "Interview".
		status := normalizeStatus(text)
		if status == StatusOther && !looksLikeStatus(text) {
			return Decision{}, false
		}
		return Decision{Status: status}, true
	}

	statusText := strings.TrimSpace(m[decisionText.SubexpIndex("status")])
	dateText := strings.TrimSpace(m[decisionText.SubexpIndex("date")])

	status := StatusOther
	if statusText != "" {
		status = normalizeStatus(statusText)
	}

	date, ok := e.parseDate(dateText, refYear)
	if !ok && statusText == "" {
		return Decision{}, false
	}
	return Decision{Status: status, Date: date}, true
}

func (e DecisionExtractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e DecisionExtractor) parseDate(text string, refYear int) (time.Time, bool) {
	now := e.now()
	if refYear <= 0 {
		refYear = now.Year()
	}
	var parsed time.Time
	var err error
	if strings.Contains(text, "/") {
		parsed, err = time.Parse("1/2 2006", text+" "+formatYear(refYear))
	} else {
		parsed, err = time.Parse("2 Jan 2006", text+" "+formatYear(refYear))
	}
	if err != nil {
		return time.Time{}, false
	}
	// Month/day only: if anchoring at refYear lands in the future, the
	// decision must belong to the previous year.
	if parsed.After(now) {
		parsed = parsed.AddDate(-1, 0, 0)
	}
	return parsed, true
}

func formatYear(year int) string {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}

func normalizeStatus(text string) DecisionStatus {
	key := strings.Join(strings.Fields(strings.ToLower(text)), "_")
	switch key {
	case "accepted":
		return StatusAccepted
	case "rejected":
		return StatusRejected
	case "wait_listed", "waitlisted", "wait-listed":
		return StatusWaitListed
	case "interview":
		return StatusInterview
	default:
		return StatusOther
	}
}

func looksLikeStatus(text string) bool {
	// Anything alphabetic of reasonable length is treated as an unrecognized
	// status rather than garbage.
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > 64 {
		return false
	}
	for _, r := range trimmed {
		if !(r == ' ' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}
