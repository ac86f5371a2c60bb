package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Warning records a fragment that could not be turned into a result. Parse
// warnings never abort a page; they are surfaced in the job summary.
type Warning struct {
	Page   int    `json:"page"`
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("page %d row %d: %s", w.Page, w.Row, w.Reason)
}

var (
	resultLink = regexp.MustCompile(`^/result/\d+`)
	blankRun   = regexp.MustCompile(`\n{2,}`)
)

// PageParser converts one listing page's markup into admission results. Each
// posting occupies a run of table rows: a header row with the institution,
// program, added-on date, and decision cells, optionally followed by colspan
// rows carrying the tag cloud and free-text notes. The parser composes the
// per-entity extractors rather than owning the grammar itself.
type PageParser struct {
	decisions DecisionExtractor
	tags      TagExtractor
	logger    *zap.Logger
}

// NewPageParser builds a PageParser. A nil logger disables parse logging.
func NewPageParser(logger *zap.Logger) *PageParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageParser{logger: logger}
}

// ParsePage parses the markup of one listing page. It returns the successful
// results plus a warning per dropped fragment; it returns an error only when
// the page as a whole carries no recognizable results table.
func (p *PageParser) ParsePage(markup []byte, page int) ([]AdmissionResult, []Warning, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, nil, fmt.Errorf("parse page markup: %w", err)
	}

	// The results table is the first one after the page heading; fall back
	// to any table body so fixture pages without a heading still parse.
	tbody := doc.Find("h1 ~ table tbody, h1 ~ * tbody").First()
	if tbody.Length() == 0 {
		tbody = doc.Find("tbody").First()
	}
	if tbody.Length() == 0 {
		return nil, nil, fmt.Errorf("page %d: no results table found", page)
	}

	fragments := groupFragments(tbody)
	results := make([]AdmissionResult, 0, len(fragments))
	var warnings []Warning
	retrieved := time.Now().UTC()

	for i, fragment := range fragments {
		result, err := p.parseFragment(fragment, page, i, retrieved)
		if err != nil {
			warnings = append(warnings, Warning{Page: page, Row: i, Reason: err.Error()})
			p.logger.Debug("dropped posting fragment",
				zap.Int("page", page),
				zap.Int("row", i),
				zap.Error(err),
			)
			continue
		}
		results = append(results, result)
	}
	return results, warnings, nil
}

// fragment is the run of <tr> elements belonging to one posting.
type fragment struct {
	header *goquery.Selection
	extras []*goquery.Selection
}

// groupFragments splits the table body into per-posting row groups. A new
// posting starts at any row whose cells carry no colspan attribute; rows with
// colspan cells (tag cloud, notes) attach to the preceding posting.
func groupFragments(tbody *goquery.Selection) []fragment {
	var fragments []fragment
	tbody.ChildrenFiltered("tr").Each(func(_ int, row *goquery.Selection) {
		hasColspan := row.Find("td[colspan]").Length() > 0
		if !hasColspan {
			fragments = append(fragments, fragment{header: row})
			return
		}
		if len(fragments) == 0 {
			return // stray continuation row before any header
		}
		last := &fragments[len(fragments)-1]
		last.extras = append(last.extras, row)
	})
	return fragments
}

func (p *PageParser) parseFragment(frag fragment, page, row int, retrieved time.Time) (AdmissionResult, error) {
	cells := frag.header.Find("td")
	institution := strings.TrimSpace(cells.Eq(0).Text())
	if institution == "" {
		return AdmissionResult{}, fmt.Errorf("missing institution name")
	}

	program, degree := splitProgramCell(cells.Eq(1))
	addedOn := parseAddedOn(cells.Eq(2).Text())

	tokens := tagTokens(frag.extras)
	tags, origin := p.tags.Parse(tokens)

	refYear := 0
	if addedOn != nil {
		refYear = addedOn.Year()
	} else if tags.Term != nil {
		refYear = tags.Term.Year
	}

	decision, ok := p.decisions.Parse(cells.Eq(3).Text(), refYear)
	if !ok {
		return AdmissionResult{}, fmt.Errorf("unparseable decision %q", strings.TrimSpace(cells.Eq(3).Text()))
	}

	sourceID := permalink(frag.header)
	if sourceID == "" {
		sourceID = fmt.Sprintf("page:%d/row:%d", page, row)
	}

	return AdmissionResult{
		Institution: institution,
		Program:     program,
		Degree:      degree,
		Decision:    decision,
		Tags:        tags,
		Origin:      origin,
		Notes:       notesText(frag.extras),
		SourceID:    sourceID,
		Page:        page,
		Row:         row,
		AddedOn:     addedOn,
		RetrievedAt: retrieved,
	}, nil
}

// splitProgramCell separates program name from degree level. The cell wraps
// each in its own span, divided by an inline SVG; pages that drop the spans
// still surface the divider as a blank-line run in the cell text.
func splitProgramCell(cell *goquery.Selection) (program, degree string) {
	spans := cell.Find("span")
	if spans.Length() > 0 {
		program = strings.TrimSpace(spans.Eq(0).Text())
		if spans.Length() > 1 {
			degree = strings.ToLower(strings.TrimSpace(spans.Eq(1).Text()))
		}
		return program, degree
	}
	parts := blankRun.Split(strings.TrimSpace(cell.Text()), 2)
	program = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		degree = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	return program, degree
}

func parseAddedOn(text string) *time.Time {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	parsed, err := time.Parse("January 2, 2006", trimmed)
	if err != nil {
		return nil
	}
	return &parsed
}

// tagTokens collects the text of the badge elements in the tag-cloud rows.
func tagTokens(extras []*goquery.Selection) []string {
	var tokens []string
	for _, row := range extras {
		row.Find(".tw-inline-flex").Each(func(_ int, badge *goquery.Selection) {
			tokens = append(tokens, strings.TrimSpace(badge.Text()))
		})
	}
	return tokens
}

// notesText returns the free-text comment row, if any. Rows carrying tag
// badges are not comments.
func notesText(extras []*goquery.Selection) string {
	for _, row := range extras {
		if row.Find(".tw-inline-flex").Length() > 0 {
			continue
		}
		if text := strings.TrimSpace(row.Text()); text != "" {
			return text
		}
	}
	return ""
}

// permalink extracts the posting's own result link, the most stable source
// identifier available.
func permalink(header *goquery.Selection) string {
	var link string
	header.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if resultLink.MatchString(href) {
			link = href
			return false
		}
		return true
	})
	return link
}
