package crawler

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

var pageLink = regexp.MustCompile(`\?page=(\d+)$`)

// hasMorePages scans a page's own navigation anchors for a page number
// strictly greater than current. No such link means end-of-data regardless
// of any caller-supplied limit.
func hasMorePages(body []byte, current int) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	more := false
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := pageLink.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n > current {
			more = true
			return false
		}
		return true
	})
	return more
}
