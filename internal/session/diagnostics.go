package session

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// summarizeDOM condenses a DOM snapshot into a one-line structural
// summary for failure logs: enough to tell a login wall from a redesign
// from an empty page without opening the snapshot file.
func summarizeDOM(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Sprintf("unparseable snapshot (%v)", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "(no title)"
	}

	return fmt.Sprintf("title=%q inputs=%d buttons=%d dialogs=%d listboxes=%d forms=%d",
		title,
		doc.Find("input").Length(),
		doc.Find(`button, [role="button"]`).Length(),
		doc.Find(`[role="dialog"]`).Length(),
		doc.Find(`[role="listbox"]`).Length(),
		doc.Find("form").Length(),
	)
}
