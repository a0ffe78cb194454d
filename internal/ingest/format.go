// Package ingest turns fetched candidates into storable queue items and
// normalizes their HTML to the portal's editorial conventions.
package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const wordsPerMinute = 200

// EnsureBoldLead enforces the lide convention: the first paragraph of an
// article must be bold. If the first paragraph carries no bold run, its
// contents are wrapped in <strong> and the correction is reported so the
// import record can flag it.
func EnsureBoldLead(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html, false
	}

	first := doc.Find("p").First()
	if first.Length() == 0 {
		return html, false
	}
	if first.Find("strong, b").Length() > 0 {
		return html, false
	}
	if strings.TrimSpace(first.Text()) == "" {
		return html, false
	}

	inner, err := first.Html()
	if err != nil {
		return html, false
	}
	first.SetHtml("<strong>" + inner + "</strong>")

	out, err := doc.Find("body").Html()
	if err != nil {
		return html, false
	}
	return out, true
}

// ReadTime estimates reading time in whole minutes at 200 words per
// minute, never less than one.
func ReadTime(html string) int {
	words := len(strings.Fields(plainText(html)))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt strips markup and truncates on a word boundary. The cut never
// splits a multibyte rune.
func Excerpt(html string, max int) string {
	text := strings.Join(strings.Fields(plainText(html)), " ")
	if max <= 0 || len(text) <= max {
		return text
	}

	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	cut := text[:max]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}
