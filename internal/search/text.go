package search

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/job-digest/job-digest/internal/jobs"
)

// plainText strips markup and entities from API-provided descriptions and
// collapses whitespace.
func plainText(s string) string {
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func description(s string) string {
	return jobs.Truncate(plainText(s), jobs.MaxDescriptionRunes)
}

func highlights(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		cleaned = append(cleaned, plainText(item))
	}
	return jobs.Head(cleaned, jobs.MaxHighlights)
}
