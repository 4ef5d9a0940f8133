// Package scraper turns a URL into plain page text, either by calling a
// remote scrape service or by fetching and stripping the page directly.
package scraper

import (
	"context"
	"strings"

	"context-engine/internal/models"
)

// Fetcher retrieves the text of one page. Callers bound it with a context deadline.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FetchedDocument, error)
}

// limitWords keeps at most n whitespace-separated words. n <= 0 keeps all.
func limitWords(text string, n int) string {
	words := strings.Fields(text)
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
