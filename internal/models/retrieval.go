// internal/models/retrieval.go
package models

// Query is a search query derived from the conversation. Not unique.
type Query string

// SearchResult is a single hit returned by a search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// CandidateLink is a URL that survived the link filter.
type CandidateLink struct {
	URL string `json:"url"`
}

// FetchedDocument is the scraped text of one candidate link.
type FetchedDocument struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// QueryStrings converts a slice of Query to plain strings.
func QueryStrings(queries []Query) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = string(q)
	}
	return out
}

// LinkURLs returns the URLs of the given links in order.
func LinkURLs(links []CandidateLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

// AnswerDelta is one increment of a streamed answer. A non-nil Err ends the
// stream as failed.
type AnswerDelta struct {
	Text string
	Err  error
}

// FlattenURLs lists result URLs by query order, then by rank within a query.
func FlattenURLs(perQuery [][]SearchResult) []string {
	var urls []string
	for _, results := range perQuery {
		for _, r := range results {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
