// internal/workers/context-retrieval/filter-links/filter.go
package filterlinks

import (
	"strings"

	"context-engine/internal/models"
)

// Filter drops empty URLs and URLs whose lowercased form contains any
// denylist entry, then removes exact duplicates keeping the first. The
// result is cut to maxCandidates when that is positive. denylist entries are
// expected in lower case.
func Filter(urls []string, denylist []string, maxCandidates int) []models.CandidateLink {
	seen := make(map[string]struct{}, len(urls))
	links := make([]models.CandidateLink, 0, len(urls))

	for _, u := range urls {
		if u == "" || denied(u, denylist) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		links = append(links, models.CandidateLink{URL: u})

		if maxCandidates > 0 && len(links) == maxCandidates {
			break
		}
	}
	return links
}

func denied(url string, denylist []string) bool {
	lower := strings.ToLower(url)
	for _, pattern := range denylist {
		if pattern != "" && strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
