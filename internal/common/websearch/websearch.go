// Package websearch holds the search backends the fan-out stage queries.
package websearch

import (
	"context"

	"context-engine/internal/models"
)

// Searcher runs one query against one backend.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}
