// internal/workers/context-retrieval/search-fanout/models.go
package searchfanout

import "context-engine/internal/models"

type Input struct {
	Queries []string `json:"queries"`
}

type Output struct {
	SearchResults []QueryResults `json:"searchResults"`
	URLs          []string       `json:"urls"`
}

type QueryResults struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"queries"},
	"properties": map[string]interface{}{
		"queries": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}
