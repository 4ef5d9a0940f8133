// internal/workers/context-retrieval/fetch-content/models.go
package fetchcontent

import "context-engine/internal/models"

type Input struct {
	Links []string `json:"links"`
}

type Output struct {
	Documents []models.FetchedDocument `json:"documents"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"links"},
	"properties": map[string]interface{}{
		"links": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}
