// internal/workers/context-retrieval/assemble-context/models.go
package assemblecontext

import "context-engine/internal/models"

type Input struct {
	Documents []models.FetchedDocument `json:"documents"`
}

type Output struct {
	Context string `json:"context"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"documents"},
	"properties": map[string]interface{}{
		"documents": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"content"},
				"properties": map[string]interface{}{
					"url":     map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}
