// internal/workers/context-retrieval/filter-links/models.go
package filterlinks

type Input struct {
	URLs []string `json:"urls"`
}

type Output struct {
	Links []string `json:"links"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"urls"},
	"properties": map[string]interface{}{
		"urls": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}
