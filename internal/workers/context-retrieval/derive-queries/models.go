// internal/workers/context-retrieval/derive-queries/models.go
package derivequeries

type Input struct {
	UserMessages []string `json:"userMessages"`
}

type Output struct {
	Queries []string `json:"queries"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"userMessages"},
	"properties": map[string]interface{}{
		"userMessages": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

// responseSchema is sent to the generation service in its own schema dialect.
var responseSchema = map[string]interface{}{
	"type":  "ARRAY",
	"items": map[string]interface{}{"type": "STRING"},
}
