// internal/workers/context-retrieval/generate-answer/models.go
package generateanswer

type Input struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type Output struct {
	Answer string `json:"answer"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		"question": map[string]interface{}{"type": "string", "minLength": 1},
		"context":  map[string]interface{}{"type": "string"},
	},
}
