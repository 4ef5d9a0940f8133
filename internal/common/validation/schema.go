package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// StringListSchema accepts a JSON array whose items are all strings.
const StringListSchema = `{
  "type": "array",
  "items": {"type": "string"}
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error joins the individual messages; empty when valid.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// ValidateJSON validates a raw JSON document against a JSON schema string.
// A document that is not JSON at all is reported as invalid, not as an error.
func ValidateJSON(schema string, document []byte) *ValidationResult {
	return validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(document))
}

// ValidateInput validates decoded job variables against a schema expressed as a Go map.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) *ValidationResult {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}
	}
	return validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
}

func validate(schemaLoader, documentLoader gojsonschema.JSONLoader) *ValidationResult {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		}
	}
	return &ValidationResult{Valid: false, Errors: errs}
}
