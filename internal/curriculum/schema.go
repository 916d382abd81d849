package curriculum

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const subjectSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "estimated_time_days": {"type": "integer", "minimum": 0},
    "max_score": {"type": "integer", "minimum": 0},
    "tasks": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    }
  },
  "additionalProperties": true
}`

var subjectSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(subjectSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compiling subject schema: %v", err))
	}
	subjectSchema = s
}

// ValidateDocument checks a decoded subject template document against the
// catalog schema.
func ValidateDocument(doc map[string]any) error {
	result, err := subjectSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating subject document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid subject document: %s", strings.Join(msgs, "; "))
}
