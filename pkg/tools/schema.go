package tools

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const researchSchema = `{
  "type": "object",
  "required": ["answer", "citations"],
  "properties": {
    "answer": {"type": "string"},
    "citations": {
      "type": "array",
      "items": {"anyOf": [{"type": "object"}, {"type": "string"}]}
    }
  }
}`

const qaSchema = `{
  "type": "object",
  "required": ["scores"],
  "properties": {
    "scores": {"type": "object", "additionalProperties": {"type": "number"}},
    "notes": {"type": "array", "items": {"type": "string"}},
    "gating": {
      "type": "object",
      "properties": {"requires_privilege_review": {"type": "boolean"}}
    }
  }
}`

const ingestionSchema = `{
  "type": "object",
  "properties": {
    "documents": {"type": "array"}
  }
}`

var outputSchemas = map[string]string{
	"research":  researchSchema,
	"qa":        qaSchema,
	"ingestion": ingestionSchema,
}

func compileSchema(src string) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to compile output schema: %w", err)
	}
	return schema, nil
}

func validateOutput(schema *gojsonschema.Schema, payload map[string]any) error {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("output does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}
