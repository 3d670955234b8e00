// Package validation checks structured language-model output against JSON schemas
// before any of it reaches the inventory.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrSchemaViolation = errors.New("SCHEMA_VIOLATION")

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal and panics on error; use for package-level schemas.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// DecodeInto validates raw JSON against the schema and unmarshals it into out.
// Model output often wraps JSON in prose or code fences, so the outermost
// object is extracted first.
func (s *Schema) DecodeInto(raw string, out interface{}) error {
	doc := ExtractJSONObject(raw)
	if doc == "" {
		return fmt.Errorf("%w: no JSON object found", ErrSchemaViolation)
	}

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errs, "; "))
	}

	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}

// ExtractJSONObject returns the substring between the first '{' and the last '}'.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
