package config

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/xcforge.v1.schema.json
var schemaFS embed.FS

const schemaFile = "schemas/xcforge.v1.schema.json"

// SchemaProblem is one schema violation.
type SchemaProblem struct {
	Field       string
	Description string
}

func (p SchemaProblem) String() string {
	return fmt.Sprintf("%s: %s", p.Field, p.Description)
}

// SchemaError lists every schema violation of a config file.
type SchemaError struct {
	Problems []SchemaProblem
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("schema validation failed with %d errors: %s", len(e.Problems), strings.Join(parts, "; "))
}

// Schema returns the embedded JSON schema.
func Schema() ([]byte, error) {
	return schemaFS.ReadFile(schemaFile)
}

// ValidateSchema checks raw YAML against the embedded JSON schema. A
// non-nil error means the document could not be checked at all.
func ValidateSchema(data []byte) ([]SchemaProblem, error) {
	schemaBytes, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to load JSON schema: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	problems := make([]SchemaProblem, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, SchemaProblem{Field: desc.Field(), Description: desc.Description()})
	}
	return problems, nil
}
