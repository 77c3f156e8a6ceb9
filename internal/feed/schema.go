package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// aggTradeSchema describes the fields the aggregator relies on. Extra fields
// sent by the exchange are allowed.
var aggTradeSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"p", "q", "m"},
	"properties": map[string]interface{}{
		"e": map[string]interface{}{"type": "string"},
		"E": map[string]interface{}{"type": "integer", "minimum": 0},
		"a": map[string]interface{}{"type": "integer"},
		"p": map[string]interface{}{"type": "string", "pattern": `^[0-9]+(\.[0-9]+)?$`},
		"q": map[string]interface{}{"type": "string", "pattern": `^-?[0-9]+(\.[0-9]+)?$`},
		"m": map[string]interface{}{"type": "boolean"},
	},
}

// SchemaValidator wraps JSON Schema compilation and validation.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator creates a validator from a JSON schema definition.
func NewSchemaValidator(schemaMap map[string]interface{}) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	// Marshal schema map to JSON
	schemaJSON, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	// Register schema with the compiler as a JSON reader
	if err := compiler.AddResource("aggtrade.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	// Compile schema
	schema, err := compiler.Compile("aggtrade.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &SchemaValidator{schema: schema}, nil
}

// Validate validates a decoded JSON document against the compiled schema.
// Returns a *ValidationError naming the offending field when the document
// does not conform.
func (v *SchemaValidator) Validate(doc interface{}) error {
	if err := v.schema.Validate(doc); err != nil {
		// Keep the instance location so drop logs point at the bad field
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return &ValidationError{
				Field:   ve.InstanceLocation,
				Message: ve.Message,
			}
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidationError reports the first schema violation of a payload.
type ValidationError struct {
	Field   string // JSON pointer into the payload, e.g. "/q"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}
