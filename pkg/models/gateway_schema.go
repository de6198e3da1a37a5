package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// gatewaySchemaDefinition is the JSON Schema every GatewayTemplate.SchemaText must satisfy.
const gatewaySchemaDefinition = `{
	"type": "object",
	"properties": {
		"isCurrentOnly": {"type": "boolean"},
		"formulas": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"condition": {"type": "string"},
					"isDefault": {"type": "boolean"}
				},
				"required": ["condition"]
			}
		}
	}
}`

var gatewaySchemaLoader = gojsonschema.NewStringLoader(gatewaySchemaDefinition)

// Formula pairs an exclusive-gateway condition with the out sequence at the same index.
type Formula struct {
	Condition string `json:"condition"`
	IsDefault bool   `json:"isDefault"`
}

// GatewaySchema is the structured form of GatewayTemplate.SchemaText.
type GatewaySchema struct {
	IsCurrentOnly bool      `json:"isCurrentOnly"`
	Formulas      []Formula `json:"formulas"`
}

// DefaultFormulaIndex returns the index of the first formula flagged as default, or -1.
func (s *GatewaySchema) DefaultFormulaIndex() int {
	for i, formula := range s.Formulas {
		if formula.IsDefault {
			return i
		}
	}

	return -1
}

// ParseSchema validates and decodes the template schema text. Empty text yields an empty schema.
func (t *GatewayTemplate) ParseSchema() (*GatewaySchema, error) {
	return ParseGatewaySchema(t.SchemaText)
}

// ParseGatewaySchema validates schemaText against the gateway schema definition and decodes it.
func ParseGatewaySchema(schemaText string) (*GatewaySchema, error) {
	if strings.TrimSpace(schemaText) == "" {
		return &GatewaySchema{}, nil
	}

	result, err := gojsonschema.Validate(gatewaySchemaLoader, gojsonschema.NewStringLoader(schemaText))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway schema: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("invalid gateway schema: %s", strings.Join(details, "; "))
	}

	var schema GatewaySchema

	err = json.Unmarshal([]byte(schemaText), &schema)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway schema: %w", err)
	}

	return &schema, nil
}
