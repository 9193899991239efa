package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// Go Plan struct using invopop/jsonschema. The result backs semantic
// validation and editor integration (see scripts/gen-schema.go).
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Plan{})
	s.ID = "https://github.com/toolforge/forge/schemas/plan-v0.json"
	s.Title = "Installation Plan v0"
	s.Description = "Schema for forge installation plan YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
