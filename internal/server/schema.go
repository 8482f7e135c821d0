package server

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// generateSchema reflects v into an expanded JSON Schema document.
func generateSchema(v any) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

func apiSchemas() (map[string]json.RawMessage, error) {
	types := map[string]any{
		"analyze_request":   &AnalyzeRequest{},
		"analyze_response":  &AnalyzeResponse{},
		"export_request":    &ExportRequest{},
		"entities_response": &EntitiesResponse{},
		"error_response":    &ErrorResponse{},
	}
	out := make(map[string]json.RawMessage, len(types))
	for name, v := range types {
		data, err := generateSchema(v)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}
