package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

var pointSchema = &Schema{
	Name: "test-point",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
			"y": map[string]any{"type": "integer"},
		},
		"required":             []any{"x", "y"},
		"additionalProperties": false,
	},
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		raw     string
		wantErr bool
	}{
		{"nil schema", nil, `not json`, false},
		{"valid", pointSchema, `{"x":1,"y":2}`, false},
		{"missing field", pointSchema, `{"x":1}`, true},
		{"wrong type", pointSchema, `{"x":"1","y":2}`, true},
		{"extra field", pointSchema, `{"x":1,"y":2,"z":3}`, true},
		{"not json", pointSchema, `{"x":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(tt.schema, json.RawMessage(tt.raw))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var inv *ErrInvalidResponse
			if !errors.As(err, &inv) {
				t.Fatalf("expected ErrInvalidResponse, got %v", err)
			}
		})
	}
}

func TestGeminiSchemaConversion(t *testing.T) {
	s := geminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind":  map[string]any{"type": "string", "enum": []any{"a", "b"}},
			"items": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
		},
		"required": []any{"kind"},
	})
	if len(s.Required) != 1 || s.Required[0] != "kind" {
		t.Errorf("required = %v", s.Required)
	}
	if len(s.Properties["kind"].Enum) != 2 {
		t.Errorf("enum = %v", s.Properties["kind"].Enum)
	}
	if s.Properties["items"].Items == nil {
		t.Error("array items were dropped")
	}
}
