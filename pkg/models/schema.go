package models

import (
	"encoding/json"
	"fmt"
)

// Field type names accepted in an output schema.
const (
	FieldTypeString  = "string"
	FieldTypeNumber  = "number"
	FieldTypeArray   = "array"
	FieldTypeObject  = "object"
	FieldTypeBoolean = "boolean"
)

// OutputSchema describes the JSON shape a step expects back from the AI.
// Fields absent from the response become null with a warning; fields present
// in the response but absent here are passed through untouched.
type OutputSchema map[string]*FieldSpec

// FieldSpec is one schema entry. Three JSON forms are accepted:
//
//	"title": "string"
//	"title": {"type": "string", "target": "post_title", "required": true}
//	"seo":   {"meta_description": "string", "keywords": "array"}
//
// The third form declares a nested schema.
type FieldSpec struct {
	Type     string       `json:"type,omitempty"`
	Target   string       `json:"target,omitempty"`
	Required bool         `json:"required,omitempty"`
	Nested   OutputSchema `json:"-"`
}

// IsNested reports whether the field declares a nested schema rather than a
// primitive type.
func (f *FieldSpec) IsNested() bool {
	return f != nil && len(f.Nested) > 0
}

func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	var typeName string
	if err := json.Unmarshal(data, &typeName); err == nil {
		f.Type = typeName

		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid schema field: %w", err)
	}

	if typeRaw, ok := raw["type"]; ok {
		var spec struct {
			Type     string `json:"type"`
			Target   string `json:"target"`
			Required bool   `json:"required"`
		}

		if err := json.Unmarshal(data, &spec); err == nil && isFieldType(spec.Type) {
			f.Type = spec.Type
			f.Target = spec.Target
			f.Required = spec.Required

			return nil
		}

		_ = typeRaw
	}

	// Anything else is a nested schema.
	nested := make(OutputSchema, len(raw))
	for name, value := range raw {
		child := &FieldSpec{}
		if err := child.UnmarshalJSON(value); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}

		nested[name] = child
	}

	f.Nested = nested

	return nil
}

func (f *FieldSpec) MarshalJSON() ([]byte, error) {
	if f.IsNested() {
		return json.Marshal(f.Nested)
	}

	if f.Target == "" && !f.Required {
		return json.Marshal(f.Type)
	}

	return json.Marshal(struct {
		Type     string `json:"type"`
		Target   string `json:"target,omitempty"`
		Required bool   `json:"required,omitempty"`
	}{f.Type, f.Target, f.Required})
}

func isFieldType(name string) bool {
	switch name {
	case FieldTypeString, FieldTypeNumber, FieldTypeArray, FieldTypeObject, FieldTypeBoolean:
		return true
	}

	return false
}
