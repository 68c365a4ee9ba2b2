package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldType is the declared type of a template input field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
)

// Normalize lower-cases the type so "String" and "string" compare equal.
func (t FieldType) Normalize() FieldType {
	return FieldType(strings.ToLower(strings.TrimSpace(string(t))))
}

// TemplateField describes one input field of a template.
type TemplateField struct {
	Name        string    `json:"Name"`
	Type        FieldType `json:"Type"`
	Description string    `json:"Description,omitempty"`
}

// TemplateInfo lists the input fields a template expects.
type TemplateInfo struct {
	TemplateID string          `json:"TemplateId"`
	Fields     []TemplateField `json:"Fields"`
}

// UnmarshalJSON accepts Fields either as an array of {Name, Type,
// Description} or as an object keyed by field name. Object form is sorted
// by name.
func (t *TemplateInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		TemplateID string          `json:"TemplateId"`
		Fields     json.RawMessage `json:"Fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.TemplateID = raw.TemplateID
	t.Fields = nil

	fields := bytes.TrimSpace(raw.Fields)
	if len(fields) == 0 || string(fields) == "null" {
		return nil
	}

	switch fields[0] {
	case '[':
		return json.Unmarshal(fields, &t.Fields)
	case '{':
		var byName map[string]struct {
			Type        FieldType `json:"Type"`
			Description string    `json:"Description"`
		}
		if err := json.Unmarshal(fields, &byName); err != nil {
			return err
		}
		for name, f := range byName {
			t.Fields = append(t.Fields, TemplateField{Name: name, Type: f.Type, Description: f.Description})
		}
		sort.Slice(t.Fields, func(i, j int) bool { return t.Fields[i].Name < t.Fields[j].Name })
		return nil
	default:
		return fmt.Errorf("Fields: expected array or object, got %s", fields)
	}
}

// Field returns the field with the given name.
func (t *TemplateInfo) Field(name string) (TemplateField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TemplateField{}, false
}
