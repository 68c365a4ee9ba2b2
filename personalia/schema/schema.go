// Package schema turns template field definitions into JSON Schema and
// checks content request fields against them before submission.
//
// The checks mirror what the API rejects with errors 111 (missing field),
// 112 (bad date) and 113 (bad number), so a failing request is caught
// without spending credits.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

const (
	datePattern   = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`
	numberPattern = `^-?[0-9]+(\.[0-9]+)?$`
)

// Build returns the JSON Schema document for the Fields object of a
// request against info. Every template field is required.
func Build(info *types.TemplateInfo) map[string]any {
	props := make(map[string]any, len(info.Fields))
	required := make([]string, 0, len(info.Fields))
	for _, f := range info.Fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      "Fields of template " + info.TemplateID,
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func fieldSchema(f types.TemplateField) map[string]any {
	s := map[string]any{}
	if f.Description != "" {
		s["description"] = f.Description
	}
	switch f.Type.Normalize() {
	case types.FieldString:
		s["type"] = "string"
	case types.FieldNumber:
		s["anyOf"] = []any{
			map[string]any{"type": "number"},
			map[string]any{"type": "string", "pattern": numberPattern},
		}
	case types.FieldBoolean:
		s["anyOf"] = []any{
			map[string]any{"type": "boolean"},
			map[string]any{"enum": []any{"0", "1", "true", "false"}},
		}
	case types.FieldDate:
		s["type"] = "string"
		s["format"] = "date"
		s["pattern"] = datePattern
	default:
		s["type"] = []any{"string", "number", "boolean"}
	}
	return s
}

// Compile compiles the schema for info.
func Compile(info *types.TemplateInfo) (*jsonschema.Schema, error) {
	b, err := json.Marshal(Build(info))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	const url = "fields.json"
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// ValidateFields checks fields against info. Validation failures wrap
// types.ErrInvalidRequest and the *jsonschema.ValidationError.
func ValidateFields(info *types.TemplateInfo, fields map[string]any) error {
	s, err := Compile(info)
	if err != nil {
		return err
	}

	// Round-trip so Go ints and float32s reach the validator as JSON numbers.
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: fields: %v", types.ErrInvalidRequest, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal fields: %w", err)
	}
	if v == nil {
		v = map[string]any{}
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: fields do not match template %s: %w", types.ErrInvalidRequest, info.TemplateID, err)
	}
	return nil
}

// InfoSource looks up template definitions.
type InfoSource interface {
	Info(ctx context.Context, templateID string) (*types.TemplateInfo, error)
}

// Validator checks requests against the live template definition.
type Validator struct {
	source InfoSource
}

// NewValidator creates a Validator backed by source.
func NewValidator(source InfoSource) *Validator {
	return &Validator{source: source}
}

// ValidateFields fetches the template of req and validates its fields.
func (v *Validator) ValidateFields(ctx context.Context, req *types.CreateContentRequest) error {
	info, err := v.source.Info(ctx, req.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w", req.TemplateID, err)
	}
	return ValidateFields(info, req.Fields)
}

// ExampleFields returns a sample Fields map for info. Dates use today's
// date.
func ExampleFields(info *types.TemplateInfo, now time.Time) map[string]any {
	out := make(map[string]any, len(info.Fields))
	for _, f := range info.Fields {
		switch f.Type.Normalize() {
		case types.FieldString:
			out[f.Name] = "Example " + f.Name
		case types.FieldNumber:
			out[f.Name] = 100
		case types.FieldBoolean:
			out[f.Name] = "1"
		case types.FieldDate:
			out[f.Name] = now.Format(time.DateOnly)
		default:
			out[f.Name] = "Example value"
		}
	}
	return out
}
