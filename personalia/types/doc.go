// Package types provides request and response types for the Personalia API.
//
// All types in this package serialize to and from JSON with the PascalCase
// field names used by the Personalia API (TemplateId, RequestId, ErrorId).
//
// # Optional Fields
//
// Optional fields are represented as pointers. Helper functions are provided
// to create pointers to values:
//
//	req := &types.CreateContentRequest{
//		TemplateID: "0ab2e03f-c183-4cdf-bb2c-3bc6c316b80e",
//		Fields:     map[string]any{"Product": "iron"},
//		Output: &types.Output{
//			Format:       types.FormatPDF,
//			Quality:      types.QualityPrint,
//			StrictPolicy: types.Bool(true),
//		},
//	}
//
// # Enums
//
// Enums are represented as string types with constants for known values.
// Unknown values returned by the API are preserved and compare as strings.
// Job statuses compare case-insensitively through the ContentStatus methods.
package types
