package types

import (
	"sort"
	"strings"
)

// ContentStatus is the processing state of a content request.
type ContentStatus string

const (
	StatusPending    ContentStatus = "Pending"
	StatusInProgress ContentStatus = "InProgress"
	StatusCompleted  ContentStatus = "Completed"
	StatusFailed     ContentStatus = "Failed"
)

// IsCompleted reports whether the job finished successfully.
func (s ContentStatus) IsCompleted() bool {
	return strings.EqualFold(string(s), string(StatusCompleted))
}

// IsFailed reports whether the provider marked the job as failed.
func (s ContentStatus) IsFailed() bool {
	return strings.EqualFold(string(s), string(StatusFailed))
}

// IsTerminal reports whether polling can stop.
func (s ContentStatus) IsTerminal() bool {
	return s.IsCompleted() || s.IsFailed()
}

// OutputFormat is the rendered file type.
type OutputFormat string

const (
	FormatPDF OutputFormat = "PDF"
	FormatJPG OutputFormat = "JPG"
	FormatPNG OutputFormat = "PNG"
)

// OutputQuality selects screen or print rendering.
type OutputQuality string

const (
	QualityDisplay OutputQuality = "Display"
	QualityPrint   OutputQuality = "Print"
)

// Output controls how the document is rendered.
type Output struct {
	Format       OutputFormat  `json:"Format,omitempty"`
	Quality      OutputQuality `json:"Quality,omitempty"`
	Resolution   int           `json:"Resolution,omitempty"`
	Package      *bool         `json:"Package,omitempty"`
	StrictPolicy *bool         `json:"StrictPolicy,omitempty"`
}

// CreateContentRequest submits template field values for rendering.
// Field values must be strings, numbers or booleans.
type CreateContentRequest struct {
	TemplateID string         `json:"TemplateId"`
	Fields     map[string]any `json:"Fields"`
	Output     *Output        `json:"Output,omitempty"`
}

// Validate performs the client-side checks the API would otherwise reject
// with error 104 or 109.
func (r *CreateContentRequest) Validate() error {
	if r == nil {
		return invalid("request is nil")
	}
	if strings.TrimSpace(r.TemplateID) == "" {
		return invalid("TemplateId is required")
	}
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch r.Fields[name].(type) {
		case string, bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		default:
			return invalid("field %q has unsupported type %T", name, r.Fields[name])
		}
	}
	if r.Output == nil {
		return nil
	}
	switch r.Output.Format {
	case "", FormatPDF, FormatJPG, FormatPNG:
	default:
		return invalid("Output.Format %q must be PDF, JPG or PNG", r.Output.Format)
	}
	switch r.Output.Quality {
	case "", QualityDisplay, QualityPrint:
	default:
		return invalid("Output.Quality %q must be Display or Print", r.Output.Quality)
	}
	if r.Output.Resolution < 0 {
		return invalid("Output.Resolution must not be negative")
	}
	return nil
}

// CreateContentResponse is returned when a content request is accepted.
type CreateContentResponse struct {
	RequestID string `json:"RequestId"`
}

// Content is the state of a content request, including its result once
// completed.
type Content struct {
	RequestID          string        `json:"RequestId,omitempty"`
	Status             ContentStatus `json:"Status"`
	URLs               []string      `json:"URLs,omitempty"`
	Content            string        `json:"Content,omitempty"`
	ContentType        string        `json:"ContentType,omitempty"`
	FailureDescription string        `json:"FailureDescription,omitempty"`
	ErrorID            ErrorID       `json:"ErrorId,omitempty"`
}

// ContentURL is an on-demand URL that renders the document when fetched.
type ContentURL struct {
	URL string `json:"Url"`
}
