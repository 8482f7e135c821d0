package server

import (
	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/export"
	"github.com/straja-ai/ukredact/internal/pipeline"
)

// AnalyzeRequest is the body of POST /v1/analyze. An empty text is valid
// and yields an empty result.
type AnalyzeRequest struct {
	Text *string `json:"text" binding:"required" jsonschema:"required,description=Text to analyze and redact"`
}

// AnalyzeResponse is returned by the analyze endpoints. Positions are
// character offsets into the submitted text.
type AnalyzeResponse struct {
	RequestID       string            `json:"request_id"`
	AnonymizedText  string            `json:"anonymized_text"`
	Report          string            `json:"report"`
	Entities        []export.Entity   `json:"entities"`
	Statistics      export.Statistics `json:"statistics"`
	OverlapsRemoved int               `json:"overlaps_removed"`
	Dropped         int               `json:"dropped"`
	DurationMs      float64           `json:"duration_ms"`
	File            *FileInfo         `json:"file,omitempty"`
}

// FileInfo describes an uploaded document.
type FileInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Encoding string `json:"encoding,omitempty"`
	Chars    int    `json:"chars"`
}

// ExportRequest is the body of POST /v1/export.
type ExportRequest struct {
	Text     *string `json:"text" binding:"required" jsonschema:"required"`
	Kind     string  `json:"kind" binding:"required,oneof=anonymized entities full" jsonschema:"enum=anonymized,enum=entities,enum=full"`
	Format   string  `json:"format" binding:"required" jsonschema:"enum=txt,enum=md,enum=docx,enum=json,enum=csv"`
	Metadata *bool   `json:"metadata,omitempty" jsonschema:"description=Prefix anonymized text with the metadata header (default true)"`
	BaseName string  `json:"base_name,omitempty"`
}

// EntitiesResponse is returned by GET /v1/entities.
type EntitiesResponse struct {
	pipeline.Info
	Classes []ClassInfo `json:"classes"`
}

// ClassInfo is a known entity class and whether it is active.
type ClassInfo struct {
	entities.Class
	Enabled bool `json:"enabled"`
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}
