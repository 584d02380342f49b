package models

import "time"

// PatternKind classifies what a learned pattern stores.
type PatternKind string

const (
	// PatternColumnMap stores a confirmed table column mapping.
	PatternColumnMap PatternKind = "column_map"
	// PatternCorrection stores a confirmed field correction.
	PatternCorrection PatternKind = "correction"
)

// LearnedPattern is a previously confirmed extraction hint for one document
// type. Patterns bias future extraction; they are a prior, never
// authoritative on their own.
type LearnedPattern struct {
	DocumentTypeKey string      `json:"document_type_key"`
	Kind            PatternKind `json:"kind"`
	// Template is the pattern payload, JSON-encoded (e.g. a column map).
	Template   string    `json:"template"`
	Confidence float64   `json:"confidence"`
	TimesUsed  int       `json:"times_used"`
	SuccessRate float64  `json:"success_rate"`
	UpdatedAt  time.Time `json:"updated_at"`
}
