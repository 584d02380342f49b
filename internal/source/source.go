// Package source defines extraction sources: independent strategies that take
// a document's raw material and produce security records for fusion.
package source

import (
	"context"

	"github.com/hyperjump/toridasu/internal/models"
)

// Page is one rendered document page for image-based sources.
type Page struct {
	Number   int
	MIMEType string
	Data     []byte
}

// Input is the material handed to every source. Tokens may be empty for a
// scanned document; Pages may be empty when no renderer is available.
type Input struct {
	Filename string
	Tokens   []models.RawToken
	Pages    []Page
}

// Result is one source's output. Layout is nil for sources that perform no
// structural analysis.
type Result struct {
	Records []*models.SecurityRecord
	Layout  *models.Layout
}

// Source is one extraction strategy. Extract must honor ctx cancellation;
// a source that fails or times out contributes zero records, never an abort.
type Source interface {
	Name() string
	// Primary reports whether this source wins exact ties during fusion.
	Primary() bool
	Extract(ctx context.Context, in Input) (*Result, error)
}
