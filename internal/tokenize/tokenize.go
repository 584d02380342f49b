// Package tokenize turns document files into positioned raw tokens for the
// extraction pipeline. PDFs keep their text-layer geometry; formats without
// geometry (plain text, word processor files, spreadsheets) get synthetic
// line/offset positions on the same scale.
package tokenize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"

	"github.com/hyperjump/toridasu/internal/models"
)

// lineSpacing is the synthetic Y distance between consecutive lines. It
// matches the clustering grid so one line maps to one cell row.
const lineSpacing = 10.0

// Tokenizer produces raw tokens from document files.
type Tokenizer struct{}

// New returns a new Tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

// FromFile reads the file at path and tokenizes it based on its extension.
// JSON files are treated as pre-positioned token dumps from an external OCR
// or vision provider.
func (t *Tokenizer) FromFile(path string) ([]models.RawToken, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return DecodeTokens(content)
	case ".pdf":
		return tokenizePDF(content)
	case ".xlsx":
		return tokenizeExcel(content)
	case ".docx", ".odt", ".rtf":
		text, err := cat.File(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", ext, err)
		}
		return tokenizePlain(text), nil
	default:
		return tokenizePlain(string(content)), nil
	}
}
