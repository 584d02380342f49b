package tokenize

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/toridasu/internal/models"
)

// wordGap is the horizontal distance, in fractions of the font size, beyond
// which adjacent text fragments belong to different words.
const wordGap = 0.3

// tokenizePDF reads the PDF text layer and produces one token per word.
// The X coordinate is the fragment's real page position, which is what
// column detection keys on; Y is the row ordinal on the line-spacing scale
// so reading order survives the bottom-up PDF coordinate system.
func tokenizePDF(content []byte) ([]models.RawToken, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	var tokens []models.RawToken
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i+1, err)
		}
		for ri, row := range rows {
			y := float64(ri) * lineSpacing
			for _, w := range wordsFromRow(row.Content) {
				w.Page = i + 1
				w.Y = y
				tokens = append(tokens, w)
			}
		}
	}
	return tokens, nil
}

// wordsFromRow merges a row's text fragments into words. Fragments separated
// by less than wordGap of the font size join; anything wider starts a new
// word.
func wordsFromRow(texts []pdf.Text) []models.RawToken {
	var words []models.RawToken
	var cur *models.RawToken
	var curEnd float64
	flush := func() {
		if cur != nil && cur.Text != "" {
			cur.Width = curEnd - cur.X
			words = append(words, *cur)
		}
		cur = nil
	}
	for _, t := range texts {
		if t.S == " " || t.S == "" {
			flush()
			continue
		}
		gap := t.FontSize * wordGap
		if gap <= 0 {
			gap = 1
		}
		if cur == nil || t.X-curEnd > gap {
			flush()
			cur = &models.RawToken{Text: t.S, X: t.X}
			curEnd = t.X + t.W
			continue
		}
		cur.Text += t.S
		curEnd = t.X + t.W
	}
	flush()
	return words
}
