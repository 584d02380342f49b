package tokenize

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/toridasu/internal/models"
)

// columnSpacing separates spreadsheet columns on the X axis. Wide enough
// that cells never share a clustering grid cell with their neighbors.
const columnSpacing = 100.0

// tokenizeExcel produces one token per non-empty cell. Each sheet is a page;
// Y is the row ordinal, X the column ordinal on the column-spacing scale.
func tokenizeExcel(content []byte) ([]models.RawToken, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var tokens []models.RawToken
	for si, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		for ri, row := range rows {
			for ci, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				tokens = append(tokens, models.RawToken{
					Text:  cell,
					Page:  si + 1,
					X:     float64(ci) * columnSpacing,
					Y:     float64(ri) * lineSpacing,
					Width: float64(utf8.RuneCountInString(cell)),
				})
			}
		}
	}
	return tokens, nil
}
