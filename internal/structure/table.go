package structure

import (
	"strings"

	"github.com/hyperjump/toridasu/internal/models"
)

// minRowSegments is the minimum number of space-separated segments for a line
// to anchor a table row.
const minRowSegments = 4

// headerScanDepth is how many lines preceding a table run are scanned for a
// header row.
const headerScanDepth = 3

// isAnchorLine reports whether a line can start a table row: at least one
// identifier token and enough segments to plausibly hold tabular fields.
func isAnchorLine(line []*models.Token) bool {
	if len(line) < minRowSegments {
		return false
	}
	for _, t := range line {
		if t.Kind == models.KindIdentifier {
			return true
		}
	}
	return false
}

// detectTables finds contiguous runs of anchor lines (allowing bounded gaps
// of continuation lines between anchors) and builds one Table per run,
// merging continuation lines into the preceding row.
func (a *Analyzer) detectTables(lines [][]*models.Token) []*models.Table {
	var tables []*models.Table
	i := 0
	for i < len(lines) {
		if !isAnchorLine(lines[i]) {
			i++
			continue
		}
		table := &models.Table{StartLine: i}
		end := i
		for j := i; j < len(lines); {
			if !isAnchorLine(lines[j]) {
				break
			}
			row := &models.TableRow{Tokens: lines[j], Lines: []int{j}}
			end = j
			j++
			// Merge follow-on lines while the row lacks fields.
			merged := 0
			for j < len(lines) && merged < a.maxContinuation && !isAnchorLine(lines[j]) && !a.rowComplete(row) {
				if isHeaderLine(lines[j]) || a.isSummaryLine(lines[j]) {
					break
				}
				row.Continuation = append(row.Continuation, lines[j]...)
				row.Lines = append(row.Lines, j)
				end = j
				j++
				merged++
			}
			table.Rows = append(table.Rows, row)
			// Skip residual non-anchor lines between rows, bounded so a
			// paragraph of prose does not get swallowed into the table.
			gap := 0
			for j < len(lines) && gap < a.maxContinuation && !isAnchorLine(lines[j]) {
				if isHeaderLine(lines[j]) || a.isSummaryLine(lines[j]) {
					break
				}
				gap++
				j++
			}
			if j < len(lines) && !isAnchorLine(lines[j]) {
				break
			}
		}
		table.EndLine = end
		table.ColumnMap = a.resolveColumns(lines, table.StartLine)
		tables = append(tables, table)
		i = end + 1
	}
	return tables
}

// rowComplete reports whether a row already carries an identifier plus a
// description or a monetary value, the early-stop condition for continuation
// merging.
func (a *Analyzer) rowComplete(row *models.TableRow) bool {
	var hasID, hasDesc, hasValue bool
	for _, t := range row.All() {
		switch {
		case t.Kind == models.KindIdentifier:
			hasID = true
		case t.Kind == models.KindText && len(t.Text) >= 4:
			hasDesc = true
		case t.IsNumeric() && a.classifier.Monetary(t.Number):
			hasValue = true
		}
	}
	return hasID && (hasDesc || hasValue)
}

// resolveColumns scans the lines preceding (and including) the table's first
// line for header words and maps each recognized field to its segment index.
// A table whose header cannot be resolved keeps an empty map; its rows fall
// back to proximity extraction.
func (a *Analyzer) resolveColumns(lines [][]*models.Token, startLine int) map[models.Field]int {
	from := startLine - headerScanDepth
	if from < 0 {
		from = 0
	}
	for i := startLine; i >= from; i-- {
		if i >= len(lines) {
			continue
		}
		m := a.matchHeaderLine(lines[i])
		if len(m) >= 2 {
			return m
		}
	}
	return nil
}

// matchHeaderLine maps column synonyms found in a line to their token index.
func (a *Analyzer) matchHeaderLine(line []*models.Token) map[models.Field]int {
	m := make(map[models.Field]int)
	for idx, t := range line {
		word := strings.ToLower(strings.TrimSpace(t.Text))
		if word == "" {
			continue
		}
		for field, words := range a.synonyms {
			if _, seen := m[field]; seen {
				continue
			}
			for _, w := range words {
				if word == w || strings.HasPrefix(word, w) {
					m[field] = idx
					break
				}
			}
		}
	}
	return m
}
