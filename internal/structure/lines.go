package structure

import (
	"sort"
	"strings"

	"github.com/hyperjump/toridasu/internal/models"
)

// BuildLines groups tokens into reading-order lines: tokens on the same page
// whose vertical positions fall within tolerance of the line's anchor share a
// line. Each token's Line index is assigned as a side effect.
func BuildLines(tokens []*models.Token, tolerance float64) [][]*models.Token {
	if len(tokens) == 0 {
		return nil
	}
	sorted := make([]*models.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Pos, sorted[j].Pos
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	var lines [][]*models.Token
	var current []*models.Token
	anchorPage, anchorY := sorted[0].Pos.Page, sorted[0].Pos.Y
	for _, t := range sorted {
		if t.Pos.Page != anchorPage || t.Pos.Y-anchorY > tolerance {
			lines = append(lines, current)
			current = nil
			anchorPage, anchorY = t.Pos.Page, t.Pos.Y
		}
		current = append(current, t)
	}
	lines = append(lines, current)

	for i, line := range lines {
		sort.SliceStable(line, func(a, b int) bool { return line[a].Pos.X < line[b].Pos.X })
		for _, t := range line {
			t.Line = i
		}
	}
	return lines
}

// LineText joins a line's token texts with single spaces.
func LineText(line []*models.Token) string {
	parts := make([]string, len(line))
	for i, t := range line {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}
