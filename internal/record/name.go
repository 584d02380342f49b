package record

import (
	"strings"

	"github.com/hyperjump/toridasu/internal/models"
)

const (
	nameMinLen = 10
	nameMaxLen = 100
)

// isNameToken reports whether a token can be part of a security name:
// anything that is not a number, currency, date, or identifier.
func isNameToken(t *models.Token) bool {
	switch t.Kind {
	case models.KindText, models.KindHeader:
		return true
	default:
		return false
	}
}

// buildName assembles the security name from a cluster: the longest plausible
// run of name tokens adjacent to the identifier, with continuation-row
// fragments appended in row order. Runs shorter than the plausibility bound
// are used only when nothing longer exists.
func buildName(primary, continuation []*models.Token, idIndex int) string {
	runs := nameRuns(primary)
	best := pickRun(runs, idIndex)
	parts := make([]string, 0, 8)
	for _, t := range best {
		parts = append(parts, t.Text)
	}
	for _, t := range continuation {
		if isNameToken(t) {
			parts = append(parts, t.Text)
		}
	}
	name := strings.Join(parts, " ")
	if len(name) > nameMaxLen {
		name = name[:nameMaxLen]
	}
	return strings.TrimSpace(name)
}

type nameRun struct {
	tokens []*models.Token
	start  int
}

// nameRuns finds contiguous runs of name tokens in reading order.
func nameRuns(tokens []*models.Token) []nameRun {
	var runs []nameRun
	var cur nameRun
	for i, t := range tokens {
		if isNameToken(t) {
			if len(cur.tokens) == 0 {
				cur.start = i
			}
			cur.tokens = append(cur.tokens, t)
			continue
		}
		if len(cur.tokens) > 0 {
			runs = append(runs, cur)
			cur = nameRun{}
		}
	}
	if len(cur.tokens) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// pickRun selects the run closest to the identifier among plausible-length
// runs, falling back to the longest run when none reaches the bound.
func pickRun(runs []nameRun, idIndex int) []*models.Token {
	if len(runs) == 0 {
		return nil
	}
	var best *nameRun
	bestDist := -1
	for i := range runs {
		r := &runs[i]
		if runLen(r) < nameMinLen {
			continue
		}
		d := distance(r.start, idIndex)
		if best == nil || d < bestDist {
			best, bestDist = r, d
		}
	}
	if best != nil {
		return best.tokens
	}
	// No plausible-length run: take the longest.
	longest := &runs[0]
	for i := range runs {
		if runLen(&runs[i]) > runLen(longest) {
			longest = &runs[i]
		}
	}
	return longest.tokens
}

func runLen(r *nameRun) int {
	n := len(r.tokens) - 1
	for _, t := range r.tokens {
		n += len(t.Text)
	}
	return n
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
