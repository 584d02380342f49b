package models

import "github.com/shopspring/decimal"

// SectionType classifies a document section.
type SectionType int

const (
	// SectionOther is a section with no recognized role.
	SectionOther SectionType = iota
	// SectionHoldings contains the holdings table(s).
	SectionHoldings
	// SectionSummary contains stated totals and summary lines.
	SectionSummary
)

// String returns a string representation of the section type.
func (s SectionType) String() string {
	switch s {
	case SectionHoldings:
		return "holdings"
	case SectionSummary:
		return "summary"
	case SectionOther:
		return "other"
	default:
		return "unknown"
	}
}

// Field is a semantic column role in a holdings table.
type Field string

const (
	FieldIdentifier  Field = "identifier"
	FieldDescription Field = "description"
	FieldQuantity    Field = "quantity"
	FieldPrice       Field = "price"
	FieldCurrency    Field = "currency"
	FieldValuation   Field = "valuation"
	FieldPerformance Field = "performance"
)

// Section is a contiguous, non-overlapping run of lines. Sections cover the
// whole document.
type Section struct {
	Type      SectionType `json:"type"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"` // inclusive
	// StatedTotal is the document-stated total captured from a summary
	// section, when one was found.
	StatedTotal *decimal.Decimal `json:"stated_total,omitempty"`
	Currency    string           `json:"currency,omitempty"`
}

// Contains reports whether line falls inside the section.
func (s *Section) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// Table is a detected tabular region. ColumnMap may be empty when no header
// row could be resolved; rows of an unmapped table fall back to
// proximity-based field extraction.
type Table struct {
	StartLine int           `json:"start_line"`
	EndLine   int           `json:"end_line"` // inclusive
	ColumnMap map[Field]int `json:"column_map,omitempty"`
	Rows      []*TableRow   `json:"-"`
}

// Mapped reports whether a header row was resolved for the table.
func (t *Table) Mapped() bool { return len(t.ColumnMap) > 0 }

// TableRow is one logical record row: an anchor line carrying the identifier
// plus any continuation lines merged into it.
type TableRow struct {
	// Tokens are the anchor line's tokens in reading order; ColumnMap
	// indices refer to this slice.
	Tokens []*Token
	// Continuation holds tokens from merged follow-on lines, in row order.
	Continuation []*Token
	Lines        []int
}

// All returns anchor and continuation tokens in reading order.
func (r *TableRow) All() []*Token {
	out := make([]*Token, 0, len(r.Tokens)+len(r.Continuation))
	out = append(out, r.Tokens...)
	out = append(out, r.Continuation...)
	return out
}

// Layout is the structure analysis of one document: its sections, tables, a
// fingerprint of the issuing institution's format, and the dominant number
// locale observed across the token stream.
type Layout struct {
	Sections       []*Section
	Tables         []*Table
	TypeKey        string
	DominantLocale NumberLocale
}

// SectionAt returns the section covering line, or nil.
func (l *Layout) SectionAt(line int) *Section {
	for _, s := range l.Sections {
		if s.Contains(line) {
			return s
		}
	}
	return nil
}

// StatedTotal returns the first stated total found in a summary section.
func (l *Layout) StatedTotal() (*decimal.Decimal, string) {
	for _, s := range l.Sections {
		if s.Type == SectionSummary && s.StatedTotal != nil {
			return s.StatedTotal, s.Currency
		}
	}
	return nil, ""
}

// StructureContext ties a cluster or record back to the structure element it
// came from.
type StructureContext struct {
	Table   *Table
	Row     *TableRow
	Section *Section
}

// InSummary reports whether the context lies in a summary section.
func (c StructureContext) InSummary() bool {
	return c.Section != nil && c.Section.Type == SectionSummary
}

// Cluster is a set of tokens believed to describe one security.
type Cluster struct {
	Tokens   []*Token
	Centroid Position
	Context  StructureContext
}
