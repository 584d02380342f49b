package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Validation holds the flags set by the validation engine. Nil pointers mean
// the check was not applicable (e.g. no quantity/price for the arithmetic
// cross-check).
type Validation struct {
	ChecksumOK   *bool `json:"checksum_ok,omitempty"`
	ArithmeticOK *bool `json:"arithmetic_ok,omitempty"`
	IsOutlier    bool  `json:"is_outlier,omitempty"`
}

// SecurityRecord is one extracted holding. Created by the record builder,
// mutated only by the validation engine (flags) and the fusion layer
// (position), immutable thereafter.
type SecurityRecord struct {
	Identifier  string           `json:"identifier,omitempty"`
	Name        string           `json:"name"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	MarketValue decimal.Decimal  `json:"market_value"`
	Category    string           `json:"category,omitempty"`
	Confidence  float64          `json:"confidence"`
	// Provenance tags the extraction source that produced the record.
	Provenance string     `json:"provenance"`
	Validation Validation `json:"validation"`
	// Position is the record's rank in the final portfolio, assigned by the
	// fusion layer after ordering.
	Position int `json:"position"`
	// Summary marks records built inside a summary section; they are kept
	// for diagnostics but excluded from the computed total.
	Summary bool `json:"summary,omitempty"`
	Context StructureContext `json:"-"`
}

// FusionKey returns the dedup key: the identifier when present and
// checksum-valid, otherwise a normalized name prefix. A nameless record
// falls back to its identifier even when the checksum failed, so it is
// never dropped during fusion.
func (r *SecurityRecord) FusionKey() string {
	if r.Identifier != "" && r.Validation.ChecksumOK != nil && *r.Validation.ChecksumOK {
		return r.Identifier
	}
	if key := NormalizeNameKey(r.Name); key != "" {
		return key
	}
	return r.Identifier
}

// Portfolio is the pipeline output: deduplicated records plus totals and the
// reconciliation diagnostic.
type Portfolio struct {
	ID      string            `json:"id,omitempty"`
	Records []*SecurityRecord `json:"records"`
	// ComputedTotal is the sum of market values over non-summary records.
	ComputedTotal decimal.Decimal  `json:"computed_total"`
	StatedTotal   *decimal.Decimal `json:"stated_total,omitempty"`
	// Accuracy is min(computed, stated)/max(computed, stated); 0 when no
	// stated total was captured. Diagnostic only, never a gate.
	Accuracy  float64        `json:"accuracy"`
	Currency  string         `json:"currency,omitempty"`
	Sources   []SourceReport `json:"sources,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ComputeTotals recalculates ComputedTotal and Accuracy from the records.
func (p *Portfolio) ComputeTotals() {
	total := decimal.Zero
	for _, r := range p.Records {
		if r.Summary {
			continue
		}
		total = total.Add(r.MarketValue)
	}
	p.ComputedTotal = total
	p.Accuracy = 0
	if p.StatedTotal != nil && p.StatedTotal.IsPositive() && total.IsPositive() {
		lo, hi := total, *p.StatedTotal
		if lo.GreaterThan(hi) {
			lo, hi = hi, lo
		}
		acc, _ := lo.Div(hi).Float64()
		p.Accuracy = acc
	}
}

// SourceReport summarizes one extraction source's contribution for
// provenance and debugging.
type SourceReport struct {
	Name     string `json:"name"`
	Records  int    `json:"records"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Err      string `json:"error,omitempty"`
	Elapsed  int64  `json:"elapsed_ms"`
}

// Guess is the contract for external model-backed extraction sources: a
// self-reported holding with its own confidence. Guesses are converted to
// records and fused like any other source, never privileged.
type Guess struct {
	Identifier string  `json:"identifier"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Currency   string  `json:"currency"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}
