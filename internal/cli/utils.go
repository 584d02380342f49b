// Package cli provides CLI output utilities for Toridasu.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/toridasu/internal/index"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WritePortfolio writes an extracted portfolio to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WritePortfolio(w io.Writer, p *models.Portfolio, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	default:
		writePortfolioText(w, p)
		return nil
	}
}

func writePortfolioText(w io.Writer, p *models.Portfolio) {
	fmt.Fprintf(w, "\nPortfolio %s: %d record(s)\n", p.ID, len(p.Records))
	fmt.Fprintf(w, "Computed total: %s %s\n", p.ComputedTotal.String(), p.Currency)
	if p.StatedTotal != nil {
		fmt.Fprintf(w, "Stated total:   %s %s (accuracy %.4f)\n", p.StatedTotal.String(), p.Currency, p.Accuracy)
	}
	for _, s := range p.Sources {
		state := "ok"
		if s.TimedOut {
			state = "timed out"
		} else if s.Err != "" {
			state = "failed"
		}
		fmt.Fprintf(w, "Source %-8s %d record(s), %dms (%s)\n", s.Name, s.Records, s.Elapsed, state)
	}
	fmt.Fprintln(w)
	for _, r := range p.Records {
		writeOneRecord(w, r)
	}
}

func writeOneRecord(w io.Writer, r *models.SecurityRecord) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "#%d %s\n", r.Position, utils.Truncate(r.Name, 60))
	if r.Identifier != "" {
		mark := ""
		if r.Validation.ChecksumOK != nil && !*r.Validation.ChecksumOK {
			mark = "  (checksum failed)"
		}
		fmt.Fprintf(w, "ID: %s%s\n", r.Identifier, mark)
	}
	fmt.Fprintf(w, "Value: %s %s | Confidence: %.2f | Source: %s\n",
		r.MarketValue.String(), r.Currency, r.Confidence, r.Provenance)
	if r.Validation.IsOutlier {
		fmt.Fprintln(w, "Flagged as outlier")
	}
	if r.Summary {
		fmt.Fprintln(w, "Summary row (excluded from totals)")
	}
	fmt.Fprintln(w)
}

// WriteHits writes record search hits to w in the given format.
func WriteHits(w io.Writer, hits []*index.Hit, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	default:
		writeHitsText(w, hits)
		return nil
	}
}

func writeHitsText(w io.Writer, hits []*index.Hit) {
	fmt.Fprintf(w, "\nFound %d matching record(s)\n\n", len(hits))
	for _, h := range hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Score: %.4f | Portfolio: %s\n", h.Score, h.PortfolioID)
		if h.Identifier != "" {
			fmt.Fprintf(w, "ID: %s\n", h.Identifier)
		}
		fmt.Fprintf(w, "%s\n", utils.Truncate(h.Name, 80))
		fmt.Fprintf(w, "Value: %.2f %s\n\n", h.Value, h.Currency)
	}
}

// PrintPortfolio prints a portfolio to stdout in text format.
func PrintPortfolio(p *models.Portfolio) {
	_ = WritePortfolio(os.Stdout, p, OutputText)
}
