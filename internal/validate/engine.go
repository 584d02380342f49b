// Package validate annotates extracted records with checksum, arithmetic,
// and distribution flags. It never rewrites an extracted value: suspicious
// records are surfaced, not silently fixed.
package validate

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
)

// Engine runs the validation passes over a record list.
type Engine struct {
	tolerance  decimal.Decimal
	outlierK   float64
	minRecords int
	logger     *zap.Logger
}

// NewEngine creates a validation engine from the extraction config.
func NewEngine(cfg *config.ExtractionConfig, logger *zap.Logger) *Engine {
	return &Engine{
		tolerance:  decimal.NewFromFloat(cfg.ArithmeticTolerance),
		outlierK:   cfg.OutlierK,
		minRecords: cfg.OutlierMinRecords,
		logger:     logger,
	}
}

// Validate annotates records in place: the arithmetic cross-check where
// quantity and price are present, and IQR outlier flagging across the
// non-summary population.
func (e *Engine) Validate(records []*models.SecurityRecord) {
	for _, r := range records {
		e.checkArithmetic(r)
	}
	e.flagOutliers(records)
}

// checkArithmetic verifies quantity x price against the market value within
// relative tolerance. Failure flags the record but never removes it: the
// wrong field might be the quantity rather than the value, and that is for
// a reviewer to decide.
func (e *Engine) checkArithmetic(r *models.SecurityRecord) {
	if r.Quantity == nil || r.Price == nil || r.MarketValue.IsZero() {
		return
	}
	product := r.Quantity.Mul(*r.Price)
	bound := e.tolerance.Mul(r.MarketValue.Abs())
	ok := product.Sub(r.MarketValue).Abs().LessThanOrEqual(bound)
	r.Validation.ArithmeticOK = &ok
	if !ok && e.logger != nil {
		e.logger.Debug("arithmetic cross-check failed",
			zap.String("identifier", r.Identifier),
			zap.String("product", product.String()),
			zap.String("market_value", r.MarketValue.String()),
		)
	}
}

// flagOutliers marks records whose market value lies beyond Q3 + k*IQR of
// the non-summary population. With fewer than the minimum population the
// quartiles are meaningless and no flag is ever set.
func (e *Engine) flagOutliers(records []*models.SecurityRecord) {
	var values []float64
	for _, r := range records {
		if r.Summary {
			continue
		}
		v, _ := r.MarketValue.Float64()
		values = append(values, v)
	}
	if len(values) < e.minRecords {
		return
	}
	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	threshold := q3 + e.outlierK*(q3-q1)
	for _, r := range records {
		if r.Summary {
			continue
		}
		v, _ := r.MarketValue.Float64()
		if v > threshold {
			r.Validation.IsOutlier = true
			if e.logger != nil {
				e.logger.Debug("outlier flagged",
					zap.String("identifier", r.Identifier),
					zap.Float64("value", v),
					zap.Float64("threshold", threshold),
				)
			}
		}
	}
}

// quantile returns the q-th quantile of values using linear interpolation.
// values is sorted in place.
func quantile(values []float64, q float64) float64 {
	sort.Float64s(values)
	if len(values) == 1 {
		return values[0]
	}
	pos := q * float64(len(values)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(values) {
		return values[lo]
	}
	return values[lo] + frac*(values[lo+1]-values[lo])
}
