// Package fusion merges records from multiple extraction sources into a
// single deduplicated portfolio.
package fusion

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/models"
)

// Fuser deduplicates and orders records across extraction sources.
type Fuser struct {
	// primary is the provenance name that wins exact ties.
	primary string
	logger  *zap.Logger
}

// New creates a Fuser. primary names the source preferred on ties.
func New(primary string, logger *zap.Logger) *Fuser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fuser{primary: primary, logger: logger}
}

// Fuse merges the per-source record lists. Records sharing a fusion key
// collapse to one; the survivor is the record with the highest confidence,
// with arithmetic consistency and then primary provenance breaking ties.
// The merged list is ordered by market value descending and positions are
// reassigned from 1.
func (f *Fuser) Fuse(lists ...[]*models.SecurityRecord) []*models.SecurityRecord {
	byKey := make(map[string]*models.SecurityRecord)
	order := make([]string, 0)
	for _, list := range lists {
		for _, r := range list {
			key := r.FusionKey()
			if key == "" {
				// No identifier and no name at all: keep the record under a
				// unique key rather than dropping it.
				key = fmt.Sprintf("anon:%d", len(order))
			}
			existing, ok := byKey[key]
			if !ok {
				byKey[key] = r
				order = append(order, key)
				continue
			}
			if f.better(r, existing) {
				f.logger.Debug("fusion replaced record",
					zap.String("key", key),
					zap.String("winner", r.Provenance),
					zap.String("loser", existing.Provenance))
				byKey[key] = r
			}
		}
	}

	merged := make([]*models.SecurityRecord, 0, len(byKey))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].MarketValue.GreaterThan(merged[j].MarketValue)
	})
	for i, r := range merged {
		r.Position = i + 1
	}
	return merged
}

// better reports whether candidate should replace current for the same key.
func (f *Fuser) better(candidate, current *models.SecurityRecord) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	ca, cu := arithmeticOK(candidate), arithmeticOK(current)
	if ca != cu {
		return ca
	}
	return candidate.Provenance == f.primary && current.Provenance != f.primary
}

func arithmeticOK(r *models.SecurityRecord) bool {
	return r.Validation.ArithmeticOK != nil && *r.Validation.ArithmeticOK
}
