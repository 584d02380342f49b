// Package pipeline orchestrates extraction: it runs every configured source
// concurrently, fuses their records, and assembles the final portfolio.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/fusion"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/pattern"
	"github.com/hyperjump/toridasu/internal/source"
)

// ErrExtractionFailed is returned only when the input carried no tokens and
// no pages, so callers can tell "couldn't even start" from "nothing found".
var ErrExtractionFailed = errors.New("nothing to extract: no tokens or pages")

// learnThreshold is the minimum reconciliation accuracy before a run's
// column map is written back to pattern memory.
const learnThreshold = 0.9

// Pipeline runs extraction sources and fuses their output.
type Pipeline struct {
	sources  []source.Source
	fuser    *fusion.Fuser
	patterns *pattern.Store
	timeout  time.Duration
	logger   *zap.Logger
}

// New builds the pipeline from config: the token source always, the vision
// source when enabled. patterns may be nil to disable pattern memory.
func New(cfg *config.Config, patterns *pattern.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	var reader pattern.Reader
	if patterns != nil {
		reader = patterns
	}
	sources := []source.Source{
		source.NewTokenSource(&cfg.Extraction, reader, logger),
	}
	if cfg.Vision.Enabled {
		sources = append(sources, source.NewVisionSource(&cfg.Vision, &cfg.Extraction, logger))
	}
	return NewWithSources(cfg, patterns, logger, sources...)
}

// NewWithSources builds a pipeline over explicit sources.
func NewWithSources(cfg *config.Config, patterns *pattern.Store, logger *zap.Logger, sources ...source.Source) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	primary := ""
	for _, s := range sources {
		if s.Primary() {
			primary = s.Name()
			break
		}
	}
	return &Pipeline{
		sources:  sources,
		fuser:    fusion.New(primary, logger),
		patterns: patterns,
		timeout:  cfg.Extraction.SourceTimeout,
		logger:   logger,
	}
}

// sourceRun is one source's outcome, gathered before fusion.
type sourceRun struct {
	result *source.Result
	report models.SourceReport
}

// Extract runs all sources concurrently, waits for every one, fuses the
// records, and returns a portfolio, possibly empty. A failed or timed-out
// source contributes zero records; sources that ran over real input and
// found no holdings yield an empty portfolio. Only input with no tokens
// and no pages at all is an error.
func (p *Pipeline) Extract(ctx context.Context, in source.Input) (*models.Portfolio, error) {
	if len(in.Tokens) == 0 && len(in.Pages) == 0 {
		return nil, ErrExtractionFailed
	}
	runs := make([]sourceRun, len(p.sources))
	var wg sync.WaitGroup
	for i, s := range p.sources {
		wg.Add(1)
		go func(i int, s source.Source) {
			defer wg.Done()
			runs[i] = p.runSource(ctx, s, in)
		}(i, s)
	}
	wg.Wait()

	var layout *models.Layout
	lists := make([][]*models.SecurityRecord, 0, len(runs))
	reports := make([]models.SourceReport, 0, len(runs))
	for i, run := range runs {
		reports = append(reports, run.report)
		if run.result == nil {
			continue
		}
		lists = append(lists, run.result.Records)
		if layout == nil && p.sources[i].Primary() {
			layout = run.result.Layout
		}
	}

	records := p.fuser.Fuse(lists...)

	portfolio := &models.Portfolio{
		ID:        uuid.NewString(),
		Records:   records,
		Sources:   reports,
		CreatedAt: time.Now(),
	}
	if layout != nil {
		total, currency := layout.StatedTotal()
		portfolio.StatedTotal = total
		portfolio.Currency = currency
	}
	portfolio.ComputeTotals()

	p.learn(ctx, layout, portfolio)

	p.logger.Info("extraction complete",
		zap.String("portfolio_id", portfolio.ID),
		zap.String("file", in.Filename),
		zap.Int("records", len(records)),
		zap.Float64("accuracy", portfolio.Accuracy))
	return portfolio, nil
}

// runSource executes one source under the per-source timeout.
func (p *Pipeline) runSource(ctx context.Context, s source.Source, in source.Input) sourceRun {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	result, err := s.Extract(ctx, in)
	report := models.SourceReport{
		Name:    s.Name(),
		Elapsed: time.Since(start).Milliseconds(),
	}
	if err != nil {
		report.TimedOut = errors.Is(err, context.DeadlineExceeded)
		report.Err = err.Error()
		p.logger.Warn("extraction source failed",
			zap.String("source", s.Name()),
			zap.Bool("timed_out", report.TimedOut),
			zap.Error(err))
		return sourceRun{report: report}
	}
	report.Records = len(result.Records)
	return sourceRun{result: result, report: report}
}

// learn writes a run's confirmed column map back to pattern memory. A run
// confirms its map when reconciliation succeeded or no stated total existed
// to check against.
func (p *Pipeline) learn(ctx context.Context, layout *models.Layout, portfolio *models.Portfolio) {
	if p.patterns == nil || layout == nil || len(portfolio.Records) == 0 {
		return
	}
	for _, t := range layout.Tables {
		if !t.Mapped() {
			continue
		}
		good := portfolio.Accuracy == 0 || portfolio.Accuracy >= learnThreshold
		if good {
			if err := p.patterns.SaveColumnMap(ctx, layout.TypeKey, t.ColumnMap, portfolio.Accuracy); err != nil {
				p.logger.Warn("failed to save column map", zap.Error(err))
			}
		}
		if err := p.patterns.RecordUse(ctx, layout.TypeKey, models.PatternColumnMap, good); err != nil {
			p.logger.Warn("failed to record pattern use", zap.Error(err))
		}
		return
	}
}
