package source

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/cluster"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/pattern"
	"github.com/hyperjump/toridasu/internal/record"
	"github.com/hyperjump/toridasu/internal/structure"
	"github.com/hyperjump/toridasu/internal/validate"
)

// TokenName is the provenance tag of the deterministic token pipeline.
const TokenName = "tokens"

// ErrNoTokens is returned when the input carries no usable positioned text.
var ErrNoTokens = errors.New("no tokens in input")

// TokenSource is the deterministic extraction pipeline over positioned
// tokens: classification, structure analysis, clustering, record building,
// validation.
type TokenSource struct {
	classifier *classify.Classifier
	analyzer   *structure.Analyzer
	clusterer  *cluster.Engine
	builder    *record.Builder
	validator  *validate.Engine
	logger     *zap.Logger
}

// NewTokenSource wires the pipeline stages. patterns may be nil to disable
// learned column maps.
func NewTokenSource(cfg *config.ExtractionConfig, patterns pattern.Reader, logger *zap.Logger) *TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := classify.New(cfg)
	return &TokenSource{
		classifier: cl,
		analyzer:   structure.NewAnalyzer(cfg, cl, patterns, logger),
		clusterer:  cluster.NewEngine(cfg),
		builder:    record.NewBuilder(cfg, cl, logger),
		validator:  validate.NewEngine(cfg, logger),
		logger:     logger,
	}
}

func (s *TokenSource) Name() string  { return TokenName }
func (s *TokenSource) Primary() bool { return true }

// Extract runs the full deterministic pipeline over the input tokens.
func (s *TokenSource) Extract(ctx context.Context, in Input) (*Result, error) {
	if len(in.Tokens) == 0 {
		return nil, ErrNoTokens
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := s.classifier.ClassifyAll(in.Tokens)
	layout, lines := s.analyzer.Analyze(tokens)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clusters := s.clusterer.Cluster(tokens, layout)
	records := s.builder.BuildAll(clusters, layout, lines, TokenName)
	s.validator.Validate(records)

	s.logger.Debug("token source extracted",
		zap.String("file", in.Filename),
		zap.Int("tokens", len(tokens)),
		zap.Int("clusters", len(clusters)),
		zap.Int("records", len(records)))

	return &Result{Records: records, Layout: layout}, nil
}
