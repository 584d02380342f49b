package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
)

// VisionName is the provenance tag of the model-backed vision source.
const VisionName = "vision"

const visionPrompt = `You are reading pages of a financial holdings statement.
List every security holding you can see. Respond with a JSON array only, one
object per holding: {"identifier": "ISIN or empty", "name": "security name",
"value": market value as a plain number, "currency": "3-letter code",
"category": "asset category or empty", "confidence": 0.0-1.0}.
Do not include portfolio totals or section subtotals as holdings.`

// VisionSource extracts holdings from rendered page images via the Gemini
// API. Its guesses are fused like any other source's records, never trusted
// over the token pipeline.
type VisionSource struct {
	cfg    *config.VisionConfig
	ext    *config.ExtractionConfig
	logger *zap.Logger
}

// NewVisionSource creates the vision source. The API key is read from the
// environment at extraction time, not at construction.
func NewVisionSource(cfg *config.VisionConfig, ext *config.ExtractionConfig, logger *zap.Logger) *VisionSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionSource{cfg: cfg, ext: ext, logger: logger}
}

func (s *VisionSource) Name() string  { return VisionName }
func (s *VisionSource) Primary() bool { return false }

// Extract sends the page images to the model and converts its guesses to
// records.
func (s *VisionSource) Extract(ctx context.Context, in Input) (*Result, error) {
	if len(in.Pages) == 0 {
		return nil, errors.New("no page images in input")
	}
	apiKey := os.Getenv(s.cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", s.cfg.APIKeyEnv)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	parts := []*genai.Part{{Text: visionPrompt}}
	for _, p := range in.Pages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
		})
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
	}
	result, err := client.Models.GenerateContent(ctx, s.cfg.Model,
		[]*genai.Content{{Parts: parts}}, genConfig)
	if err != nil {
		return nil, fmt.Errorf("vision generation failed: %w", err)
	}

	guesses, err := parseGuesses(result.Text())
	if err != nil {
		return nil, err
	}
	records := s.recordsFromGuesses(guesses)

	s.logger.Debug("vision source extracted",
		zap.String("file", in.Filename),
		zap.Int("pages", len(in.Pages)),
		zap.Int("guesses", len(guesses)),
		zap.Int("records", len(records)))

	return &Result{Records: records}, nil
}

// parseGuesses decodes the model output, repairing malformed JSON first.
func parseGuesses(raw string) ([]models.Guess, error) {
	var guesses []models.Guess
	if err := json.Unmarshal([]byte(raw), &guesses); err == nil {
		return guesses, nil
	}
	repaired, err := jsonrepair.RepairJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to repair model output: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &guesses); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return guesses, nil
}

// recordsFromGuesses converts guesses to records, dropping implausible values
// and checksum-verifying any identifier the model reports.
func (s *VisionSource) recordsFromGuesses(guesses []models.Guess) []*models.SecurityRecord {
	records := make([]*models.SecurityRecord, 0, len(guesses))
	for _, g := range guesses {
		if g.Name == "" || g.Value <= s.ext.MinValue || g.Value > s.ext.MaxValue {
			continue
		}
		conf := g.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		r := &models.SecurityRecord{
			Name:        g.Name,
			Currency:    g.Currency,
			Category:    g.Category,
			MarketValue: decimal.NewFromFloat(g.Value),
			Confidence:  conf,
			Provenance:  VisionName,
		}
		if id := classify.ParseIdentifier(g.Identifier); id != nil {
			r.Identifier = id.Code
			ok := id.ChecksumValid
			r.Validation.ChecksumOK = &ok
			if !ok {
				r.Confidence *= 0.7
			}
		}
		records = append(records, r)
	}
	return records
}
