package tokenize

import (
	"encoding/json"
	"fmt"

	"github.com/hyperjump/toridasu/internal/models"
)

// tokenDump is the envelope form of a provider token file.
type tokenDump struct {
	Tokens []models.RawToken `json:"tokens"`
}

// DecodeTokens parses a provider token file: either a bare JSON array of
// tokens or an object with a "tokens" field.
func DecodeTokens(content []byte) ([]models.RawToken, error) {
	var tokens []models.RawToken
	if err := json.Unmarshal(content, &tokens); err == nil {
		return tokens, nil
	}
	var dump tokenDump
	if err := json.Unmarshal(content, &dump); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if dump.Tokens == nil {
		return nil, fmt.Errorf("parse token file: no tokens field")
	}
	return dump.Tokens, nil
}
