package config

import "time"

// DefaultSynonyms is the built-in header-word vocabulary for column mapping.
// Institution-specific synonyms from config are merged on top.
var DefaultSynonyms = map[string][]string{
	"identifier":  {"isin", "identifier", "security id", "valor"},
	"description": {"description", "security", "designation", "instrument", "name"},
	"quantity":    {"quantity", "nominal", "units", "shares", "qty", "number"},
	"price":       {"price", "rate", "quote", "cost"},
	"currency":    {"currency", "ccy", "cur"},
	"valuation":   {"valuation", "value", "market value", "amount", "balance", "total"},
	"performance": {"performance", "perf", "return", "%"},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/toridasu/data/db/portfolios.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/toridasu/data/indices/records"
	}
	if cfg.Extraction.MinValue == 0 {
		cfg.Extraction.MinValue = 1e2
	}
	if cfg.Extraction.MaxValue == 0 {
		cfg.Extraction.MaxValue = 5e7
	}
	if cfg.Extraction.GridSize == 0 {
		cfg.Extraction.GridSize = 10
	}
	if cfg.Extraction.GridRadius == 0 {
		cfg.Extraction.GridRadius = 2
	}
	if cfg.Extraction.ArithmeticTolerance == 0 {
		cfg.Extraction.ArithmeticTolerance = 0.05
	}
	if cfg.Extraction.OutlierK == 0 {
		cfg.Extraction.OutlierK = 2.5
	}
	if cfg.Extraction.OutlierMinRecords == 0 {
		cfg.Extraction.OutlierMinRecords = 6
	}
	if cfg.Extraction.MaxContinuationRows == 0 {
		cfg.Extraction.MaxContinuationRows = 3
	}
	if len(cfg.Extraction.Currencies) == 0 {
		cfg.Extraction.Currencies = []string{"USD", "EUR", "CHF", "GBP", "JPY", "CAD", "AUD", "SEK", "NOK", "DKK"}
	}
	if cfg.Extraction.ColumnSynonyms == nil {
		cfg.Extraction.ColumnSynonyms = make(map[string][]string)
	}
	for field, words := range DefaultSynonyms {
		cfg.Extraction.ColumnSynonyms[field] = append(cfg.Extraction.ColumnSynonyms[field], words...)
	}
	if cfg.Extraction.SourceTimeout == 0 {
		cfg.Extraction.SourceTimeout = 30 * time.Second
	}
	if cfg.Vision.Model == "" {
		cfg.Vision.Model = "gemini-2.0-flash"
	}
	if cfg.Vision.APIKeyEnv == "" {
		cfg.Vision.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".json", ".pdf", ".txt", ".docx", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
