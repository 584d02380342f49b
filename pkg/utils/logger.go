package utils

import "go.uber.org/zap"

// NewProductionLogger returns a production zap logger.
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewLogger returns the process logger. Debug mode uses the human-readable
// development config at debug level, which surfaces per-stage extraction
// diagnostics (classification, clustering, fusion decisions); otherwise JSON
// at info level, which logs only run summaries and degraded sources.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
