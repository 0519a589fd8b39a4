// Package logging builds the file-backed zap logger used across the
// pipeline.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger that writes to logPath.
// If logPath is empty, logging is disabled.
// If development is true, uses readable console output and debug level.
// Otherwise uses production JSON output at info level.
func New(logPath string, development bool) (*zap.Logger, error) {
	if logPath == "" {
		// No logging
		return zap.NewNop(), nil
	}

	// Open log file
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	level := zapcore.InfoLevel
	if development {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		level = zapcore.DebugLevel
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(logFile), level)

	return zap.New(core), nil
}
