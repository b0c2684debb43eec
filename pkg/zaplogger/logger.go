// Copyright 2025 SGNL.ai, Inc.

// Package zaplogger builds the tool's diagnostic logger. Operational output
// (progress, results, rejections) goes to stdout and stderr on its own;
// diagnostics go through zap so they can be leveled, structured and rotated.
package zaplogger

import (
	"log"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a new zap.Logger based on the provided configuration.
// It uses sensible production defaults with JSON formatting and nanosecond
// precision for timestamps.
// It accepts a user supplied Config and optional zap options.
func New(cfg Config, zapOpts ...zap.Option) *zap.Logger {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		log.Fatal("Failed to parse log level")
	}

	// Add nanosecond precision to the timestamp.
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)

	zapCores := make([]zapcore.Core, 0, len(cfg.Mode))

	if slices.Contains(cfg.Mode, LogModeFile) {
		zapCores = append(zapCores, zapcore.NewCore(
			jsonEncoder,
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.FileMaxSize, // megabytes
				MaxBackups: cfg.FileMaxBackups,
				MaxAge:     cfg.FileMaxDays, // days
				Compress:   true,
			}),
			logLevel,
		))
	}

	// Console diagnostics go to stderr: stdout belongs to the operation
	// output stream.
	if slices.Contains(cfg.Mode, LogModeConsole) {
		zapCores = append(zapCores, zapcore.NewCore(
			jsonEncoder,
			zapcore.AddSync(os.Stderr),
			logLevel,
		))
	}

	core := zapcore.NewTee(zapCores...)

	logger := zap.New(core, zapOpts...)

	if cfg.ToolName != "" {
		logger = logger.With(zap.String("tool", cfg.ToolName))
	}

	// Replace the global logger zap.L() with the newly created one.
	zap.ReplaceGlobals(logger)

	// Redirect standard library logs to the zap logger for consistency.
	_, err = zap.RedirectStdLogAt(logger, logLevel)
	if err != nil {
		log.Fatalf("Can't redirect std to zap logger: %v", err)
	}

	return logger
}
