// Package log configures the process-wide logrus logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/fabrictap/internal/config"
)

// Init configures logrus' standard logger from cfg.
func Init(cfg config.LogConfig) error {
	return Configure(logrus.StandardLogger(), cfg, os.Stdout)
}

// Configure applies cfg to l. stdout is always an output.
func Configure(l *logrus.Logger, cfg config.LogConfig, stdout io.Writer) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	writers := []io.Writer{stdout}
	if cfg.Outputs.File.Enabled {
		w, err := createFileWriter(cfg.Outputs.File)
		if err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, w)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: cfg.Time}
	case "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: cfg.Time, DisableColors: true}
	case "pattern":
		pattern := cfg.Pattern
		if pattern == "" {
			pattern = "%time [%level] %caller: %msg %field"
		}
		formatter = &patternFormatter{pattern: pattern, time: cfg.Time}
		l.SetReportCaller(true)
	default:
		return fmt.Errorf("unsupported log format: %s (must be json, text or pattern)", cfg.Format)
	}

	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(io.MultiWriter(writers...))
	return nil
}

// parseLevel converts string level to logrus.Level. Fatal and panic are not
// accepted as configured levels.
func parseLevel(levelStr string) (logrus.Level, error) {
	switch strings.ToLower(levelStr) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.FileOutputConfig) (io.Writer, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}
