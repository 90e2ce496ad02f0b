package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"firestige.xyz/fabrictap/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"trace", logrus.TraceLevel},
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"ERROR", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if err != nil {
				t.Errorf("parseLevel(%q) returned error: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "fatal", "panic", ""} {
		t.Run(input, func(t *testing.T) {
			if _, err := parseLevel(input); err == nil {
				t.Errorf("parseLevel(%q) should return error, got nil", input)
			}
		})
	}
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()

	err := Configure(l, config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	l.Info("info message")
	l.WithField("iface", "eth0").Warn("warn message")

	output := buf.String()
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &entry); err != nil {
		t.Fatalf("Output is not one JSON object: %v (%q)", err, output)
	}
	if entry["msg"] != "warn message" || entry["iface"] != "eth0" {
		t.Errorf("Unexpected JSON entry: %v", entry)
	}
}

func TestConfigureText(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()

	if err := Configure(l, config.LogConfig{Level: "info", Format: "text"}, &buf); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	l.WithField("qp", 123).Info("frame captured")

	output := buf.String()
	if !strings.Contains(output, `msg="frame captured"`) || !strings.Contains(output, "qp=123") {
		t.Errorf("Unexpected text output: %q", output)
	}
}

func TestConfigurePattern(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()

	cfg := config.LogConfig{
		Level:   "debug",
		Format:  "pattern",
		Pattern: "[%level] %func %msg %field",
		Time:    time.RFC3339,
	}
	if err := Configure(l, cfg, &buf); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	l.WithFields(logrus.Fields{"b": 2, "a": 1}).Debug("hello")

	want := "[DEBUG] TestConfigurePattern hello a=1 b=2\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestConfigureWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fabrictap.log")
	l := logrus.New()

	cfg := config.LogConfig{
		Level:  "debug",
		Format: "json",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{
				Enabled: true,
				Path:    logPath,
				Rotation: config.RotationConfig{
					MaxSizeMB:  10,
					MaxBackups: 3,
					MaxAgeDays: 7,
				},
			},
		},
	}
	if err := Configure(l, cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	l.Info("to file")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file was not created at %s: %v", logPath, err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("Log file missing entry: %q", data)
	}
}

func TestConfigureErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want string
	}{
		{"level", config.LogConfig{Level: "invalid", Format: "json"}, "invalid log level"},
		{"format", config.LogConfig{Level: "info", Format: "xml"}, "unsupported log format"},
		{"file path", config.LogConfig{Level: "info", Format: "json",
			Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{Enabled: true}}}, "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Configure(logrus.New(), tt.cfg, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPatternFieldsRenderErrors(t *testing.T) {
	entry := logrus.NewEntry(logrus.New()).WithError(errors.New("boom"))
	if got := fields(entry); got != "error=boom" {
		t.Errorf("fields() = %q", got)
	}
	if got := caller(entry); got != "-" {
		t.Errorf("caller() without caller info = %q", got)
	}
}
