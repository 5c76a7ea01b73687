package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Format != FormatJSON {
		t.Errorf("Expected default format to be json, got %s", cfg.Format)
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  LogLevel
		format Format
		emit   func(zerolog.Logger)
		want   string
	}{
		{"info_json", LevelInfo, FormatJSON, func(l zerolog.Logger) { l.Info().Msg("test info message") }, `"message":"test info message"`},
		{"debug_json", LevelDebug, FormatJSON, func(l zerolog.Logger) { l.Debug().Msg("test debug message") }, `"level":"debug"`},
		{"warn_console", LevelWarn, FormatConsole, func(l zerolog.Logger) { l.Warn().Msg("test warn message") }, "test warn message"},
		{"error_json", LevelError, FormatJSON, func(l zerolog.Logger) { l.Error().Msg("test error message") }, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Format: tt.format, Output: buf})

			tt.emit(logger)

			output := buf.String()
			if !strings.Contains(output, tt.want) {
				t.Errorf("Expected output to contain %q, got %q", tt.want, output)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseLevel(tt.input)
			if result != tt.expected || (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) = (%v, %v), want %v (error %v)", tt.input, result, err, tt.expected, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", DefaultConfig(), ""},
		{"console", Config{Level: LevelDebug, Format: FormatConsole}, ""},
		{"bad level", Config{Level: "loud"}, `unknown log level "loud"`},
		{"bad format", Config{Level: LevelInfo, Format: "xml"}, `unknown log format "xml" (want json or console)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("provider")
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"provider"`) {
		t.Errorf("Expected output to contain component field, got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")

	// These should NOT appear (below warn level)
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	// These SHOULD appear (warn level and above)
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at Warn level")
	}
}
