package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaultLogger(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logger_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := filepath.Join(tmpDir, "test.log")

	config := &Config{
		LogFilePath:   logPath,
		MaxSizeMB:     1,
		MaxBackups:    3,
		Level:         LevelDebug,
		EnableConsole: false,
	}

	logger, err := NewDefaultLogger(config)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	// The file is created lazily on the first write
	logger.Info("startup")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestLogLevels(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logger_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := filepath.Join(tmpDir, "test.log")

	config := &Config{
		LogFilePath:   logPath,
		MaxSizeMB:     1,
		MaxBackups:    3,
		Level:         LevelDebug,
		EnableConsole: false,
	}

	logger, err := NewDefaultLogger(config)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("test error"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	logContent := string(content)
	for _, want := range []string{
		"[DEBUG] debug message",
		"[INFO] info message",
		"[WARN] warn message",
		"[ERROR] error message",
		`error="test error"`,
	} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Log file missing %q", want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logger_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := filepath.Join(tmpDir, "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxSizeMB:   1,
		MaxBackups:  1,
		Level:       LevelWarn,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("should appear")

	content, _ := os.ReadFile(logPath)
	logContent := string(content)

	if strings.Contains(logContent, "should not appear") {
		t.Error("Messages below the configured level were logged")
	}
	if !strings.Contains(logContent, "should appear") {
		t.Error("Warn message was not logged")
	}
}

func TestStructuredFields(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logger_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := filepath.Join(tmpDir, "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxSizeMB:   1,
		MaxBackups:  1,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Info("job started",
		String("job_id", "abc123"),
		Int("attempt", 2),
		Bool("retry", true),
	)

	content, _ := os.ReadFile(logPath)
	logContent := string(content)

	for _, want := range []string{"job_id=abc123", "attempt=2", "retry=true"} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Log file missing field %q", want)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	// Uninitialized global logger should be a usable no-op
	SetGlobalLogger(nil)
	GetLogger().Info("discarded")

	tmpDir, err := os.MkdirTemp("", "logger_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := filepath.Join(tmpDir, "global.log")
	if err := Init(&Config{
		LogFilePath: logPath,
		MaxSizeMB:   1,
		MaxBackups:  1,
		Level:       LevelInfo,
	}); err != nil {
		t.Fatalf("Failed to init global logger: %v", err)
	}
	defer Close()

	Info("global message", String("source", "test"))

	content, _ := os.ReadFile(logPath)
	if !strings.Contains(string(content), "global message") {
		t.Error("Global logger did not write to the configured file")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
