package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_BootstrapMode(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	if mgr == nil {
		t.Fatal("NewManager() returned nil")
	}

	logger := mgr.Logger()
	if logger == nil {
		t.Fatal("Manager.Logger() returned nil")
	}
}

func TestManager_Logger_Stable(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	logger1 := mgr.Logger()
	logger2 := mgr.Logger()

	if logger1 != logger2 {
		t.Error("Manager.Logger() should return the same instance")
	}
}

func TestManager_Upgrade_WritesJSONToFile(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	mgr.Logger().Info("test message", "key", "value")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var logEntry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &logEntry); err != nil {
		t.Errorf("Log file content is not valid JSON: %v\nContent: %s", err, content)
	}

	if msg, ok := logEntry["msg"].(string); !ok || msg != "test message" {
		t.Errorf("Log entry missing or wrong msg: %v", logEntry)
	}
}

func TestManager_Upgrade_CreatesParentDirs(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "nested", "dirs", "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() should create parent directories, got error: %v", err)
	}

	// The file itself is created lazily on first write.
	mgr.Logger().Info("first line")
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestManager_Close(t *testing.T) {
	mgr := NewManager()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	// Close should not error
	err = mgr.Close()
	if err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Calling Close again should be safe
	err = mgr.Close()
	if err != nil {
		t.Errorf("Close() second call error = %v", err)
	}
}

func TestManager_BootstrapMode_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	textHandler := slog.NewTextHandler(&buf, nil)
	sh := NewSwappableHandler(textHandler)
	logger := slog.New(sh)

	logger.Info("bootstrap test", "foo", "bar")

	output := buf.String()

	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Bootstrap mode should use text format, got JSON-like: %s", output)
	}

	if !strings.Contains(output, "foo=bar") {
		t.Errorf("Text format should have key=value, got: %s", output)
	}
}

func TestManager_SetLevel(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	// Debug should not be logged at Info level
	mgr.Logger().Debug("debug message 1")

	mgr.SetLevel(slog.LevelDebug)

	// Now debug should be logged
	mgr.Logger().Debug("debug message 2")

	content, _ := os.ReadFile(logFile)
	output := string(content)

	if strings.Contains(output, "debug message 1") {
		t.Error("Debug message 1 should not appear at Info level")
	}
	if !strings.Contains(output, "debug message 2") {
		t.Error("Debug message 2 should appear after SetLevel(Debug)")
	}
}

func TestManager_LevelFiltering(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	logger := mgr.Logger()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	content, _ := os.ReadFile(logFile)
	output := string(content)

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be suppressed at Info level")
	}

	if !strings.Contains(output, "info message") {
		t.Error("Info message should appear")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should appear")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should appear")
	}
}

func TestParseLevelOrDefault(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel slog.Level
	}{
		{"valid debug", "debug", slog.LevelDebug},
		{"valid info", "info", slog.LevelInfo},
		{"valid warn", "warn", slog.LevelWarn},
		{"valid error", "error", slog.LevelError},
		{"invalid empty", "", slog.LevelInfo},
		{"invalid garbage", "invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevelOrDefault(tt.input)
			if got != tt.wantLevel {
				t.Errorf("ParseLevelOrDefault(%q) = %v, want %v", tt.input, got, tt.wantLevel)
			}
		})
	}
}

func TestLogger_With_CreatesChild(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	childLogger := mgr.Logger().With("component", "engine")

	if childLogger == mgr.Logger() {
		t.Error("With() should return a new logger instance")
	}

	childLogger.Info("child message")

	content, _ := os.ReadFile(logFile)
	if !strings.Contains(string(content), "child message") {
		t.Error("Child logger message should appear in log file")
	}
}

func TestLogger_JSONOutput_ValidStructuredAttrs(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	childLogger := mgr.Logger().With("component", "engine")
	childLogger.Info("archive extracted", "operation", "abc-123", "files", 42)

	content, _ := os.ReadFile(logFile)

	var logEntry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &logEntry); err != nil {
		t.Fatalf("Log file should be valid JSON: %v\nContent: %s", err, content)
	}

	if logEntry["component"] != "engine" {
		t.Errorf("Expected component=engine, got %v", logEntry["component"])
	}
	if logEntry["operation"] != "abc-123" {
		t.Errorf("Expected operation=abc-123, got %v", logEntry["operation"])
	}
	if logEntry["msg"] != "archive extracted" {
		t.Errorf("Expected msg='archive extracted', got %v", logEntry["msg"])
	}
	// JSON numbers are float64
	if files, ok := logEntry["files"].(float64); !ok || files != 42 {
		t.Errorf("Expected files=42, got %v", logEntry["files"])
	}
}

func TestLogger_ComponentInjectionPattern(t *testing.T) {
	mgr := NewManager()
	defer func() { _ = mgr.Close() }()

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "unzipd.log")

	err := mgr.Upgrade(logFile, slog.LevelDebug)
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	// Each component gets a child logger with its own context.
	engineLogger := mgr.Logger().With("component", "engine")
	serverLogger := mgr.Logger().With("component", "server", "version", "v1")
	watcherLogger := mgr.Logger().With("component", "watcher", "backend", "fsnotify")

	engineLogger.Info("engine ready")
	serverLogger.Info("request received", "endpoint", "/healthz")
	watcherLogger.Debug("event coalesced", "path", "/archives/a.zip")

	content, _ := os.ReadFile(logFile)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 log lines, got %d", len(lines))
	}

	var engineEntry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &engineEntry); err != nil {
		t.Fatalf("Failed to parse engine log: %v", err)
	}
	if engineEntry["component"] != "engine" {
		t.Errorf("engine log missing component=engine: %v", engineEntry)
	}

	var serverEntry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &serverEntry); err != nil {
		t.Fatalf("Failed to parse server log: %v", err)
	}
	if serverEntry["component"] != "server" || serverEntry["version"] != "v1" {
		t.Errorf("server log missing context: %v", serverEntry)
	}
	if serverEntry["endpoint"] != "/healthz" {
		t.Errorf("server log missing endpoint: %v", serverEntry)
	}

	var watcherEntry map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &watcherEntry); err != nil {
		t.Fatalf("Failed to parse watcher log: %v", err)
	}
	if watcherEntry["component"] != "watcher" || watcherEntry["backend"] != "fsnotify" {
		t.Errorf("watcher log missing context: %v", watcherEntry)
	}
}
