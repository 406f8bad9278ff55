package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	l.Info("health check %s", "ok")
	l.Error("prediction failed: %v", "boom")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("Failed to read info.log: %v", err)
	}
	if !strings.Contains(string(info), "health check ok") {
		t.Errorf("info.log missing entry: %q", info)
	}

	errLog, _ := os.ReadFile(filepath.Join(dir, "error.log"))
	if !strings.Contains(string(errLog), "prediction failed: boom") {
		t.Errorf("error.log missing entry: %q", errLog)
	}
	if strings.Contains(string(info), "boom") {
		t.Error("error entry leaked into info.log")
	}
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	l.Warning("something to clear")
	if err := l.CleanLogs(FileName("warning")); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "warning.log"))
	if len(data) != 0 {
		t.Errorf("Expected empty warning.log, got %q", data)
	}
}

func TestNewDiscard_CleanLogsIsNoop(t *testing.T) {
	l := NewDiscard()
	l.Info("dropped")
	if err := l.CleanLogs("info.log"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
