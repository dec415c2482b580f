package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileWriter_Write(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWriter(tmpDir)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	if _, err := fw.Write([]byte(`{"msg":"test"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	logFile := filepath.Join(tmpDir, time.Now().Format(time.DateOnly)+".jsonl")
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), `{"msg":"test"}`) {
		t.Errorf("expected content to contain test message, got: %s", content)
	}

	info, err := os.Stat(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("log file mode = %o, want 0600", perm)
	}
}

func TestFileWriter_Rotates(t *testing.T) {
	tmpDir := t.TempDir()
	fw, err := NewFileWriter(tmpDir)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	tomorrow := time.Now().AddDate(0, 0, 1)
	fw.now = func() time.Time { return tomorrow }
	if _, err := fw.Write([]byte("next day\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	name := tomorrow.Format(time.DateOnly) + ".jsonl"
	if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
		t.Errorf("expected rotated file %s: %v", name, err)
	}
	target, err := os.Readlink(filepath.Join(tmpDir, "latest"))
	if err != nil {
		t.Fatalf("reading symlink: %v", err)
	}
	if target != name {
		t.Errorf("latest -> %s, want %s", target, name)
	}
}

func TestFileWriter_WriteAfterClose(t *testing.T) {
	fw, err := NewFileWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fw.Close()
	if _, err := fw.Write([]byte("x")); err == nil {
		t.Error("expected error writing to closed FileWriter")
	}
}

func TestCleanup(t *testing.T) {
	tmpDir := t.TempDir()

	old := time.Now().AddDate(0, 0, -20).Format(time.DateOnly) + ".jsonl"
	recent := time.Now().AddDate(0, 0, -2).Format(time.DateOnly) + ".jsonl"
	other := "notes.txt"
	for _, name := range []string{old, recent, other} {
		os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0600)
	}

	Cleanup(tmpDir, 14)

	if _, err := os.Stat(filepath.Join(tmpDir, old)); !os.IsNotExist(err) {
		t.Error("expected old log file to be removed")
	}
	for _, name := range []string{recent, other} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
			t.Errorf("expected %s to be kept: %v", name, err)
		}
	}
}
