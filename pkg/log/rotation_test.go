// Log rotation tests
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileWriterAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.log")

	w, err := NewRotatingFileWriter(RotationConfig{Filename: path})
	if err != nil {
		t.Fatalf("NewRotatingFileWriter: %v", err)
	}
	if _, err := w.Write([]byte("one\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and append.
	w, err = NewRotatingFileWriter(RotationConfig{Filename: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := w.Write([]byte("two\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("log content = %q, want %q", data, "one\ntwo\n")
	}
}

func TestRotatingFileWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.log")

	w, err := NewRotatingFileWriter(RotationConfig{Filename: path, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingFileWriter: %v", err)
	}
	defer w.Close()

	// Push past 1 MB to force a rotation.
	chunk := bytes.Repeat([]byte("x"), 64*1024)
	for i := 0; i < 20; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "host.log.") {
			backups++
		}
	}
	if backups == 0 {
		t.Error("no rotated backup files created")
	}
	if backups > 2 {
		t.Errorf("backups = %d, want at most MaxBackups = 2", backups)
	}
}

func TestRotationRequiresFilename(t *testing.T) {
	if _, err := NewRotatingFileWriter(RotationConfig{}); err == nil {
		t.Error("expected error for empty filename")
	}
}
