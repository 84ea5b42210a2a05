// Log file rotation for the fan controller host
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// RotationConfig configures size-based log file rotation.
type RotationConfig struct {
	// Filename is the path to the active log file.
	Filename string

	// MaxSize is the maximum size in megabytes before rotation.
	// Defaults to 10.
	MaxSize int

	// MaxBackups is the number of rotated files to retain.
	// Defaults to 5.
	MaxBackups int
}

// RotatingFileWriter is an io.Writer that rotates its file by size.
type RotatingFileWriter struct {
	mu         sync.Mutex
	filename   string
	maxSize    int64
	maxBackups int
	size       int64
	file       *os.File
}

// NewRotatingFileWriter opens (or creates) the log file for appending.
func NewRotatingFileWriter(cfg RotationConfig) (*RotatingFileWriter, error) {
	if cfg.Filename == "" {
		return nil, fmt.Errorf("log: rotation filename is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	w := &RotatingFileWriter{
		filename:   cfg.Filename,
		maxSize:    int64(cfg.MaxSize) * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	f, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("log: open %s: %w", w.filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate renames the active file with a timestamp suffix and reopens.
// Caller holds the lock.
func (w *RotatingFileWriter) rotate() error {
	w.file.Close()
	backup := fmt.Sprintf("%s.%s", w.filename, time.Now().Format("20060102-150405"))
	if err := os.Rename(w.filename, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	w.pruneBackups()
	return w.open()
}

func (w *RotatingFileWriter) pruneBackups() {
	// Backups have the active filename as prefix. Keep the newest
	// maxBackups; lexicographic order matches chronological order for
	// the timestamp suffix used above.
	var backups []string
	dir, base := splitPath(w.filename)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name != base && len(name) > len(base) && name[:len(base)+1] == base+"." {
			backups = append(backups, name)
		}
	}
	for len(backups) > w.maxBackups {
		oldest := backups[0]
		for _, b := range backups[1:] {
			if b < oldest {
				oldest = b
			}
		}
		os.Remove(dir + "/" + oldest)
		kept := backups[:0]
		for _, b := range backups {
			if b != oldest {
				kept = append(kept, b)
			}
		}
		backups = kept
	}
}

func splitPath(p string) (dir, base string) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i], p[i+1:]
		}
	}
	return ".", p
}

// Sync flushes the active file to stable storage.
func (w *RotatingFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the active file.
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// NewMultiWriter duplicates writes to all given writers.
func NewMultiWriter(writers ...io.Writer) io.Writer {
	return io.MultiWriter(writers...)
}
