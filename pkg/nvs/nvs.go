// Package nvs provides the host's non-volatile settings storage.
// Plugins persist one record each, keyed by name; the file store keeps
// all records in a single YAML document guarded by an advisory lock so
// concurrent host processes cannot trample each other's writes.
package nvs

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a record has never been written.
var ErrNotFound = errors.New("nvs: record not found")

// Store reads and writes named settings records. A failed read is
// indistinguishable from a missing record on purpose: the caller's
// recovery for both is to restore defaults.
type Store interface {
	ReadRecord(key string, out interface{}) error
	WriteRecord(key string, in interface{}) error
}

// FileStore is a Store backed by one YAML file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store over the given path. The file is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) ReadRecord(key string, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	node, ok := records[key]
	if !ok {
		return ErrNotFound
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("nvs: record %q corrupt: %w", key, err)
	}
	return nil
}

func (s *FileStore) WriteRecord(key string, in interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A corrupt file loses its other records on the next write; each
	// plugin restores its own defaults on read failure anyway.
	records, err := s.load()
	if err != nil {
		records = map[string]yaml.Node{}
	}
	var node yaml.Node
	if err := node.Encode(in); err != nil {
		return fmt.Errorf("nvs: encode record %q: %w", key, err)
	}
	records[key] = node

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("nvs: marshal records: %w", err)
	}
	return s.commit(data)
}

func (s *FileStore) load() (map[string]yaml.Node, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]yaml.Node{}, nil
		}
		return nil, fmt.Errorf("nvs: read %s: %w", s.path, err)
	}
	records := map[string]yaml.Node{}
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("nvs: %s corrupt: %w", s.path, err)
	}
	return records, nil
}

// commit writes the document through a temp file and rename, holding
// an advisory lock on the target for the duration.
func (s *FileStore) commit(data []byte) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("nvs: open %s: %w", s.path, err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("nvs: lock %s: %w", s.path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("nvs: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("nvs: commit %s: %w", s.path, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and the simulator. Records
// round-trip through YAML so type fidelity matches the file store.
type MemStore struct {
	mu      sync.Mutex
	records map[string][]byte

	// FailReads forces ReadRecord to report corruption, for testing
	// restore-on-corrupt paths.
	FailReads bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: map[string][]byte{}}
}

func (s *MemStore) ReadRecord(key string, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return fmt.Errorf("nvs: record %q corrupt", key)
	}
	data, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	return yaml.Unmarshal(data, out)
}

func (s *MemStore) WriteRecord(key string, in interface{}) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[key] = data
	s.mu.Unlock()
	return nil
}
