package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the staging map as a single JSON document on disk, so a
// wizard run survives an app restart. Every mutation rewrites the whole file
// through a temp-file rename, which keeps the document intact if the process
// dies mid-write. The file is small (a handful of keys) so this is cheap.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// NewFileStore opens or creates the staging file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staging file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse staging file %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.flushLocked()
}

func (s *FileStore) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

func (s *FileStore) ClearWizard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range WizardKeys {
		delete(s.values, key)
	}
	// One write for the whole purge.
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal staging map: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace staging file: %w", err)
	}
	return nil
}
