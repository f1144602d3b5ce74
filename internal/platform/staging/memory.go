package staging

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is a thread-safe, in-memory Store. Used in tests and for
// single-shot CLI runs that do not need persistence.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return nil
}

func (s *MemoryStore) Get(key string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) ClearWizard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range WizardKeys {
		delete(s.values, key)
	}
	return nil
}
