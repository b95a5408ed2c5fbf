package contentstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// mimics one host behavior the engine must defend against: the store may
// normalize values on write (see Normalizers).
type MemoryStore struct {
	mu      sync.RWMutex
	fields  map[string]map[string]string // resourceID -> field -> value
	meta    map[string]map[string]string // resourceID -> key -> value
	options map[string]string

	// Normalizers optionally rewrite a field value on write, keyed by field
	// name. They model store-side normalization the engine cannot predict.
	Normalizers map[string]func(string) string

	// LastActor records the attribution of the most recent write.
	LastActor string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields:      map[string]map[string]string{},
		meta:        map[string]map[string]string{},
		options:     map[string]string{},
		Normalizers: map[string]func(string) string{},
	}
}

// Seed sets a post field without normalization, for test setup.
func (s *MemoryStore) Seed(resourceID, field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fields[resourceID] == nil {
		s.fields[resourceID] = map[string]string{}
	}

	s.fields[resourceID][field] = value
}

func (s *MemoryStore) ReadField(_ context.Context, resourceID, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.fields[resourceID]
	if !ok {
		return "", fmt.Errorf("post %s: %w", resourceID, ErrNotFound)
	}

	value, ok := post[field]
	if !ok {
		return "", fmt.Errorf("post %s field %s: %w", resourceID, field, ErrNotFound)
	}

	return value, nil
}

func (s *MemoryStore) WriteField(ctx context.Context, resourceID, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fields[resourceID] == nil {
		s.fields[resourceID] = map[string]string{}
	}

	if normalize, ok := s.Normalizers[field]; ok {
		value = normalize(value)
	}

	s.fields[resourceID][field] = value
	s.LastActor = Actor(ctx)

	return nil
}

func (s *MemoryStore) ReadMeta(_ context.Context, resourceID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.meta[resourceID]
	if !ok {
		return "", fmt.Errorf("post %s meta %s: %w", resourceID, key, ErrNotFound)
	}

	value, ok := meta[key]
	if !ok {
		return "", fmt.Errorf("post %s meta %s: %w", resourceID, key, ErrNotFound)
	}

	return value, nil
}

func (s *MemoryStore) WriteMeta(ctx context.Context, resourceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta[resourceID] == nil {
		s.meta[resourceID] = map[string]string{}
	}

	s.meta[resourceID][key] = value
	s.LastActor = Actor(ctx)

	return nil
}

func (s *MemoryStore) ReadOption(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.options[key]
	if !ok {
		return "", fmt.Errorf("option %s: %w", key, ErrNotFound)
	}

	return value, nil
}

func (s *MemoryStore) WriteOption(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options[key] = value
	s.LastActor = Actor(ctx)

	return nil
}
