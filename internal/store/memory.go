package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dpgf-extract/internal/model"
)

// MemoryStore keeps mappings and labels in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]Mapping
	labels   map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[string]Mapping),
		labels:   make(map[string][]byte),
	}
}

func (s *MemoryStore) GetMapping(_ context.Context, sig string) (*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[sig]
	if !ok {
		return nil, nil
	}
	m.Roles = m.Roles.Clone()
	return &m, nil
}

func (s *MemoryStore) PutMapping(_ context.Context, sig string, roles model.RoleMap, source model.Confidence) (*Mapping, bool, error) {
	if err := validateRoles(sig, roles); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(sig, roles, source, time.Now().UTC())
}

func (s *MemoryStore) putLocked(sig string, roles model.RoleMap, source model.Confidence, at time.Time) (*Mapping, bool, error) {
	if existing, ok := s.mappings[sig]; ok {
		existing.Roles = existing.Roles.Clone()
		return &existing, false, nil
	}
	m := Mapping{Signature: sig, Roles: roles.Clone(), Source: source, CreatedAt: at}
	s.mappings[sig] = m
	out := m
	out.Roles = m.Roles.Clone()
	return &out, true, nil
}

func (s *MemoryStore) ListMappings(_ context.Context) ([]Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		m.Roles = m.Roles.Clone()
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signature < out[j].Signature })
	return out, nil
}

func (s *MemoryStore) DeleteMapping(_ context.Context, sig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mappings[sig]; !ok {
		return eris.Wrapf(ErrNotFound, "mapping %s", sig)
	}
	delete(s.mappings, sig)
	return nil
}

func (s *MemoryStore) GetLabels(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.labels[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) PutLabels(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Flush(context.Context) error   { return nil }
func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }
