package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dpgf-extract/internal/model"
)

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Version  int                `yaml:"version"`
	Mappings map[string]Mapping `yaml:"mappings"`
	Labels   map[string]string  `yaml:"labels,omitempty"`
}

// FileStore persists mappings to a single YAML document. Every write is
// flushed through a temp file and rename so readers never see a partial
// file.
type FileStore struct {
	*MemoryStore
	path string
}

// NewFile opens the YAML store at path. A missing file starts empty.
func NewFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, eris.New("file store: empty path")
	}
	s := &FileStore{MemoryStore: NewMemory(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "file store: read %s", path)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "file store: parse %s", path)
	}
	for sig, m := range doc.Mappings {
		if err := validateRoles(sig, m.Roles); err != nil {
			zap.L().Warn("file store: skipping invalid mapping",
				zap.String("signature", sig),
				zap.Error(err),
			)
			continue
		}
		m.Signature = sig
		s.mappings[sig] = m
	}
	for k, v := range doc.Labels {
		s.labels[k] = []byte(v)
	}
	return s, nil
}

func (s *FileStore) PutMapping(ctx context.Context, sig string, roles model.RoleMap, source model.Confidence) (*Mapping, bool, error) {
	if err := validateRoles(sig, roles); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, created, err := s.putLocked(sig, roles, source, time.Now().UTC())
	if err != nil || !created {
		return m, created, err
	}
	if err := s.writeLocked(); err != nil {
		delete(s.mappings, sig)
		return nil, false, err
	}
	return m, true, nil
}

func (s *FileStore) DeleteMapping(ctx context.Context, sig string) error {
	if err := s.MemoryStore.DeleteMapping(ctx, sig); err != nil {
		return err
	}
	return s.Flush(ctx)
}

func (s *FileStore) PutLabels(ctx context.Context, key string, data []byte) error {
	if err := s.MemoryStore.PutLabels(ctx, key, data); err != nil {
		return err
	}
	return s.Flush(ctx)
}

// Flush writes the current contents to disk.
func (s *FileStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

func (s *FileStore) writeLocked() error {
	doc := fileDocument{
		Version:  1,
		Mappings: s.mappings,
		Labels:   make(map[string]string, len(s.labels)),
	}
	for k, v := range s.labels {
		doc.Labels[k] = string(v)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "file store: marshal")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "file store: mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".mappings-*.yaml")
	if err != nil {
		return eris.Wrap(err, "file store: create temp")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "file store: write temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "file store: close temp")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "file store: rename to %s", s.path)
	}
	return nil
}

func (s *FileStore) Close() error {
	return s.Flush(context.Background())
}
