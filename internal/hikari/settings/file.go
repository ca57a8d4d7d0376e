package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps settings in a flat YAML mapping on disk. Writes go to a
// temporary file in the same directory which is then renamed over the
// original, so a crash never leaves a half-written file behind.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*FileStore)(nil)

// NewFile opens (or lazily creates) the YAML settings file at path.
func NewFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file. A missing file is treated as empty.
func (s *FileStore) Reload(context.Context) error {
	values, err := readYAML(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

func readYAML(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

// Get returns the cached value for key.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set persists the new mapping first and only then updates the cache, so a
// failed write leaves Get returning the old value.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	next[key] = value
	if err := s.write(next); err != nil {
		return fmt.Errorf("settings: set %q: %w", key, err)
	}
	s.values = next
	return nil
}

// Delete removes key and rewrites the file.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	next := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if k != key {
			next[k] = v
		}
	}
	if err := s.write(next); err != nil {
		return fmt.Errorf("settings: delete %q: %w", key, err)
	}
	s.values = next
	return nil
}

// List returns a copy of the cached mapping.
func (s *FileStore) List(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// write must be called with s.mu held.
func (s *FileStore) write(values map[string]string) error {
	raw, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
