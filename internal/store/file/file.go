package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/store/memory"
)

// Ensure Store implements the model.Store interface.
var _ model.Store = (*Store)(nil)

// Store keeps the durable scope in a JSON file and the ephemeral scope in
// process memory. The file is re-read on every access so that concurrent
// client processes sharing a profile observe each other's writes; conflicting
// writes are last-write-wins.
type Store struct {
	path      string
	mu        sync.Mutex
	ephemeral *memory.Store
}

// New creates a file-backed store at path, creating parent directories.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{path: path, ephemeral: memory.New()}, nil
}

func (s *Store) Get(ctx context.Context, scope model.Scope, key string) (string, bool, error) {
	if scope != model.ScopeDurable {
		return s.ephemeral.Get(ctx, scope, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, scope model.Scope, key, value string) error {
	if scope != model.ScopeDurable {
		return s.ephemeral.Set(ctx, scope, key, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *Store) Delete(ctx context.Context, scope model.Scope, keys ...string) error {
	if scope != model.ScopeDurable {
		return s.ephemeral.Delete(ctx, scope, keys...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	return s.save(values)
}

func (s *Store) Keys(ctx context.Context, scope model.Scope) ([]string, error) {
	if scope != model.ScopeDurable {
		return s.ephemeral.Keys(ctx, scope)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
