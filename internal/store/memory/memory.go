package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dtroode/jobboard-client/internal/model"
)

// Ensure Store implements the model.Store interface.
var _ model.Store = (*Store)(nil)

// Store keeps both scopes in process memory.
type Store struct {
	mu     sync.RWMutex
	scopes map[model.Scope]map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		scopes: map[model.Scope]map[string]string{
			model.ScopeDurable:   {},
			model.ScopeEphemeral: {},
		},
	}
}

func (s *Store) Get(_ context.Context, scope model.Scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.scopes[scope]
	if !ok {
		return "", false, model.ErrUnknownScope
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, scope model.Scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.scopes[scope]
	if !ok {
		return model.ErrUnknownScope
	}
	values[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, scope model.Scope, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.scopes[scope]
	if !ok {
		return model.ErrUnknownScope
	}
	for _, k := range keys {
		delete(values, k)
	}
	return nil
}

func (s *Store) Keys(_ context.Context, scope model.Scope) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.scopes[scope]
	if !ok {
		return nil, model.ErrUnknownScope
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot returns a copy of one scope, for tests and diagnostics.
func (s *Store) Snapshot(scope model.Scope) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.scopes[scope]))
	for k, v := range s.scopes[scope] {
		out[k] = v
	}
	return out
}
