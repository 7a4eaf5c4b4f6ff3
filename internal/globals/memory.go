package globals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory store (not persisted).
type MemoryStore struct {
	vars map[string]*Variable
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vars: make(map[string]*Variable),
	}
}

// Get retrieves a value by name.
func (s *MemoryStore) Get(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vars[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	return v.Value, nil
}

// Set overwrites the value of an existing variable.
func (s *MemoryStore) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	v.Value = value
	v.UpdatedAt = time.Now()
	return nil
}

// Declare creates the variable unless it already exists.
func (s *MemoryStore) Declare(_ context.Context, name, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vars[name]; ok {
		return false, nil
	}

	now := time.Now()
	s.vars[name] = &Variable{
		Name:      name,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

// Exists returns true if the variable is declared.
func (s *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.vars[name]
	return ok, nil
}

// Delete removes a variable.
func (s *MemoryStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.vars[name]
	if ok {
		delete(s.vars, name)
	}
	return ok, nil
}

// List returns copies of all variables ordered by name.
func (s *MemoryStore) List(_ context.Context) ([]Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vars := make([]Variable, 0, len(s.vars))
	for _, v := range s.vars {
		vars = append(vars, *v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars, nil
}
