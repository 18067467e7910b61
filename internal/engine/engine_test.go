package engine_test

import (
	"context"
	"errors"
	"sync"

	"github.com/bcnelson/env-manager/internal/domain"
)

// fakeStore is an in-memory live environment that can fail after a number of
// writes or refuse a step.
type fakeStore struct {
	mu         sync.Mutex
	live       map[domain.VariableKey]string
	batches    int
	failAfter  int // fail the batch once this many writes have landed; <0 disables
	failBatch  error
	failUpsert error
	failDelete error
	deleted    []domain.VariableKey
}

func newFakeStore() *fakeStore {
	return &fakeStore{live: make(map[domain.VariableKey]string), failAfter: -1}
}

var errTransport = errors.New("connection reset")

func (s *fakeStore) BatchApply(ctx context.Context, vars []domain.EnvironmentVariable) (domain.AppliedSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.failBatch != nil {
		return nil, s.failBatch
	}
	applied := domain.AppliedSet{}
	for i, v := range vars {
		if s.failAfter >= 0 && i == s.failAfter {
			return applied, errTransport
		}
		s.live[v.Key()] = v.Value
		applied = append(applied, domain.AppliedVariable{Name: v.Name, Scope: v.Scope, Value: v.Value})
	}
	return applied, nil
}

func (s *fakeStore) Upsert(ctx context.Context, v domain.EnvironmentVariable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert != nil {
		return s.failUpsert
	}
	s.live[v.Key()] = v.Value
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, name string, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	key := domain.VariableKey{Name: name, Scope: scope}
	if _, ok := s.live[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.live, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) get(name string, scope domain.Scope) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live[domain.VariableKey{Name: name, Scope: scope}]
	return v, ok
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func userVar(name, value string) domain.EnvironmentVariable {
	return domain.EnvironmentVariable{Name: name, Value: value, Scope: domain.ScopeUser}
}

func systemVar(name, value string) domain.EnvironmentVariable {
	return domain.EnvironmentVariable{Name: name, Value: value, Scope: domain.ScopeSystem}
}

func devGroup() *domain.Group {
	return &domain.Group{
		Name: "dev",
		Items: []domain.GroupItem{
			{Name: "local", Variables: []domain.EnvironmentVariable{userVar("API_URL", "http://localhost")}},
			{Name: "prod", Selected: true, Variables: []domain.EnvironmentVariable{systemVar("API_URL", "https://api.example.com")}},
		},
	}
}
