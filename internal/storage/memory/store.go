package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
// Values are copied on the way in and out so callers cannot alias stored state.
type Store struct {
	mu sync.RWMutex

	groups      map[string]*domain.Group              // key: name
	properties  map[domain.VariableKey]*domain.Property
	activations map[string]*domain.Activation // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		groups:      make(map[string]*domain.Group),
		properties:  make(map[domain.VariableKey]*domain.Property),
		activations: make(map[string]*domain.Activation),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx is a no-op transaction for in-memory store.
type Tx struct {
	store *Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// Forward all Tx methods to the underlying store
func (t *Tx) SaveGroup(ctx context.Context, group *domain.Group) error {
	return t.store.SaveGroup(ctx, group)
}
func (t *Tx) GetGroup(ctx context.Context, name string) (*domain.Group, error) {
	return t.store.GetGroup(ctx, name)
}
func (t *Tx) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	return t.store.ListGroups(ctx)
}
func (t *Tx) DeleteGroup(ctx context.Context, name string) error {
	return t.store.DeleteGroup(ctx, name)
}
func (t *Tx) SetProperty(ctx context.Context, prop *domain.Property) error {
	return t.store.SetProperty(ctx, prop)
}
func (t *Tx) GetProperty(ctx context.Context, name string, scope domain.Scope) (*domain.Property, error) {
	return t.store.GetProperty(ctx, name, scope)
}
func (t *Tx) ListProperties(ctx context.Context) ([]*domain.Property, error) {
	return t.store.ListProperties(ctx)
}
func (t *Tx) DeleteProperty(ctx context.Context, name string, scope domain.Scope) error {
	return t.store.DeleteProperty(ctx, name, scope)
}
func (t *Tx) CreateActivation(ctx context.Context, a *domain.Activation) error {
	return t.store.CreateActivation(ctx, a)
}
func (t *Tx) GetActivation(ctx context.Context, id string) (*domain.Activation, error) {
	return t.store.GetActivation(ctx, id)
}
func (t *Tx) ListActivations(ctx context.Context, limit, offset int) ([]*domain.Activation, error) {
	return t.store.ListActivations(ctx, limit, offset)
}
func (t *Tx) UpdateActivation(ctx context.Context, a *domain.Activation) error {
	return t.store.UpdateActivation(ctx, a)
}

// ============================================
// Groups
// ============================================

func (s *Store) SaveGroup(ctx context.Context, group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.groups[group.Name]; ok {
		group.CreatedAt = existing.CreatedAt
	} else if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	s.groups[group.Name] = group.Clone()
	return nil
}

func (s *Store) GetGroup(ctx context.Context, name string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, exists := s.groups[name]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return group.Clone(), nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]*domain.Group, 0, len(s.groups))
	for _, group := range s.groups {
		groups = append(groups, group.Clone())
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (s *Store) DeleteGroup(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[name]; !exists {
		return domain.ErrNotFound
	}
	delete(s.groups, name)
	return nil
}

// ============================================
// Properties
// ============================================

func (s *Store) SetProperty(ctx context.Context, prop *domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prop.UpdatedAt = time.Now().UTC()
	stored := *prop
	s.properties[domain.VariableKey{Name: prop.Name, Scope: prop.Scope}] = &stored
	return nil
}

func (s *Store) GetProperty(ctx context.Context, name string, scope domain.Scope) (*domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prop, exists := s.properties[domain.VariableKey{Name: name, Scope: scope}]
	if !exists {
		return nil, domain.ErrNotFound
	}
	out := *prop
	return &out, nil
}

func (s *Store) ListProperties(ctx context.Context) ([]*domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props := make([]*domain.Property, 0, len(s.properties))
	for _, prop := range s.properties {
		out := *prop
		props = append(props, &out)
	}
	sort.Slice(props, func(i, j int) bool {
		if props[i].Scope != props[j].Scope {
			return props[i].Scope < props[j].Scope
		}
		return props[i].Name < props[j].Name
	})
	return props, nil
}

func (s *Store) DeleteProperty(ctx context.Context, name string, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.VariableKey{Name: name, Scope: scope}
	if _, exists := s.properties[key]; !exists {
		return domain.ErrNotFound
	}
	delete(s.properties, key)
	return nil
}

// ============================================
// Activations
// ============================================

func (s *Store) CreateActivation(ctx context.Context, a *domain.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activations[a.ID]; exists {
		return domain.ErrAlreadyExists
	}
	stored := *a
	s.activations[a.ID] = &stored
	return nil
}

func (s *Store) GetActivation(ctx context.Context, id string) (*domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, exists := s.activations[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (s *Store) ListActivations(ctx context.Context, limit, offset int) ([]*domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activations := make([]*domain.Activation, 0, len(s.activations))
	for _, a := range s.activations {
		out := *a
		activations = append(activations, &out)
	}
	sort.Slice(activations, func(i, j int) bool {
		if !activations[i].CreatedAt.Equal(activations[j].CreatedAt) {
			return activations[i].CreatedAt.After(activations[j].CreatedAt)
		}
		return activations[i].ID > activations[j].ID
	})
	if offset >= len(activations) {
		return []*domain.Activation{}, nil
	}
	end := offset + limit
	if end > len(activations) {
		end = len(activations)
	}
	return activations[offset:end], nil
}

func (s *Store) UpdateActivation(ctx context.Context, a *domain.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.activations[a.ID]
	if !exists {
		return domain.ErrNotFound
	}
	stored.Status = a.Status
	stored.Error = a.Error
	stored.AppliedCount = a.AppliedCount
	stored.FinishedAt = nil
	if a.FinishedAt != nil {
		finished := *a.FinishedAt
		stored.FinishedAt = &finished
	}
	return nil
}
