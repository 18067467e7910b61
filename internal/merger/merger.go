package merger

import (
	"context"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/storage"
)

// Merger joins the live environment with the remarks kept in storage.
type Merger struct {
	store storage.Storage
}

// New creates a new Merger.
func New(store storage.Storage) *Merger {
	return &Merger{store: store}
}

// Merge returns live with each variable's stored remark filled in.
// Remarks are matched on (name, scope); a variable without a stored remark
// gets an empty one. The input slice is not modified.
func (m *Merger) Merge(ctx context.Context, live []domain.EnvironmentVariable) ([]domain.EnvironmentVariable, error) {
	remarks, err := m.remarks(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.EnvironmentVariable, len(live))
	for i, v := range live {
		v.Remark = remarks[v.Key()]
		result[i] = v
	}
	return result, nil
}

// Orphans returns stored remarks whose variable is no longer live.
func (m *Merger) Orphans(ctx context.Context, live []domain.EnvironmentVariable) ([]*domain.Property, error) {
	props, err := m.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}

	present := make(map[domain.VariableKey]bool, len(live))
	for _, v := range live {
		present[v.Key()] = true
	}

	var orphans []*domain.Property
	for _, p := range props {
		if !present[domain.VariableKey{Name: p.Name, Scope: p.Scope}] {
			orphans = append(orphans, p)
		}
	}
	return orphans, nil
}

func (m *Merger) remarks(ctx context.Context) (map[domain.VariableKey]string, error) {
	props, err := m.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	remarks := make(map[domain.VariableKey]string, len(props))
	for _, p := range props {
		remarks[domain.VariableKey{Name: p.Name, Scope: p.Scope}] = p.Remark
	}
	return remarks, nil
}
