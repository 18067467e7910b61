// Package storagetest holds behaviour tests shared by every storage.Storage
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/storage"
)

// Run exercises s against the storage contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("GroupRoundTrip", func(t *testing.T) { testGroupRoundTrip(t, newStore(t)) })
	t.Run("GroupUpsertReplacesItems", func(t *testing.T) { testGroupUpsert(t, newStore(t)) })
	t.Run("GroupDelete", func(t *testing.T) { testGroupDelete(t, newStore(t)) })
	t.Run("Properties", func(t *testing.T) { testProperties(t, newStore(t)) })
	t.Run("Activations", func(t *testing.T) { testActivations(t, newStore(t)) })
	t.Run("Transaction", func(t *testing.T) { testTransaction(t, newStore(t)) })
}

func devGroup() *domain.Group {
	return &domain.Group{
		Name:   "dev",
		Remark: "backend endpoints",
		Items: []domain.GroupItem{
			{
				Name: "local",
				Variables: []domain.EnvironmentVariable{
					{Name: "API_URL", Value: "http://localhost", Scope: domain.ScopeUser},
					{Name: "DEBUG", Value: "1", Scope: domain.ScopeUser, Remark: "verbose"},
				},
			},
			{
				Name:     "prod",
				Remark:   "production",
				Selected: true,
				Variables: []domain.EnvironmentVariable{
					{Name: "API_URL", Value: "https://api.example.com", Scope: domain.ScopeSystem},
				},
			},
			{Name: "empty", Variables: []domain.EnvironmentVariable{}},
		},
	}
}

func testGroupRoundTrip(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	want := devGroup()
	require.NoError(t, s.SaveGroup(ctx, want.Clone()))

	got, err := s.GetGroup(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Remark, got.Remark)
	assert.Equal(t, want.Items, got.Items)
	assert.False(t, got.CreatedAt.IsZero())

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, want.Items, groups[0].Items)

	_, err = s.GetGroup(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testGroupUpsert(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.SaveGroup(ctx, devGroup()))
	first, err := s.GetGroup(ctx, "dev")
	require.NoError(t, err)

	updated := &domain.Group{
		Name: "dev",
		Items: []domain.GroupItem{{
			Name:      "staging",
			Variables: []domain.EnvironmentVariable{{Name: "API_URL", Value: "https://staging", Scope: domain.ScopeUser}},
		}},
	}
	require.NoError(t, s.SaveGroup(ctx, updated))
	require.NoError(t, s.SaveGroup(ctx, &domain.Group{Name: "alpha", Items: []domain.GroupItem{}}))

	got, err := s.GetGroup(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "staging", got.Items[0].Name)
	assert.Empty(t, got.Remark)
	assert.WithinDuration(t, first.CreatedAt, got.CreatedAt, time.Second)

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].Name)
	assert.Equal(t, "dev", groups[1].Name)
}

func testGroupDelete(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.SaveGroup(ctx, devGroup()))
	require.NoError(t, s.DeleteGroup(ctx, "dev"))

	_, err := s.GetGroup(ctx, "dev")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteGroup(ctx, "dev"), domain.ErrNotFound)

	// The name is free again and no stale items come back.
	require.NoError(t, s.SaveGroup(ctx, &domain.Group{Name: "dev", Items: []domain.GroupItem{}}))
	got, err := s.GetGroup(ctx, "dev")
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func testProperties(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.SetProperty(ctx, &domain.Property{Name: "PATH", Scope: domain.ScopeUser, Remark: "user path"}))
	require.NoError(t, s.SetProperty(ctx, &domain.Property{Name: "PATH", Scope: domain.ScopeSystem, Remark: "system path"}))
	require.NoError(t, s.SetProperty(ctx, &domain.Property{Name: "PATH", Scope: domain.ScopeUser, Remark: "edited"}))

	prop, err := s.GetProperty(ctx, "PATH", domain.ScopeUser)
	require.NoError(t, err)
	assert.Equal(t, "edited", prop.Remark)

	props, err := s.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, props, 2)

	require.NoError(t, s.DeleteProperty(ctx, "PATH", domain.ScopeUser))
	assert.ErrorIs(t, s.DeleteProperty(ctx, "PATH", domain.ScopeUser), domain.ErrNotFound)
	_, err = s.GetProperty(ctx, "PATH", domain.ScopeUser)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	prop, err = s.GetProperty(ctx, "PATH", domain.ScopeSystem)
	require.NoError(t, err)
	assert.Equal(t, "system path", prop.Remark)
}

func testActivations(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, s.CreateActivation(ctx, &domain.Activation{
			ID:        id,
			GroupName: "dev",
			ItemName:  "local",
			Status:    domain.ActivationPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	assert.ErrorIs(t, s.CreateActivation(ctx, &domain.Activation{ID: "a1", CreatedAt: base}), domain.ErrAlreadyExists)

	finished := base.Add(time.Hour)
	require.NoError(t, s.UpdateActivation(ctx, &domain.Activation{
		ID:           "a2",
		Status:       domain.ActivationFailed,
		Error:        "boom",
		AppliedCount: 1,
		FinishedAt:   &finished,
	}))
	assert.ErrorIs(t, s.UpdateActivation(ctx, &domain.Activation{ID: "nope"}), domain.ErrNotFound)

	a, err := s.GetActivation(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivationFailed, a.Status)
	assert.Equal(t, "boom", a.Error)
	assert.Equal(t, 1, a.AppliedCount)
	require.NotNil(t, a.FinishedAt)

	list, err := s.ListActivations(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a3", list[0].ID)
	assert.Equal(t, "a2", list[1].ID)

	list, err = s.ListActivations(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
}

func testTransaction(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveGroup(ctx, devGroup()))
	require.NoError(t, tx.SetProperty(ctx, &domain.Property{Name: "API_URL", Scope: domain.ScopeUser, Remark: "r"}))
	require.NoError(t, tx.Commit())

	_, err = s.GetGroup(ctx, "dev")
	require.NoError(t, err)
	_, err = s.GetProperty(ctx, "API_URL", domain.ScopeUser)
	require.NoError(t, err)

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err, "nested transactions are not supported")
}
