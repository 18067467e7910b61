package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/storage"
	"github.com/bcnelson/env-manager/internal/storage/memory"
	"github.com/bcnelson/env-manager/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return memory.New() })
}

func TestStore_CopiesGroups(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	group := &domain.Group{Name: "g", Items: []domain.GroupItem{{Name: "a"}}}
	require.NoError(t, s.SaveGroup(ctx, group))

	group.Items[0].Name = "mutated"
	got, err := s.GetGroup(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Items[0].Name)

	got.Items[0].Name = "mutated"
	again, err := s.GetGroup(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Items[0].Name)
}
