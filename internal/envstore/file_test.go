package envstore_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/envstore"
)

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "env.json")
	f := envstore.NewFile(path, nil)

	vars, err := f.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, vars, "a missing file is an empty environment")

	require.NoError(t, f.Set(ctx, domain.ScopeUser, "EDITOR", "vim"))
	require.NoError(t, f.Set(ctx, domain.ScopeUser, "API_URL", "http://localhost"))
	require.NoError(t, f.Set(ctx, domain.ScopeSystem, "API_URL", "https://api.example.com"))
	require.NoError(t, f.Set(ctx, domain.ScopeUser, "EDITOR", "nvim"))

	vars, err = envstore.NewFile(path, nil).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EnvironmentVariable{
		{Name: "API_URL", Value: "https://api.example.com", Scope: domain.ScopeSystem},
		{Name: "API_URL", Value: "http://localhost", Scope: domain.ScopeUser},
		{Name: "EDITOR", Value: "nvim", Scope: domain.ScopeUser},
	}, vars)

	require.NoError(t, f.Delete(ctx, domain.ScopeUser, "API_URL"))
	err = f.Delete(ctx, domain.ScopeUser, "API_URL")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	vars, err = f.List(ctx)
	require.NoError(t, err)
	assert.Len(t, vars, 2)
}

func TestFile_UnknownScope(t *testing.T) {
	f := envstore.NewFile(filepath.Join(t.TempDir(), "env.json"), nil)
	err := f.Set(context.Background(), "machine", "A", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := envstore.NewFile(path, nil).List(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.json")

	b, err := envstore.Open(envstore.KindFile, path, nil)
	require.NoError(t, err)
	assert.IsType(t, &envstore.File{}, b)

	_, err = envstore.Open("memory", path, nil)
	assert.Error(t, err)

	if runtime.GOOS != "windows" {
		_, err = envstore.Open(envstore.KindRegistry, path, nil)
		assert.ErrorIs(t, err, envstore.ErrNoRegistry)

		b, err = envstore.Open(envstore.KindAuto, path, nil)
		require.NoError(t, err)
		assert.IsType(t, &envstore.File{}, b)
	}
}

func TestStaticPrivilege(t *testing.T) {
	admin, err := envstore.StaticPrivilege(true).IsAdmin(context.Background())
	require.NoError(t, err)
	assert.True(t, admin)

	got, err := envstore.ProcessPrivilege{}.IsAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, envstore.IsElevated(), got)
}
