package sql_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/storage"
	sqlstore "github.com/bcnelson/env-manager/internal/storage/sql"
	"github.com/bcnelson/env-manager/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		store, err := sqlstore.New("sqlite3", filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := sqlstore.New("oracle", "dsn")
	require.Error(t, err)
}
