package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_users.sql", "0001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- noop"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old"), 0o700))

	files, err := MigrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_users.sql"}, files)
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	files, err := MigrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}
