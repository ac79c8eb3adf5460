package settings

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) (*sql.DB, string) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)

	return db, tmpDir
}

func TestNewManager(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	manager, err := NewManager(db, logger)
	require.NoError(t, err)
	assert.NotNil(t, manager)

	// Schema creation is repeatable
	_, err = NewManager(db, logger)
	require.NoError(t, err)
}

func TestLoadBeforeSave(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	manager, err := NewManager(db, logrus.New())
	require.NoError(t, err)

	blob, err := manager.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, blob)
	assert.Empty(t, blob)
}

func TestSaveReplacesWholeBlob(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	manager, err := NewManager(db, logrus.New())
	require.NoError(t, err)

	require.NoError(t, manager.Save(ctx, Blob{"minify-css": "1", "exclude-css": "a.css\nb.css"}))
	blob, err := manager.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Blob{"minify-css": "1", "exclude-css": "a.css\nb.css"}, blob)

	// A second save drops keys that are not submitted again
	require.NoError(t, manager.Save(ctx, Blob{"hide-wp-version": "1"}))
	blob, err = manager.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Blob{"hide-wp-version": "1"}, blob)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM options`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSaveNilBlob(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	manager, err := NewManager(db, logrus.New())
	require.NoError(t, err)

	require.NoError(t, manager.Save(ctx, nil))
	blob, err := manager.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Blob{}, blob)
}

func TestBlob(t *testing.T) {
	blob := Blob{"a": "1", "b": "", "c": "0", "d": "Yes"}

	assert.Equal(t, "1", blob.Value("a", "x"))
	assert.Equal(t, "x", blob.Value("b", "x"))
	assert.Equal(t, "x", blob.Value("missing", "x"))

	v, ok := blob.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	assert.True(t, blob.Truthy("a"))
	assert.False(t, blob.Truthy("b"))
	assert.False(t, blob.Truthy("c"))

	assert.Equal(t, []string{"a", "b", "c", "d"}, blob.Keys())

	clone := blob.Clone()
	clone["a"] = "2"
	assert.Equal(t, "1", blob["a"])
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", "yes", "On", " on "} {
		assert.True(t, ParseBool(s), s)
	}
	for _, s := range []string{"", "0", "false", "no", "off", "2"} {
		assert.False(t, ParseBool(s), s)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{BackendSQLite, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			logger := logrus.New()
			logger.SetLevel(logrus.WarnLevel)

			store, err := Open(backend, dir, logger)
			require.NoError(t, err)

			require.NoError(t, store.Save(ctx, Blob{"minify-html": "1"}))
			require.NoError(t, store.Close())

			store, err = Open(backend, dir, logger)
			require.NoError(t, err)
			defer store.Close()

			blob, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "1", blob["minify-html"])
		})
	}

	_, err := Open("redis", t.TempDir(), logrus.New())
	assert.Error(t, err)
}
