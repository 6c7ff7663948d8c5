package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemorySchemaSurvivesAcrossQueries(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	_, err = db.Exec(
		"INSERT INTO sessions (id, url, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"s-1", "http://localhost:3000/", now, now)
	require.NoError(t, err)

	// A pooled second connection would see an empty in-memory database here.
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	_, err = db.Exec(
		"INSERT INTO annotations (id, session_id, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"a-1", "no-such-session", "{}", now, now)
	assert.Error(t, err, "annotations require an existing session")
}

func TestOpen_DeletingSessionCascades(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	_, err = db.Exec(
		"INSERT INTO sessions (id, url, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"s-1", "http://localhost:3000/", now, now)
	require.NoError(t, err)
	_, err = db.Exec(
		"INSERT INTO annotations (id, session_id, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"a-1", "s-1", "{}", now, now)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM sessions WHERE id = ?", "s-1")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM annotations").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestOpen_FileDatabasePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentation.db")

	db, err := Open(path)
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = db.Exec(
		"INSERT INTO sessions (id, url, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"s-1", "http://localhost:3000/", now, now)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	var url string
	require.NoError(t, reopened.QueryRow("SELECT url FROM sessions WHERE id = ?", "s-1").Scan(&url))
	assert.Equal(t, "http://localhost:3000/", url)
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentation.db")

	for i := 0; i < 3; i++ {
		db, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}
}
