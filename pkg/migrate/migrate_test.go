package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"m/001_create_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
	"m/001_create_a.down.sql": {Data: []byte("DROP TABLE a;")},
	"m/002_create_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
	"m/002_create_b.down.sql": {Data: []byte("DROP TABLE b;")},
	"m/README":                {Data: []byte("ignored")},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n))
	return n == 1
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "m", "test"), nil)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", st.Schema)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, 2, st.Latest)
	require.Len(t, st.Pending, 2)
	assert.Equal(t, "create a", st.Pending[0].Name)

	require.NoError(t, m.Up(ctx))
	v, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, tableExists(t, db, "a"))
	assert.True(t, tableExists(t, db, "b"))
	assert.True(t, tableExists(t, db, "test_schema_migrations"))

	// Idempotent
	require.NoError(t, m.Up(ctx))
	st, err = m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, st.Applied)
	assert.Empty(t, st.Pending)

	require.NoError(t, m.Down(ctx, 1))
	v, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.False(t, tableExists(t, db, "b"))

	require.NoError(t, m.To(ctx, 0))
	assert.False(t, tableExists(t, db, "a"))
	assert.Error(t, m.Down(ctx, 0))
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(openDB(t), NewFSProvider(testMigrations, "m", "test"), nil)

	steps, err := m.Plan(ctx, Latest)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "001 create a (up)", steps[0].String())
	assert.Equal(t, "002 create b (up)", steps[1].String())

	require.NoError(t, m.Up(ctx))
	steps, err = m.Plan(ctx, 0)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "002 create b (down)", steps[0].String())

	_, err = m.Plan(ctx, 7)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestIrreversibleRollbackRunsNothing(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"m/001_create_a.up.sql":   testMigrations["m/001_create_a.up.sql"],
		"m/001_create_a.down.sql": testMigrations["m/001_create_a.down.sql"],
		"m/002_backfill_a.up.sql": {Data: []byte("INSERT INTO a (id) VALUES (1);")},
		"m/003_create_b.up.sql":   testMigrations["m/002_create_b.up.sql"],
		"m/003_create_b.down.sql": testMigrations["m/002_create_b.down.sql"],
		"m/sub/004_x.up.sql":      {Data: []byte("ignored")},
	}
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, "m", "test"), nil)
	require.NoError(t, m.Up(ctx))

	err := m.To(ctx, 0)
	assert.ErrorIs(t, err, ErrIrreversible)
	assert.True(t, tableExists(t, db, "b"))
	v, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	require.NoError(t, m.To(ctx, 2))
	assert.False(t, tableExists(t, db, "b"))
}

func TestNewerSchemaRefused(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	require.NoError(t, NewMigrator(db, NewFSProvider(testMigrations, "m", "test"), nil).Up(ctx))

	older := fstest.MapFS{
		"m/001_create_a.up.sql":   testMigrations["m/001_create_a.up.sql"],
		"m/001_create_a.down.sql": testMigrations["m/001_create_a.down.sql"],
	}
	err := NewMigrator(db, NewFSProvider(older, "m", "test"), nil).Up(ctx)
	assert.ErrorIs(t, err, ErrNewerSchema)
}

func TestGetMigrationsValidation(t *testing.T) {
	downOnly := fstest.MapFS{"m/001_create_a.down.sql": {Data: []byte("DROP TABLE a;")}}
	_, err := NewFSProvider(downOnly, "m", "test").GetMigrations()
	assert.ErrorContains(t, err, "no up SQL")

	renamed := fstest.MapFS{
		"m/001_create_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"m/001_create_b.down.sql": {Data: []byte("DROP TABLE a;")},
	}
	_, err = NewFSProvider(renamed, "m", "test").GetMigrations()
	assert.ErrorContains(t, err, "named both")

	_, err = NewFSProvider(testMigrations, "missing", "test").GetMigrations()
	assert.Error(t, err)
}
