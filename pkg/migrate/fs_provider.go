package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Migration file names: 001_create_fits.up.sql / 001_create_fits.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider reads a schema's migrations from a file system, typically an
// embed.FS, and tracks them in the table <schema>_schema_migrations.
type FSProvider struct {
	fsys   fs.FS
	dir    string
	schema string
	table  string
}

// NewFSProvider creates a provider for schema reading dir within fsys
func NewFSProvider(fsys fs.FS, dir, schema string) *FSProvider {
	return &FSProvider{
		fsys:   fsys,
		dir:    dir,
		schema: schema,
		table:  schema + "_schema_migrations",
	}
}

// Schema names the schema the migrations belong to
func (fp *FSProvider) Schema() string {
	return fp.schema
}

// GetMigrations loads all migrations. Every version needs up SQL; down SQL
// is optional and its absence makes the version irreversible.
func (fp *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(fp.fsys, fp.dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations in %s: %w", fp.dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := migrationFile.FindStringSubmatch(e.Name())
		if parts == nil {
			continue
		}
		version, err := strconv.Atoi(parts[1])
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: version must be a positive number", e.Name())
		}
		content, err := fs.ReadFile(fp.fsys, path.Join(fp.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}

		name := strings.ReplaceAll(parts[2], "_", " ")
		mg := byVersion[version]
		if mg == nil {
			mg = &Migration{Version: version, Name: name}
			byVersion[version] = mg
		} else if mg.Name != name {
			return nil, fmt.Errorf("migration %d is named both %q and %q", version, mg.Name, name)
		}
		if parts[3] == "up" {
			mg.Up = string(content)
		} else {
			mg.Down = string(content)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mg := range byVersion {
		if mg.Up == "" {
			return nil, fmt.Errorf("migration %03d %s has no up SQL", mg.Version, mg.Name)
		}
		out = append(out, *mg)
	}
	return out, nil
}

// EnsureTable creates the tracking table
func (fp *FSProvider) EnsureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, fp.table))
	if err != nil {
		return fmt.Errorf("creating %s: %w", fp.table, err)
	}
	return nil
}

// Applied lists the applied migration versions
func (fp *FSProvider) Applied(ctx context.Context, db *sql.DB) ([]int, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT version FROM %s", fp.table))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fp.table, err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// MarkApplied records version as applied
func (fp *FSProvider) MarkApplied(ctx context.Context, db DB, version int) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (version) VALUES (?)", fp.table), version)
	return err
}

// MarkReverted forgets version
func (fp *FSProvider) MarkReverted(ctx context.Context, db DB, version int) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = ?", fp.table), version)
	return err
}
