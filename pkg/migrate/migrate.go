// Package migrate keeps the SQLite schemas of the fit store and the
// configuration database at a known version. Each schema ships numbered
// up/down SQL files inside the binary and records every applied migration
// in its own tracking table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest selects the newest migration a schema ships
const Latest = -1

var (
	// ErrUnknownVersion is returned for a target that is neither 0 nor a shipped migration
	ErrUnknownVersion = errors.New("migrate: no such schema version")

	// ErrIrreversible is returned when a rollback needs a migration without down SQL
	ErrIrreversible = errors.New("migrate: migration cannot be rolled back")

	// ErrNewerSchema is returned when the database was migrated past what this binary ships
	ErrNewerSchema = errors.New("migrate: database schema is newer than this build")
)

// Migration is one numbered schema change
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is the statement executor migrations run against, normally a transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MigrationProvider supplies a schema's migrations and tracks which are applied
type MigrationProvider interface {
	Schema() string
	GetMigrations() ([]Migration, error)
	EnsureTable(ctx context.Context, db *sql.DB) error
	Applied(ctx context.Context, db *sql.DB) ([]int, error)
	MarkApplied(ctx context.Context, db DB, version int) error
	MarkReverted(ctx context.Context, db DB, version int) error
}

// Step is a migration run in one direction
type Step struct {
	Migration
	Up bool
}

func (s Step) String() string {
	direction := "up"
	if !s.Up {
		direction = "down"
	}
	return fmt.Sprintf("%03d %s (%s)", s.Version, s.Name, direction)
}

// Status describes where a database stands against a schema
type Status struct {
	Schema  string
	Current int
	Latest  int
	Applied []int
	Pending []Migration
}

// Migrator applies one schema's migrations to a database
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a migrator; a nil logger discards output
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, provider: provider, logger: logger}
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	return m.To(ctx, Latest)
}

// Down rolls back to target, which must be below the current version
func (m *Migrator) Down(ctx context.Context, target int) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if target >= current {
		return fmt.Errorf("%s: target version %d must be below current version %d", m.provider.Schema(), target, current)
	}
	return m.To(ctx, target)
}

// To moves the schema up or down to target. Each step commits on its own.
func (m *Migrator) To(ctx context.Context, target int) error {
	steps, err := m.Plan(ctx, target)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if err := m.apply(ctx, s); err != nil {
			return fmt.Errorf("%s: migration %s: %w", m.provider.Schema(), s, err)
		}
	}
	return nil
}

// Plan lists the steps To would run without running them. A rollback whose
// path crosses a migration without down SQL is refused before any step runs.
func (m *Migrator) Plan(ctx context.Context, target int) ([]Step, error) {
	schema := m.provider.Schema()
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := m.migrations()
	if err != nil {
		return nil, err
	}

	latest := 0
	known := map[int]bool{0: true}
	for _, mg := range migrations {
		known[mg.Version] = true
		latest = mg.Version
	}
	if current > latest {
		return nil, fmt.Errorf("%s: %w (database at %d, newest shipped %d)", schema, ErrNewerSchema, current, latest)
	}
	if target == Latest {
		target = latest
	}
	if !known[target] {
		return nil, fmt.Errorf("%s: %w: %d", schema, ErrUnknownVersion, target)
	}

	var steps []Step
	if target >= current {
		for _, mg := range migrations {
			if mg.Version > current && mg.Version <= target {
				steps = append(steps, Step{Migration: mg, Up: true})
			}
		}
		return steps, nil
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mg := migrations[i]
		if mg.Version > target && mg.Version <= current {
			if mg.Down == "" {
				return nil, fmt.Errorf("%s: %w: %03d %s", schema, ErrIrreversible, mg.Version, mg.Name)
			}
			steps = append(steps, Step{Migration: mg})
		}
	}
	return steps, nil
}

// CurrentVersion returns the highest applied migration, 0 for a fresh database
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	return applied[len(applied)-1], nil
}

// Status reports the applied and pending migrations
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	st := Status{Schema: m.provider.Schema()}
	applied, err := m.applied(ctx)
	if err != nil {
		return st, err
	}
	migrations, err := m.migrations()
	if err != nil {
		return st, err
	}

	st.Applied = applied
	if len(applied) > 0 {
		st.Current = applied[len(applied)-1]
	}
	for _, mg := range migrations {
		st.Latest = mg.Version
		if mg.Version > st.Current {
			st.Pending = append(st.Pending, mg)
		}
	}
	return st, nil
}

func (m *Migrator) applied(ctx context.Context) ([]int, error) {
	if err := m.provider.EnsureTable(ctx, m.db); err != nil {
		return nil, fmt.Errorf("%s: %w", m.provider.Schema(), err)
	}
	versions, err := m.provider.Applied(ctx, m.db)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.provider.Schema(), err)
	}
	sort.Ints(versions)
	return versions, nil
}

func (m *Migrator) migrations() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.provider.Schema(), err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// apply runs one step and its bookkeeping in a single transaction
func (m *Migrator) apply(ctx context.Context, s Step) error {
	query := s.Migration.Up
	if !s.Up {
		query = s.Down
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return err
	}
	if s.Up {
		err = m.provider.MarkApplied(ctx, tx, s.Version)
	} else {
		err = m.provider.MarkReverted(ctx, tx, s.Version)
	}
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Infof("%s schema: ran %s", m.provider.Schema(), s)
	return nil
}
