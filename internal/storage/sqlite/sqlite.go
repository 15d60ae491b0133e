// Package sqlite stores fits in a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// MigrationProvider returns the fit store schema migrations
func MigrationProvider() migrate.MigrationProvider {
	return migrate.NewFSProvider(migrations, "migrations", "fits")
}

// Storage is a SQLite fit store
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens (creating if needed) the database at path
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	migrator := migrate.NewMigrator(db, MigrationProvider(), logger)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate fit tables: %w", err)
	}

	logger.Infof("opened SQLite fit store at %s", path)
	return &Storage{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartStorageEngine creates a goroutine loop to receive fits and store them
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.FitRecord {
	s.logger.Info("starting SQLite storage engine...")
	fitChan := make(chan types.FitRecord, 10)
	wg.Add(1)
	go storage.ProcessFits(ctx, wg, fitChan, s.StoreFit, "SQLite", s.logger)
	storage.StartHealthMonitor(ctx, "sqlite", s, time.Minute, s.logger)
	return fitChan
}

// StoreFit stores a fit and its phases in one transaction
func (s *Storage) StoreFit(ctx context.Context, rec types.FitRecord) error {
	res := rec.Result
	if res == nil {
		return fmt.Errorf("fit %s has no result", rec.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Insert("fits").
		Columns("id", "sample", "library", "mode", "source", "created_at",
			"rwp", "r", "delta", "correlation", "alignment", "std", "std_conc", "closed",
			"two_theta", "measured", "fitted").
		Values(rec.ID.String(), rec.Sample, rec.Library, string(rec.Mode), rec.Source, rec.CreatedAt.UnixNano(),
			res.Rwp, res.R, res.Delta, res.Correlation, res.Alignment, res.Standard, res.StandardConc, res.Closed,
			pq.Float64Array(res.TwoTheta), pq.Float64Array(res.Measured), pq.Float64Array(res.Fitted)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert fit %s: %w", rec.ID, err)
	}

	if len(res.Phases)+len(res.Removed) > 0 {
		ins := psql.Insert("fit_phases").
			Columns("fit_id", "position", "phase_id", "name", "rir", "coefficient", "shift", "concentration", "reason", "lod")
		pos := 0
		for _, p := range res.Phases {
			ins = ins.Values(rec.ID.String(), pos, p.ID, p.Name, p.RIR, p.Coefficient, p.Shift, p.Concentration, "", 0.0)
			pos++
		}
		for _, r := range res.Removed {
			ins = ins.Values(rec.ID.String(), pos, r.ID, r.Name, 0.0, 0.0, 0.0, r.Concentration, r.Reason, r.LOD)
			pos++
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert phases of fit %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// GetFit loads a stored fit
func (s *Storage) GetFit(ctx context.Context, id uuid.UUID) (types.FitRecord, error) {
	query, args, err := psql.Select("sample", "library", "mode", "source", "created_at",
		"rwp", "r", "delta", "correlation", "alignment", "std", "std_conc", "closed",
		"two_theta", "measured", "fitted").
		From("fits").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return types.FitRecord{}, err
	}

	var (
		rec                        types.FitRecord
		res                        fps.Result
		mode                       string
		source, std                sql.NullString
		created                    int64
		twoTheta, measured, fitted pq.Float64Array
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.Sample, &rec.Library, &mode, &source, &created,
		&res.Rwp, &res.R, &res.Delta, &res.Correlation, &res.Alignment, &std, &res.StandardConc, &res.Closed,
		&twoTheta, &measured, &fitted)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FitRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return types.FitRecord{}, fmt.Errorf("failed to load fit %s: %w", id, err)
	}

	rec.ID = id
	rec.Mode = types.FitMode(mode)
	rec.Source = source.String
	rec.CreatedAt = time.Unix(0, created).UTC()
	res.Sample = rec.Sample
	res.Library = rec.Library
	res.Standard = std.String
	res.TwoTheta = []float64(twoTheta)
	res.Measured = []float64(measured)
	res.Fitted = []float64(fitted)
	if len(res.Measured) == len(res.Fitted) {
		res.Residuals = make([]float64, len(res.Measured))
		for i := range res.Measured {
			res.Residuals[i] = res.Measured[i] - res.Fitted[i]
		}
	}

	if err := s.loadPhases(ctx, id, &res); err != nil {
		return types.FitRecord{}, err
	}
	res.Grouped = fps.GroupPhases(res.Phases)
	rec.Result = &res
	return rec, nil
}

func (s *Storage) loadPhases(ctx context.Context, id uuid.UUID, res *fps.Result) error {
	query, args, err := psql.Select("phase_id", "name", "rir", "coefficient", "shift", "concentration", "reason", "lod").
		From("fit_phases").
		Where(sq.Eq{"fit_id": id.String()}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load phases of fit %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p      fps.PhaseResult
			name   sql.NullString
			reason string
			lod    float64
		)
		if err := rows.Scan(&p.ID, &name, &p.RIR, &p.Coefficient, &p.Shift, &p.Concentration, &reason, &lod); err != nil {
			return err
		}
		p.Name = name.String
		if reason != "" {
			res.Removed = append(res.Removed, fps.Removal{
				ID: p.ID, Name: p.Name, Reason: reason, Concentration: p.Concentration, LOD: lod,
			})
			continue
		}
		res.Phases = append(res.Phases, p)
	}
	return rows.Err()
}

// ListFits returns summaries of stored fits, newest first
func (s *Storage) ListFits(ctx context.Context, filter types.FitFilter) ([]types.FitSummary, error) {
	q := psql.Select("f.id", "f.sample", "f.library", "f.mode", "f.source", "f.created_at", "f.rwp",
		"COALESCE((SELECT SUM(p.concentration) FROM fit_phases p WHERE p.fit_id = f.id AND p.reason = ''), 0)").
		From("fits f").
		OrderBy("f.created_at DESC")
	if filter.Sample != "" {
		q = q.Where(sq.Eq{"f.sample": filter.Sample})
	}
	if filter.Library != "" {
		q = q.Where(sq.Eq{"f.library": filter.Library})
	}
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"f.created_at": filter.Since.UnixNano()})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fits: %w", err)
	}
	defer rows.Close()

	var out []types.FitSummary
	for rows.Next() {
		var (
			f       types.FitSummary
			id      string
			mode    string
			source  sql.NullString
			created int64
			rwp     sql.NullFloat64
		)
		if err := rows.Scan(&id, &f.Sample, &f.Library, &mode, &source, &created, &rwp, &f.Total); err != nil {
			return nil, err
		}
		if f.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("stored fit has invalid id %q: %w", id, err)
		}
		f.Mode = types.FitMode(mode)
		f.Source = source.String
		f.CreatedAt = time.Unix(0, created).UTC()
		f.Rwp = rwp.Float64
		out = append(out, f)
	}
	return out, rows.Err()
}

// CheckHealth implements storage.HealthChecker
func (s *Storage) CheckHealth(ctx context.Context) storage.HealthData {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fits").Scan(&count); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "SQLite query failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, fmt.Sprintf("SQLite holds %d fits", count), nil)
}
