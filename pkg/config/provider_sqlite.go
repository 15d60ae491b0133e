package config

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/xrdquant/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultConfigName = "default"

// MigrationProvider returns the configuration schema migrations
func MigrationProvider() migrate.MigrationProvider {
	return migrate.NewFSProvider(migrations, "migrations", "config")
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens a SQLite configuration database, creating its
// tables when they do not exist
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, MigrationProvider(), nil)
	if err := migrator.Up(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	libraries, err := s.GetLibraries()
	if err != nil {
		return nil, fmt.Errorf("failed to load libraries: %w", err)
	}
	config.Libraries = libraries

	fitting, err := s.GetFitting()
	if err != nil {
		return nil, fmt.Errorf("failed to load fitting defaults: %w", err)
	}
	config.Fitting = *fitting

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetLibraries returns library configurations from the database
func (s *SQLiteProvider) GetLibraries() ([]LibraryData, error) {
	query := `
		SELECT name, patterns, phases, wavelength
		FROM libraries
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY name
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query libraries: %w", err)
	}
	defer rows.Close()

	var libraries []LibraryData
	for rows.Next() {
		var lib LibraryData
		var wavelength sql.NullFloat64
		if err := rows.Scan(&lib.Name, &lib.Patterns, &lib.Phases, &wavelength); err != nil {
			return nil, fmt.Errorf("failed to scan library row: %w", err)
		}
		lib.Wavelength = wavelength.Float64
		libraries = append(libraries, lib)
	}
	return libraries, rows.Err()
}

// GetFitting returns the fit defaults; a database without them yields zero values
func (s *SQLiteProvider) GetFitting() (*FittingData, error) {
	query := `
		SELECT std, std_conc, align, shift, harmonise, closed, omit_std,
		       solver, objective, lod, force, amorphous, amorphous_lod, workers
		FROM fitting
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var f FittingData
	var std, solver, objective, force, amorphous sql.NullString
	var stdConc, align, shift, lod, amorphousLOD sql.NullFloat64
	var workers sql.NullInt64

	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&std, &stdConc, &align, &shift, &f.Harmonise, &f.Closed, &f.OmitStandard,
		&solver, &objective, &lod, &force, &amorphous, &amorphousLOD, &workers,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fitting defaults: %w", err)
	}

	f.Standard = std.String
	f.StandardConc = stdConc.Float64
	f.Align = align.Float64
	f.Shift = shift.Float64
	f.Solver = solver.String
	f.Objective = objective.String
	f.LOD = lod.Float64
	f.Force = splitList(force.String)
	f.Amorphous = splitList(amorphous.String)
	f.AmorphousLOD = amorphousLOD.Float64
	f.Workers = int(workers.Int64)
	return &f, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, path, connection_string
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var path, connString sql.NullString
		if err := rows.Scan(&backendType, &path, &connString); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: path.String}
		case "timescaledb":
			storage.TimescaleDB = &TimescaleDBData{ConnectionString: connString.String}
		default:
			return nil, fmt.Errorf("unknown storage backend type %q", backendType)
		}
	}
	return storage, rows.Err()
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT controller_type, cert, key, port, listen_addr, auth_token,
		       inbox, library, pattern, debounce, processed
		FROM controller_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY id
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var c ControllerData
		var cert, key, listenAddr, authToken, inbox, library, pattern, debounce, processed sql.NullString
		var port sql.NullInt64

		err := rows.Scan(&c.Type, &cert, &key, &port, &listenAddr, &authToken,
			&inbox, &library, &pattern, &debounce, &processed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		switch c.Type {
		case "rest", "restserver", "combined":
			c.RESTServer = &RESTServerData{
				Cert:       cert.String,
				Key:        key.String,
				Port:       int(port.Int64),
				ListenAddr: listenAddr.String,
				AuthToken:  authToken.String,
			}
		case "grpc":
			c.GRPC = &GRPCData{
				Cert:       cert.String,
				Key:        key.String,
				Port:       int(port.Int64),
				ListenAddr: listenAddr.String,
			}
		case "watcher":
			c.Watcher = &WatcherData{
				Inbox:     inbox.String,
				Library:   library.String,
				Pattern:   pattern.String,
				Debounce:  debounce.String,
				Processed: processed.String,
			}
		}

		controllers = append(controllers, c)
	}
	return controllers, rows.Err()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.insertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for _, lib := range configData.Libraries {
		if err := s.insertLibrary(tx, configID, &lib); err != nil {
			return fmt.Errorf("failed to insert library %s: %w", lib.Name, err)
		}
	}

	if err := s.insertFitting(tx, configID, &configData.Fitting); err != nil {
		return fmt.Errorf("failed to insert fitting defaults: %w", err)
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	for _, controller := range configData.Controllers {
		if err := s.insertController(tx, configID, &controller); err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", controller.Type, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) insertConfig(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO configs (name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, name).Scan(&id)
	return id, err
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	tables := []string{"libraries", "fitting", "storage_configs", "controller_configs"}
	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE config_id = ?", table), configID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLiteProvider) insertLibrary(tx *sql.Tx, configID int64, lib *LibraryData) error {
	query := `INSERT INTO libraries (config_id, name, patterns, phases, wavelength) VALUES (?, ?, ?, ?, ?)`
	_, err := tx.Exec(query, configID, lib.Name, lib.Patterns, lib.Phases, nullFloat64(lib.Wavelength))
	return err
}

func (s *SQLiteProvider) insertFitting(tx *sql.Tx, configID int64, f *FittingData) error {
	query := `
		INSERT INTO fitting (config_id, std, std_conc, align, shift, harmonise, closed, omit_std,
		                     solver, objective, lod, force, amorphous, amorphous_lod, workers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query, configID,
		nullString(f.Standard), nullFloat64(f.StandardConc), nullFloat64(f.Align), nullFloat64(f.Shift),
		f.Harmonise, f.Closed, f.OmitStandard,
		nullString(f.Solver), nullString(f.Objective), nullFloat64(f.LOD),
		nullString(strings.Join(f.Force, ",")), nullString(strings.Join(f.Amorphous, ",")),
		nullFloat64(f.AmorphousLOD), f.Workers)
	return err
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	query := `INSERT INTO storage_configs (config_id, backend_type, path, connection_string) VALUES (?, ?, ?, ?)`
	if storage.SQLite != nil {
		if _, err := tx.Exec(query, configID, "sqlite", storage.SQLite.Path, nil); err != nil {
			return err
		}
	}
	if storage.TimescaleDB != nil {
		if _, err := tx.Exec(query, configID, "timescaledb", nil, storage.TimescaleDB.ConnectionString); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertController(tx *sql.Tx, configID int64, controller *ControllerData) error {
	var cert, key, listenAddr, authToken, inbox, library, pattern, debounce, processed string
	var port int

	switch {
	case controller.RESTServer != nil:
		cert, key, port, listenAddr = controller.RESTServer.Cert, controller.RESTServer.Key,
			controller.RESTServer.Port, controller.RESTServer.ListenAddr
		authToken = controller.RESTServer.AuthToken
	case controller.GRPC != nil:
		cert, key, port, listenAddr = controller.GRPC.Cert, controller.GRPC.Key,
			controller.GRPC.Port, controller.GRPC.ListenAddr
	case controller.Watcher != nil:
		w := controller.Watcher
		inbox, library, pattern, debounce, processed = w.Inbox, w.Library, w.Pattern, w.Debounce, w.Processed
	}

	query := `
		INSERT INTO controller_configs (config_id, controller_type, cert, key, port, listen_addr, auth_token,
		                                inbox, library, pattern, debounce, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query, configID, controller.Type,
		nullString(cert), nullString(key), port, nullString(listenAddr), nullString(authToken),
		nullString(inbox), nullString(library), nullString(pattern), nullString(debounce), nullString(processed))
	return err
}

// Helper functions for handling nullable values
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat64(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
