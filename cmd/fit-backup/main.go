// Command fit-backup exports the fits stored in TimescaleDB to CSV or JSON.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BackupFormat string

const (
	FormatCSV  BackupFormat = "csv"
	FormatJSON BackupFormat = "json"
)

type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Format   BackupFormat
	Output   string
	Since    time.Time
	Library  string
}

// PhaseRow is one reference of one stored fit, flattened for export
type PhaseRow struct {
	FitID         string    `json:"fit_id"`
	Sample        string    `json:"sample"`
	Library       string    `json:"library"`
	Mode          string    `json:"mode"`
	CreatedAt     time.Time `json:"created_at"`
	Rwp           float64   `json:"rwp"`
	PhaseID       string    `json:"phase_id"`
	Name          string    `json:"name"`
	RIR           float64   `json:"rir"`
	Coefficient   float64   `json:"coefficient"`
	Concentration float64   `json:"concentration"`
	Reason        string    `json:"reason,omitempty"`
}

const exportQuery = `
SELECT f.id::text, f.sample, f.library, f.mode, f.created_at, f.rwp,
       p.phase_id, p.name, p.rir, p.coefficient, p.concentration, COALESCE(p.reason, '')
FROM fits f
JOIN fit_phases p ON p.fit_id = f.id
WHERE f.created_at >= $1 AND ($2 = '' OR f.library = $2)
ORDER BY f.created_at, f.id, p.position`

const countQuery = `SELECT COUNT(*) FROM fits WHERE created_at >= $1 AND ($2 = '' OR library = $2)`

func main() {
	var cfg Config

	// Parse command line flags
	flag.StringVar(&cfg.Host, "host", "localhost", "Database host")
	flag.IntVar(&cfg.Port, "port", 5432, "Database port")
	flag.StringVar(&cfg.Database, "database", "xrdquant", "Database name")
	flag.StringVar(&cfg.User, "user", "postgres", "Database user")
	flag.StringVar(&cfg.Password, "password", "", "Database password")
	flag.StringVar(&cfg.SSLMode, "sslmode", "disable", "SSL mode (disable, require, etc)")
	formatStr := flag.String("format", "csv", "Backup format: csv or json")
	flag.StringVar(&cfg.Output, "output", "fit_backup", "Output file base name (extension added automatically)")
	since := flag.String("since", "", "Only export fits created at or after this RFC3339 time")
	flag.StringVar(&cfg.Library, "library", "", "Only export fits against this library")
	flag.Parse()

	// Validate format
	switch BackupFormat(*formatStr) {
	case FormatCSV, FormatJSON:
		cfg.Format = BackupFormat(*formatStr)
	default:
		log.Fatalf("Invalid format: %s. Must be csv or json", *formatStr)
	}
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			log.Fatalf("Invalid -since: %v", err)
		}
		cfg.Since = t
	}

	// Build connection string
	connStr := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Printf("Connected to database %s@%s:%d", cfg.Database, cfg.Host, cfg.Port)

	// Get total count for progress tracking
	var totalCount int64
	if err := pool.QueryRow(ctx, countQuery, cfg.Since, cfg.Library).Scan(&totalCount); err != nil {
		log.Fatalf("Failed to get fit count: %v", err)
	}
	log.Printf("Found %d fits to backup", totalCount)

	filename := cfg.Output + "." + string(cfg.Format)
	file, err := os.Create(filename)
	if err != nil {
		log.Fatalf("Failed to create file: %v", err)
	}

	rows, err := pool.Query(ctx, exportQuery, cfg.Since, cfg.Library)
	if err != nil {
		log.Fatalf("Failed to execute query: %v", err)
	}
	phases, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PhaseRow])
	if err != nil {
		log.Fatalf("Failed to read fits: %v", err)
	}

	switch cfg.Format {
	case FormatCSV:
		err = writeCSV(file, phases)
	case FormatJSON:
		err = writeJSON(file, phases)
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("%s backup failed: %v", cfg.Format, err)
	}

	log.Printf("Exported %d phase rows of %d fits to %s", len(phases), totalCount, filename)
}

func writeCSV(w io.Writer, phases []PhaseRow) error {
	writer := csv.NewWriter(w)

	header := []string{"fit_id", "sample", "library", "mode", "created_at", "rwp",
		"phase_id", "name", "rir", "coefficient", "concentration", "reason"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, p := range phases {
		record := []string{p.FitID, p.Sample, p.Library, p.Mode, p.CreatedAt.Format(time.RFC3339Nano), f(p.Rwp),
			p.PhaseID, p.Name, f(p.RIR), f(p.Coefficient), f(p.Concentration), p.Reason}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(w io.Writer, phases []PhaseRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if phases == nil {
		phases = []PhaseRow{}
	}
	return enc.Encode(phases)
}
