package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chrissnell/xrdquant/internal/storage/sqlite"
	"github.com/chrissnell/xrdquant/pkg/config"
	"github.com/chrissnell/xrdquant/pkg/migrate"
)

func main() {
	var (
		dbDSN         = flag.String("dsn", "", "SQLite database file")
		schema        = flag.String("schema", "fits", "Schema to migrate: fits, config")
		command       = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		dryRun        = flag.Bool("dry-run", false, "Print the migrations up/down/to would run")
		helpFlag      = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	var provider migrate.MigrationProvider
	switch *schema {
	case "fits":
		provider = sqlite.MigrationProvider()
	case "config":
		provider = config.MigrationProvider()
	default:
		fmt.Fprintf(os.Stderr, "Unknown schema: %s\n", *schema)
		showHelp()
		os.Exit(1)
	}

	// Open database connection
	db, err := sql.Open("sqlite", *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test the connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	migrator := migrate.NewMigrator(db, provider, nil)
	ctx := context.Background()

	target := migrate.Latest
	switch *command {
	case "down", "to":
		if *targetVersion == "" {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", *command)
			os.Exit(1)
		}
		target, err = strconv.Atoi(*targetVersion)
		if err != nil {
			log.Fatalf("Invalid target version: %v", err)
		}
	}

	switch *command {
	case "up", "to":
		if *dryRun {
			err = showPlan(ctx, migrator, target)
			break
		}
		err = migrator.To(ctx, target)
	case "down":
		if *dryRun {
			err = showPlan(ctx, migrator, target)
			break
		}
		err = migrator.Down(ctx, target)
	case "version":
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current %s schema version: %d\n", *schema, version)
		return
	case "status":
		err = showStatus(ctx, migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
	if *command != "status" && !*dryRun {
		fmt.Println("Migration completed successfully")
	}
}

func showPlan(ctx context.Context, migrator *migrate.Migrator, target int) error {
	steps, err := migrator.Plan(ctx, target)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("Nothing to do")
		return nil
	}
	fmt.Println("Would run:")
	for _, s := range steps {
		fmt.Printf("  %s\n", s)
	}
	return nil
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	st, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	fmt.Printf("Schema:          %s\n", st.Schema)
	fmt.Printf("Current version: %d\n", st.Current)
	fmt.Printf("Latest version:  %d\n", st.Latest)
	fmt.Printf("Applied:         %v\n", st.Applied)
	fmt.Printf("Pending:         %d\n", len(st.Pending))
	for _, m := range st.Pending {
		fmt.Printf("  %03d: %s\n", m.Version, m.Name)
	}
	return nil
}

func showHelp() {
	fmt.Println("xrdquant SQLite Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -dsn string        SQLite database file (required)")
	fmt.Println("  -schema string     Schema to migrate: fits or config (default: fits)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -dry-run           Print the planned migrations without running them")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn fits.db -command up")
	fmt.Println("  migrate -dsn fits.db -command down -target 0 -dry-run")
	fmt.Println("  migrate -dsn xrdquant.db -schema config -command status")
}
