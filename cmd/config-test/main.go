package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/chrissnell/xrdquant/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <xrdquant.yaml> -sqlite <xrdquant.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	if !compare(os.Stdout, yamlConfig, sqliteConfig) {
		fmt.Println("\nTest completed with differences")
		os.Exit(2)
	}
	fmt.Println("\nTest completed!")
}

// compare reports section by section whether the two configurations agree
func compare(w io.Writer, yaml, sqlite *config.ConfigData) bool {
	ok := true
	fmt.Fprintln(w, "\nComparison Results:")
	fmt.Fprintln(w, "==================")

	// Compare libraries
	fmt.Fprintf(w, "Libraries - YAML: %d, SQLite: %d\n", len(yaml.Libraries), len(sqlite.Libraries))
	if len(yaml.Libraries) == len(sqlite.Libraries) {
		fmt.Fprintln(w, "✓ Library count matches")
		for i, lib := range yaml.Libraries {
			if lib == sqlite.Libraries[i] {
				fmt.Fprintf(w, "✓ Library %s matches\n", lib.Name)
			} else {
				fmt.Fprintf(w, "✗ Library %s differs\n", lib.Name)
				printLibraryDiff(w, lib, sqlite.Libraries[i])
				ok = false
			}
		}
	} else {
		fmt.Fprintln(w, "✗ Library count mismatch")
		ok = false
	}

	// Compare fitting defaults
	fmt.Fprintln(w, "\nFitting Defaults:")
	if compareFitting(yaml.Fitting, sqlite.Fitting) {
		fmt.Fprintln(w, "✓ Fitting defaults match")
	} else {
		fmt.Fprintln(w, "✗ Fitting defaults differ")
		ok = false
	}

	// Compare storage
	fmt.Fprintln(w, "\nStorage Configuration:")
	ok = compareStorage(w, yaml.Storage, sqlite.Storage) && ok

	// Compare controllers
	fmt.Fprintf(w, "\nControllers - YAML: %d, SQLite: %d\n", len(yaml.Controllers), len(sqlite.Controllers))
	if len(yaml.Controllers) == len(sqlite.Controllers) {
		fmt.Fprintln(w, "✓ Controller count matches")
		for i, c := range yaml.Controllers {
			if compareControllers(c, sqlite.Controllers[i]) {
				fmt.Fprintf(w, "✓ Controller %s matches\n", c.Type)
			} else {
				fmt.Fprintf(w, "✗ Controller %s differs\n", c.Type)
				ok = false
			}
		}
	} else {
		fmt.Fprintln(w, "✗ Controller count mismatch")
		ok = false
	}
	return ok
}

func printLibraryDiff(w io.Writer, yaml, sqlite config.LibraryData) {
	if yaml.Patterns != sqlite.Patterns {
		fmt.Fprintf(w, "  Patterns: YAML='%s', SQLite='%s'\n", yaml.Patterns, sqlite.Patterns)
	}
	if yaml.Phases != sqlite.Phases {
		fmt.Fprintf(w, "  Phases: YAML='%s', SQLite='%s'\n", yaml.Phases, sqlite.Phases)
	}
	if yaml.Wavelength != sqlite.Wavelength {
		fmt.Fprintf(w, "  Wavelength: YAML=%g, SQLite=%g\n", yaml.Wavelength, sqlite.Wavelength)
	}
}

// compareFitting treats nil and empty phase lists as equal
func compareFitting(yaml, sqlite config.FittingData) bool {
	norm := func(f config.FittingData) config.FittingData {
		if len(f.Force) == 0 {
			f.Force = nil
		}
		if len(f.Amorphous) == 0 {
			f.Amorphous = nil
		}
		return f
	}
	return reflect.DeepEqual(norm(yaml), norm(sqlite))
}

func compareStorage(w io.Writer, yaml, sqlite config.StorageData) bool {
	ok := true

	// Compare SQLite
	if (yaml.SQLite == nil) != (sqlite.SQLite == nil) {
		fmt.Fprintln(w, "✗ SQLite configuration presence mismatch")
		ok = false
	} else if yaml.SQLite != nil {
		if *yaml.SQLite == *sqlite.SQLite {
			fmt.Fprintln(w, "✓ SQLite configuration matches")
		} else {
			fmt.Fprintln(w, "✗ SQLite configuration differs")
			ok = false
		}
	} else {
		fmt.Fprintln(w, "✓ SQLite: both nil")
	}

	// Compare TimescaleDB
	if (yaml.TimescaleDB == nil) != (sqlite.TimescaleDB == nil) {
		fmt.Fprintln(w, "✗ TimescaleDB configuration presence mismatch")
		ok = false
	} else if yaml.TimescaleDB != nil {
		if *yaml.TimescaleDB == *sqlite.TimescaleDB {
			fmt.Fprintln(w, "✓ TimescaleDB configuration matches")
		} else {
			fmt.Fprintln(w, "✗ TimescaleDB configuration differs")
			ok = false
		}
	} else {
		fmt.Fprintln(w, "✓ TimescaleDB: both nil")
	}
	return ok
}

func compareControllers(yaml, sqlite config.ControllerData) bool {
	if yaml.Type != sqlite.Type {
		return false
	}

	// Compare each controller type
	if (yaml.RESTServer == nil) != (sqlite.RESTServer == nil) {
		return false
	}
	if yaml.RESTServer != nil && *yaml.RESTServer != *sqlite.RESTServer {
		return false
	}

	if (yaml.GRPC == nil) != (sqlite.GRPC == nil) {
		return false
	}
	if yaml.GRPC != nil && *yaml.GRPC != *sqlite.GRPC {
		return false
	}

	if (yaml.Watcher == nil) != (sqlite.Watcher == nil) {
		return false
	}
	if yaml.Watcher != nil && *yaml.Watcher != *sqlite.Watcher {
		return false
	}

	return true
}
