package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/app"
	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/storage/sqlite"
	"github.com/chrissnell/xrdquant/internal/storage/timescaledb"
	"github.com/chrissnell/xrdquant/internal/types"
)

var (
	fitsStore   string
	fitsPG      string
	fitsJSON    bool
	fitsFilter  types.FitFilter
	fitsSinceIn string
)

var fitsCmd = &cobra.Command{
	Use:   "fits",
	Short: "Inspect stored fits",
	Long: `Reads fits recorded by the server or by --store. The store is a SQLite
file (--store), a TimescaleDB connection string (--timescaledb), or the first
storage backend of --config.`,
}

var fitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored fits, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, closeFn, err := openReader(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		filter := fitsFilter
		if fitsSinceIn != "" {
			if filter.Since, err = time.Parse(time.RFC3339, fitsSinceIn); err != nil {
				return fmt.Errorf("--since: %w", err)
			}
		}
		fits, err := reader.ListFits(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if fitsJSON {
			return writeJSON(cmd.OutOrStdout(), fits)
		}
		return printSummaries(cmd.OutOrStdout(), fits)
	},
}

var fitsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one stored fit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid fit id %q: %w", args[0], err)
		}
		reader, closeFn, err := openReader(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		rec, err := reader.GetFit(cmd.Context(), id)
		if err != nil {
			return err
		}
		if fitsJSON {
			return writeJSON(cmd.OutOrStdout(), rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Fit %s (%s via %s at %s)\n", rec.ID, rec.Mode, rec.Source, rec.CreatedAt.Format(time.RFC3339))
		return printResult(cmd.OutOrStdout(), rec.Result)
	},
}

func init() {
	fitsCmd.PersistentFlags().StringVar(&fitsStore, "store", "", "SQLite fit database")
	fitsCmd.PersistentFlags().StringVar(&fitsPG, "timescaledb", "", "TimescaleDB connection string")
	fitsCmd.PersistentFlags().BoolVar(&fitsJSON, "json", false, "Print JSON")

	fitsListCmd.Flags().StringVar(&fitsFilter.Sample, "sample", "", "Only fits of this sample")
	fitsListCmd.Flags().StringVar(&fitsFilter.Library, "library", "", "Only fits against this library")
	fitsListCmd.Flags().StringVar(&fitsSinceIn, "since", "", "Only fits created at or after this RFC3339 time")
	fitsListCmd.Flags().IntVar(&fitsFilter.Limit, "limit", 50, "Maximum number of fits")

	fitsCmd.AddCommand(fitsListCmd, fitsShowCmd)
	rootCmd.AddCommand(fitsCmd)
}

// openReader opens the fit store named by the flags or the configuration
func openReader(ctx context.Context) (storage.ResultReader, func(), error) {
	store, pg := fitsStore, fitsPG
	if store == "" && pg == "" && cfgFile != "" {
		cfg, err := app.LoadConfig(cfgFile, backend)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Storage.SQLite != nil {
			store = cfg.Storage.SQLite.Path
		} else if cfg.Storage.TimescaleDB != nil {
			pg = cfg.Storage.TimescaleDB.ConnectionString
		}
	}

	switch {
	case store != "":
		s, err := sqlite.New(ctx, store, log.Named("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case pg != "":
		s, err := timescaledb.New(ctx, pg, log.Named("timescaledb"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("no fit store: use --store, --timescaledb or --config")
	}
}

func printSummaries(w io.Writer, fits []types.FitSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCreated\tSample\tLibrary\tMode\tSource\tRwp\tTotal")
	for _, f := range fits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.4f\t%.2f\n",
			f.ID, f.CreatedAt.Local().Format("2006-01-02 15:04:05"), f.Sample, f.Library, f.Mode, f.Source, f.Rwp, f.Total)
	}
	return tw.Flush()
}
