package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/app"
	"github.com/chrissnell/xrdquant/internal/batch"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

var (
	batchLib     libraryFlags
	batchOpts    fitFlags
	batchAuto    bool
	batchWorkers int
	batchGrouped bool
	batchOut     string
	batchStore   string
)

var batchCmd = &cobra.Command{
	Use:   "batch SAMPLES.csv | SAMPLE.xy...",
	Short: "Quantify many samples in parallel",
	Long: `Fits every sample independently against one library and writes a CSV
summary with a row per sample and a column per phase. Samples are either a
multi-sample table (first column 2θ, one column per sample) or a list of XY
files.

Example:
  xrdquant batch -c xrdquant.yaml --afps --workers 8 --out summary.csv scans/*.xy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchLib.register(batchCmd)
	batchOpts.register(batchCmd, true)
	batchCmd.Flags().BoolVar(&batchAuto, "afps", false, "Use automated phase selection")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Concurrent fits (default: configured workers, else one per CPU)")
	batchCmd.Flags().BoolVar(&batchGrouped, "grouped", false, "Summarise by phase group instead of reference")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Write the summary to this file instead of stdout")
	batchCmd.Flags().StringVar(&batchStore, "store", "", "Record every fit in this SQLite database")

	rootCmd.AddCommand(batchCmd)
}

// readSamples loads a multi-sample table or a list of XY files
func readSamples(args []string) ([]*xrd.Diffractogram, error) {
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".csv") {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return xrd.ReadMultiSample(f)
	}

	samples := make([]*xrd.Diffractogram, 0, len(args))
	for _, path := range args {
		d, err := xrd.ReadXYFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		samples = append(samples, d)
	}
	return samples, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	lib, defaults, err := batchLib.load()
	if err != nil {
		return err
	}
	samples, err := readSamples(args)
	if err != nil {
		return err
	}
	opts := batchOpts.resolve(cmd, defaults)

	workers := batchWorkers
	if workers == 0 && cfgFile != "" {
		if cfg, err := app.LoadConfig(cfgFile, backend); err == nil {
			workers = cfg.Fitting.Workers
		}
	}

	runner := batch.NewRunner(fps.NewFitter(log.Named("fps")), workers, log.Named("batch"))
	var outcomes []batch.Outcome
	mode := types.ModeFit
	if batchAuto {
		mode = types.ModeAutoFit
		outcomes, err = runner.AutoFit(ctx, samples, lib, opts)
	} else {
		outcomes, err = runner.Fit(ctx, samples, lib, opts.Options)
	}
	if err != nil {
		return err
	}

	rec, err := openRecorder(ctx, batchStore, log.Named("sqlite"))
	if err != nil {
		return err
	}
	defer rec.Close()
	for _, o := range outcomes {
		if _, err := rec.record(ctx, mode, o.Result); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if batchOut != "" {
		f, err := os.Create(batchOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := batch.WriteSummary(w, outcomes, batchGrouped); err != nil {
		return err
	}

	if failed := batch.Failed(outcomes); len(failed) > 0 {
		for _, o := range failed {
			log.Warnf("%s: %v", o.Sample, o.Err)
		}
		return fmt.Errorf("%d of %d samples failed", len(failed), len(outcomes))
	}
	return nil
}
