package main

import (
	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// fitOutput holds the output flags shared by fit and afps
type fitOutput struct {
	json   bool
	fitted string
	store  string
}

func (o *fitOutput) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&o.fitted, "fitted", "", "Write measured, fitted and residual intensities to this CSV")
	cmd.Flags().StringVar(&o.store, "store", "", "Record the fit in this SQLite database")
}

var (
	fitLib   libraryFlags
	fitOpts  fitFlags
	fitOut   fitOutput
	afpsLib  libraryFlags
	afpsOpts fitFlags
	afpsOut  fitOutput
)

var fitCmd = &cobra.Command{
	Use:   "fit SAMPLE.xy",
	Short: "Quantify a sample by full pattern summation",
	Long: `Fits the sample against the selected references and converts the
fitted coefficients to weight percent using each reference's RIR.

Example:
  xrdquant fit --patterns lib.csv --phases phases.csv --std COR --std-conc 20 sample.xy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFit(cmd, args[0], &fitLib, &fitOpts, &fitOut, false)
	},
}

var afpsCmd = &cobra.Command{
	Use:   "afps SAMPLE.xy",
	Short: "Quantify a sample with automated phase selection",
	Long: `Fits the sample against the whole library, then removes references with
non-positive coefficients or concentrations below their estimated detection
limit and re-fits until the selection is stable.

Example:
  xrdquant afps -c xrdquant.yaml --std COR --lod 0.05 --force QUA sample.xy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFit(cmd, args[0], &afpsLib, &afpsOpts, &afpsOut, true)
	},
}

func init() {
	fitLib.register(fitCmd)
	fitOpts.register(fitCmd, false)
	fitOut.register(fitCmd)

	afpsLib.register(afpsCmd)
	afpsOpts.register(afpsCmd, true)
	afpsOut.register(afpsCmd)

	rootCmd.AddCommand(fitCmd, afpsCmd)
}

func runFit(cmd *cobra.Command, path string, lf *libraryFlags, ff *fitFlags, out *fitOutput, auto bool) error {
	ctx := cmd.Context()

	lib, defaults, err := lf.load()
	if err != nil {
		return err
	}
	sample, err := xrd.ReadXYFile(path)
	if err != nil {
		return err
	}
	opts := ff.resolve(cmd, defaults)

	fitter := fps.NewFitter(log.Named("fps"))
	var res *fps.Result
	mode := types.ModeFit
	if auto {
		mode = types.ModeAutoFit
		res, err = fitter.AutoFit(ctx, sample, lib, opts)
	} else {
		res, err = fitter.Fit(ctx, sample, lib, opts.Options)
	}
	if err != nil {
		return err
	}

	rec, err := openRecorder(ctx, out.store, log.Named("sqlite"))
	if err != nil {
		return err
	}
	defer rec.Close()
	id, err := rec.record(ctx, mode, res)
	if err != nil {
		return err
	}
	if id != "" {
		log.Infof("stored fit %s of %s", id, res.Sample)
	}

	if out.fitted != "" {
		if err := writeFitted(out.fitted, res); err != nil {
			return err
		}
	}
	if out.json {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return printResult(cmd.OutOrStdout(), res)
}
