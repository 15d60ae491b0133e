package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/app"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/internal/managers"
	"github.com/chrissnell/xrdquant/internal/storage/sqlite"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// libraryFlags locates the reference library for one-shot commands
type libraryFlags struct {
	patterns   string
	phases     string
	name       string
	wavelength float64
}

func (l *libraryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.patterns, "patterns", "", "Reference pattern matrix CSV")
	cmd.Flags().StringVar(&l.phases, "phases", "", "Reference phase table CSV (id,name,rir)")
	cmd.Flags().StringVarP(&l.name, "library", "l", "", "Library name from --config, or the name given to --patterns")
	cmd.Flags().Float64Var(&l.wavelength, "wavelength", 0, "Library wavelength in Å")
}

// load reads the library from the CSV pair, or from the configuration when
// no files are given. It also returns the configured fit defaults.
func (l *libraryFlags) load() (*xrd.Library, fps.AutoOptions, error) {
	var cfg *config.ConfigData
	if cfgFile != "" {
		var err error
		cfg, err = app.LoadConfig(cfgFile, backend)
		if err != nil {
			return nil, fps.AutoOptions{}, err
		}
	}
	var defaults fps.AutoOptions
	if cfg != nil {
		defaults = managers.FitDefaults(&cfg.Fitting)
	}

	if l.patterns != "" || l.phases != "" {
		if l.patterns == "" || l.phases == "" {
			return nil, defaults, fmt.Errorf("--patterns and --phases must be given together")
		}
		name := l.name
		if name == "" {
			name = xrd.SampleName(l.patterns)
		}
		lib, err := xrd.ReadLibraryFiles(name, l.patterns, l.phases)
		if err != nil {
			return nil, defaults, err
		}
		if l.wavelength > 0 {
			lib.Wavelength = l.wavelength
		}
		return lib, defaults, nil
	}

	if cfg == nil {
		return nil, defaults, fmt.Errorf("a library is required: use --patterns/--phases or --config with --library")
	}
	libs, err := managers.NewLibraryManager(cfg.Libraries, log.Named("libraries"))
	if err != nil {
		return nil, defaults, err
	}
	name := l.name
	if name == "" {
		names := libs.Names()
		if len(names) != 1 {
			return nil, defaults, fmt.Errorf("--library is required when %d libraries are configured", len(names))
		}
		name = names[0]
	}
	lib, err := libs.Get(name)
	if err != nil {
		return nil, defaults, fmt.Errorf("%w: %s", err, name)
	}
	return lib, defaults, nil
}

// fitFlags binds fit options to command-line flags
type fitFlags struct {
	opts fps.AutoOptions
}

func (f *fitFlags) register(cmd *cobra.Command, auto bool) {
	fl := cmd.Flags()
	fl.StringSliceVar(&f.opts.Refs, "refs", nil, "Reference IDs to fit (default: whole library)")
	fl.StringVar(&f.opts.Standard, "std", "", "Internal standard reference ID")
	fl.Float64Var(&f.opts.StandardConc, "std-conc", 0, "Known weight percent of the internal standard")
	fl.Float64Var(&f.opts.Align, "align", 0, "Maximum whole-sample alignment against the standard (°2θ)")
	fl.Float64Var(&f.opts.Shift, "shift", 0, "Per-reference peak shift tolerance (°2θ)")
	fl.BoolVar(&f.opts.Harmonise, "harmonise", true, "Interpolate sample and library onto a common axis when they differ")
	fl.BoolVar(&f.opts.Closed, "closed", false, "Close the reported concentrations to 100")
	fl.BoolVar(&f.opts.OmitStandard, "omit-std", false, "Report relative to the un-spiked sample without the standard")
	fl.BoolVar(&f.opts.Signed, "signed", false, "Allow negative coefficients")
	fl.StringVar((*string)(&f.opts.Solver), "solver", "", "Solver: nnls, nelder-mead, bfgs or lbfgs")
	fl.StringVar((*string)(&f.opts.Objective), "objective", "", "Objective for optimiser solvers: rwp, r or delta")
	fl.IntVar(&f.opts.MaxIter, "max-iter", 0, "Optimiser evaluation cap")
	if auto {
		fl.Float64Var(&f.opts.LOD, "lod", 0, "Detection limit of the internal standard (wt%)")
		fl.StringSliceVar(&f.opts.Force, "force", nil, "Reference IDs never removed")
		fl.StringSliceVar(&f.opts.Amorphous, "amorphous", nil, "Reference IDs treated as amorphous")
		fl.Float64Var(&f.opts.AmorphousLOD, "amorphous-lod", 0, "Removal threshold for amorphous phases (wt%)")
	}
}

// resolve applies configured defaults to every flag left unset
func (f *fitFlags) resolve(cmd *cobra.Command, defaults fps.AutoOptions) fps.AutoOptions {
	o := f.opts
	fl := cmd.Flags()
	set := func(name string) bool { return fl.Changed(name) }

	if !set("std") {
		o.Standard = defaults.Standard
	}
	if !set("std-conc") {
		o.StandardConc = defaults.StandardConc
	}
	if !set("align") {
		o.Align = defaults.Align
	}
	if !set("shift") {
		o.Shift = defaults.Shift
	}
	if !set("harmonise") && cfgFile != "" {
		o.Harmonise = defaults.Harmonise
	}
	if !set("closed") {
		o.Closed = o.Closed || defaults.Closed
	}
	if !set("omit-std") {
		o.OmitStandard = o.OmitStandard || defaults.OmitStandard
	}
	if !set("solver") {
		o.Solver = defaults.Solver
	}
	if !set("objective") {
		o.Objective = defaults.Objective
	}
	if fl.Lookup("lod") != nil {
		if !set("lod") {
			o.LOD = defaults.LOD
		}
		if !set("force") {
			o.Force = defaults.Force
		}
		if !set("amorphous") {
			o.Amorphous = defaults.Amorphous
		}
		if !set("amorphous-lod") {
			o.AmorphousLOD = defaults.AmorphousLOD
		}
	}
	return o
}

// recorder persists CLI fits to a SQLite database when --store is given
type recorder struct {
	store *sqlite.Storage
}

func openRecorder(ctx context.Context, path string, logger *zap.SugaredLogger) (*recorder, error) {
	if path == "" {
		return &recorder{}, nil
	}
	s, err := sqlite.New(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	return &recorder{store: s}, nil
}

func (r *recorder) record(ctx context.Context, mode types.FitMode, res *fps.Result) (string, error) {
	if r.store == nil || res == nil {
		return "", nil
	}
	rec := types.NewFitRecord(mode, types.SourceCLI, res)
	if err := r.store.StoreFit(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID.String(), nil
}

func (r *recorder) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// printResult writes a human readable report of one fit
func printResult(w io.Writer, res *fps.Result) error {
	fmt.Fprintf(w, "Sample:   %s\n", res.Sample)
	fmt.Fprintf(w, "Library:  %s\n", res.Library)
	if res.Standard != "" {
		fmt.Fprintf(w, "Standard: %s", res.Standard)
		if res.StandardConc > 0 {
			fmt.Fprintf(w, " at %.2f wt%%", res.StandardConc)
		}
		fmt.Fprintln(w)
	}
	if res.Alignment != 0 {
		fmt.Fprintf(w, "Aligned:  %+.4f °2θ\n", res.Alignment)
	}
	fmt.Fprintf(w, "Rwp %.4f  R %.4f  Delta %.4f  r %.4f\n\n", res.Rwp, res.R, res.Delta, res.Correlation)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPhase\tRIR\tCoefficient\tShift\twt%")
	for _, p := range res.Phases {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.6g\t%+.3f\t%.2f\n", p.ID, p.Name, p.RIR, p.Coefficient, p.Shift, p.Concentration)
	}
	fmt.Fprintf(tw, "\t\t\t\tTotal\t%.2f\n", res.Total())
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Grouped) < len(res.Phases) {
		fmt.Fprintln(w, "\nGrouped:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, g := range res.Grouped {
			fmt.Fprintf(tw, "  %s\t%.2f\n", g.Name, g.Concentration)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(res.Removed) > 0 {
		fmt.Fprintln(w, "\nRemoved:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range res.Removed {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%.3f", r.ID, r.Name, r.Reason, r.Concentration)
			if r.LOD > 0 {
				fmt.Fprintf(tw, "\t(lod %.3f)", r.LOD)
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeFitted writes measured, fitted and residual intensities as CSV
func writeFitted(path string, res *fps.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"tth", "measured", "fitted", "residual"}); err != nil {
		return err
	}
	for i := range res.TwoTheta {
		row := []string{
			strconv.FormatFloat(res.TwoTheta[i], 'f', -1, 64),
			format(res.Measured[i]),
			format(res.Fitted[i]),
			format(res.Residuals[i]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}
