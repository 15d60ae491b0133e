package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

var (
	rirLib      libraryFlags
	rirPhase    string
	rirStandard string
	rirMixtures []string
	rirCSV      string
	rirJSON     bool
)

var rirCmd = &cobra.Command{
	Use:   "rir --phase ID --std ID --mixture FILE,PHASE_WT,STD_WT...",
	Short: "Estimate a reference intensity ratio from binary mixtures",
	Long: `Fits each binary mixture of a phase and the internal standard against the
two references and regresses the fitted intensity ratio on the weighed
concentration ratio. The slope scaled by the standard's RIR is the phase RIR.

Example:
  xrdquant rir --patterns lib.csv --phases phases.csv --phase QUA --std COR \
      --mixture q50.xy,50,50 --mixture q30.xy,30,70`,
	Args: cobra.NoArgs,
	RunE: runRIR,
}

func init() {
	rirLib.register(rirCmd)
	rirCmd.Flags().StringVar(&rirPhase, "phase", "", "Reference ID of the phase to calibrate")
	rirCmd.Flags().StringVar(&rirStandard, "std", "", "Reference ID of the standard")
	rirCmd.Flags().StringArrayVarP(&rirMixtures, "mixture", "m", nil, "Mixture as FILE,PHASE_WT,STD_WT (repeatable)")
	rirCmd.Flags().StringVar(&rirCSV, "csv", "", "Export per-mixture ratios to this CSV")
	rirCmd.Flags().BoolVar(&rirJSON, "json", false, "Print the estimate as JSON")
	rirCmd.MarkFlagRequired("phase")
	rirCmd.MarkFlagRequired("std")
	rirCmd.MarkFlagRequired("mixture")

	rootCmd.AddCommand(rirCmd)
}

// parseMixture reads a FILE,PHASE_WT,STD_WT argument
func parseMixture(arg string) (fps.RIRMixture, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		return fps.RIRMixture{}, fmt.Errorf("mixture %q: want FILE,PHASE_WT,STD_WT", arg)
	}
	phaseConc, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return fps.RIRMixture{}, fmt.Errorf("mixture %q: %w", arg, err)
	}
	stdConc, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return fps.RIRMixture{}, fmt.Errorf("mixture %q: %w", arg, err)
	}
	pattern, err := xrd.ReadXYFile(strings.TrimSpace(parts[0]))
	if err != nil {
		return fps.RIRMixture{}, err
	}
	return fps.RIRMixture{Pattern: pattern, PhaseConc: phaseConc, StandardConc: stdConc}, nil
}

func runRIR(cmd *cobra.Command, args []string) error {
	lib, _, err := rirLib.load()
	if err != nil {
		return err
	}

	mixtures := make([]fps.RIRMixture, 0, len(rirMixtures))
	for _, arg := range rirMixtures {
		m, err := parseMixture(arg)
		if err != nil {
			return err
		}
		mixtures = append(mixtures, m)
	}

	est, err := fps.NewFitter(log.Named("fps")).EstimateRIR(cmd.Context(), lib, rirPhase, rirStandard, mixtures)
	if err != nil {
		return err
	}

	if rirCSV != "" {
		if err := exportRIR(rirCSV, est); err != nil {
			return fmt.Errorf("exporting %s: %w", rirCSV, err)
		}
		log.Infof("exported %d mixtures to %s", len(est.Points), rirCSV)
	}
	if rirJSON {
		return writeJSON(cmd.OutOrStdout(), est)
	}
	displayRIR(cmd.OutOrStdout(), est, lib)
	return nil
}

func displayRIR(w io.Writer, est *fps.RIREstimate, lib *xrd.Library) {
	fmt.Fprintf(w, "RIR Calibration (%s against %s)\n", est.Phase, est.Standard)
	fmt.Fprintf(w, "==============================\n\n")

	fmt.Fprintf(w, "%-20s | %10s | %10s | %8s | %8s\n", "Mixture", "c ratio", "I ratio", "RIR", "Rwp")
	fmt.Fprintf(w, "---------------------+------------+------------+----------+---------\n")
	for _, p := range est.Points {
		fmt.Fprintf(w, "%-20s | %10.4f | %10.4f | %8.3f | %8.4f\n", p.Sample, p.ConcRatio, p.IntensityRatio, p.RIR, p.Rwp)
	}

	fmt.Fprintf(w, "\nEstimate:\n")
	fmt.Fprintf(w, "  RIR(%s) = %.4f  (standard RIR %.4f)\n", est.Phase, est.RIR, est.StandardRIR)
	if ph, err := lib.Phase(est.Phase); err == nil {
		fmt.Fprintf(w, "  Library value = %.4f (%+.1f%%)\n", ph.RIR, 100*(est.RIR-ph.RIR)/ph.RIR)
	}
	if len(est.Points) > 1 {
		fmt.Fprintf(w, "  R² = %.4f\n", est.RSquared)
	}
	fmt.Fprintf(w, "  RMSE = %.4f\n", est.RMSE)

	if len(est.Points) > 1 && est.RSquared < 0.9 {
		fmt.Fprintf(w, "\n  ⚠ WARNING: Low R² (%.4f) - check mixture weights and preferred orientation\n", est.RSquared)
	}
	fmt.Fprintln(w)
}

func exportRIR(filename string, est *fps.RIREstimate) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	if err := writer.Write([]string{"sample", "conc_ratio", "intensity_ratio", "rir", "rwp"}); err != nil {
		return err
	}

	// Write data
	for _, p := range est.Points {
		record := []string{
			p.Sample,
			fmt.Sprintf("%.6f", p.ConcRatio),
			fmt.Sprintf("%.6f", p.IntensityRatio),
			fmt.Sprintf("%.6f", p.RIR),
			fmt.Sprintf("%.6f", p.Rwp),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
