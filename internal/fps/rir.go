package fps

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// ErrCalibrationData is returned when too few usable mixtures are supplied
var ErrCalibrationData = errors.New("fps: not enough calibration mixtures")

// RIRMixture is a binary mixture of a phase and the standard at known weight
// percentages.
type RIRMixture struct {
	Pattern      *xrd.Diffractogram
	PhaseConc    float64
	StandardConc float64
}

// RIRPoint is the fitted intensity ratio of one calibration mixture
type RIRPoint struct {
	Sample         string  `json:"sample"`
	ConcRatio      float64 `json:"conc_ratio"`
	IntensityRatio float64 `json:"intensity_ratio"`
	RIR            float64 `json:"rir"`
	Rwp            float64 `json:"rwp"`
}

// RIREstimate is a reference intensity ratio derived from binary mixtures
type RIREstimate struct {
	Phase       string     `json:"phase"`
	Standard    string     `json:"std"`
	StandardRIR float64    `json:"std_rir"`
	RIR         float64    `json:"rir"`
	RSquared    float64    `json:"r_squared"`
	RMSE        float64    `json:"rmse"`
	Points      []RIRPoint `json:"points"`
}

// EstimateRIR derives the reference intensity ratio of phase from binary
// mixtures with the standard. Each mixture is fitted against the two
// references; the intensity ratio x_phase/x_std is then regressed through the
// origin on the concentration ratio c_phase/c_std, and the slope scaled by the
// standard's RIR.
func (f *Fitter) EstimateRIR(ctx context.Context, lib *xrd.Library, phase, standard string, mixtures []RIRMixture) (*RIREstimate, error) {
	if lib == nil {
		return nil, fmt.Errorf("%w: library is required", ErrInvalidOption)
	}
	std, err := lib.Phase(standard)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownReference, err)
	}
	if !lib.Has(phase) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, phase)
	}
	if len(mixtures) == 0 {
		return nil, ErrCalibrationData
	}

	est := &RIREstimate{Phase: phase, Standard: standard, StandardRIR: std.RIR}
	var conc, intensity []float64
	for _, m := range mixtures {
		if m.Pattern == nil {
			return nil, fmt.Errorf("%w: mixture without a pattern", ErrCalibrationData)
		}
		if m.PhaseConc <= 0 || m.StandardConc <= 0 {
			return nil, fmt.Errorf("%w: mixture %s", ErrInvalidConcentration, m.Pattern.Name)
		}
		res, err := f.Fit(ctx, m.Pattern, lib, Options{
			Refs:      []string{phase, standard},
			Standard:  standard,
			Harmonise: true,
		})
		if err != nil {
			return nil, fmt.Errorf("mixture %s: %w", m.Pattern.Name, err)
		}
		p, _ := res.Phase(phase)
		s, _ := res.Phase(standard)
		if s.Coefficient <= 0 {
			return nil, fmt.Errorf("mixture %s: %w", m.Pattern.Name, ErrStandardNotDetected)
		}

		point := RIRPoint{
			Sample:         res.Sample,
			ConcRatio:      m.PhaseConc / m.StandardConc,
			IntensityRatio: p.Coefficient / s.Coefficient,
			Rwp:            res.Rwp,
		}
		point.RIR = point.IntensityRatio * std.RIR / point.ConcRatio
		est.Points = append(est.Points, point)
		conc = append(conc, point.ConcRatio)
		intensity = append(intensity, point.IntensityRatio)
	}

	// With one mixture the regression reduces to the single ratio
	_, slope := stat.LinearRegression(conc, intensity, nil, true)
	est.RIR = slope * std.RIR
	if !(est.RIR > 0) {
		return nil, fmt.Errorf("%w: fitted RIR %g for %s", ErrCalibrationData, est.RIR, phase)
	}

	if len(conc) > 1 {
		est.RSquared = stat.RSquared(conc, intensity, nil, 0, slope)
	}
	var sse float64
	for i := range conc {
		d := intensity[i] - slope*conc[i]
		sse += d * d
	}
	est.RMSE = math.Sqrt(sse / float64(len(conc)))

	f.logger.Debugf("RIR of %s against %s from %d mixtures: %.3f (R²=%.4f)",
		phase, standard, len(conc), est.RIR, est.RSquared)
	return est, nil
}
