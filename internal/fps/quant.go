package fps

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// specimen converts coefficients to weight percent of the measured specimen.
//
// Without a standard concentration the RIR-scaled coefficients are normalised
// to sum to 100. With one, every phase is expressed against the standard:
// c_i = c_std · (x_i/RIR_i) / (x_std/RIR_std). Signed coefficients whose
// scaled sum is not positive cannot be normalised.
func specimen(phases []xrd.Phase, coef []float64, std string, stdConc float64, signed bool) ([]float64, error) {
	scaled := make([]float64, len(phases))
	for i, ph := range phases {
		scaled[i] = coef[i] / ph.RIR
	}
	conc := make([]float64, len(phases))

	if stdConc > 0 {
		k := -1
		for i, ph := range phases {
			if ph.ID == std {
				k = i
			}
		}
		if k < 0 {
			return nil, fmt.Errorf("%w: %s", ErrStandardNotSelected, std)
		}
		if scaled[k] <= 0 {
			return nil, fmt.Errorf("%w: %s coefficient %g", ErrStandardNotDetected, std, coef[k])
		}
		for i := range scaled {
			conc[i] = stdConc * scaled[i] / scaled[k]
		}
		return conc, nil
	}

	total := floats.Sum(scaled)
	if total <= 0 {
		if signed {
			return nil, fmt.Errorf("%w (%g)", ErrNonPositiveTotal, total)
		}
		return conc, nil
	}
	for i := range scaled {
		conc[i] = 100 * scaled[i] / total
	}
	return conc, nil
}

// report turns specimen concentrations into the reported ones. Removing the
// standard rescales the others to the un-spiked sample; closure then forces
// the remainder to sum to 100.
func report(phases []xrd.Phase, conc []float64, opts Options) ([]xrd.Phase, []float64, []int) {
	var keptPhases []xrd.Phase
	var kept []float64
	var idx []int
	for i, ph := range phases {
		if opts.OmitStandard && ph.ID == opts.Standard {
			continue
		}
		keptPhases = append(keptPhases, ph)
		kept = append(kept, conc[i])
		idx = append(idx, i)
	}

	if opts.OmitStandard {
		if opts.StandardConc > 0 {
			for i := range kept {
				kept[i] *= 100 / (100 - opts.StandardConc)
			}
		} else {
			closeTo100(kept)
		}
	}
	if opts.Closed {
		closeTo100(kept)
	}
	return keptPhases, kept, idx
}

func closeTo100(conc []float64) {
	var total float64
	for _, c := range conc {
		total += c
	}
	if total <= 0 {
		return
	}
	for i := range conc {
		conc[i] *= 100 / total
	}
}
