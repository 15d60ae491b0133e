package fps

import (
	"context"
	"fmt"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// AutoFit runs an automated fit. Starting from every selected reference it
// repeatedly fits, then drops references that fit with a non-positive
// coefficient or fall below their estimated detection limit, until the
// selection is stable. Forced references and the internal standard are never
// dropped.
//
// A crystalline phase's detection limit is estimated from the standard's as
// lod_i = LOD · RIR_std / RIR_i. Amorphous references are exempt from that
// rule and are dropped only below AmorphousLOD. Limits are compared with the
// specimen concentrations, before omitting the standard or closing.
func (f *Fitter) AutoFit(ctx context.Context, sample *xrd.Diffractogram, lib *xrd.Library, opts AutoOptions) (*Result, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	// Forced references join the selection even when not listed in Refs
	p, err := f.prepare(sample, lib, opts.Options, opts.Force)
	if err != nil {
		return nil, err
	}
	for _, id := range opts.Amorphous {
		if !lib.Has(id) {
			return nil, fmt.Errorf("%w: amorphous reference %s not in library %s", ErrUnknownReference, id, lib.Name)
		}
	}

	protect := make(map[string]bool, len(opts.Force)+1)
	for _, id := range opts.Force {
		protect[id] = true
	}
	if opts.Standard != "" {
		protect[opts.Standard] = true
	}
	amorphous := make(map[string]bool, len(opts.Amorphous))
	for _, id := range opts.Amorphous {
		amorphous[id] = true
	}

	var stdRIR float64
	if opts.Standard != "" {
		stdRIR = p.phases[p.index(opts.Standard)].RIR
	}

	var removed []Removal
	for round := 1; ; round++ {
		coef, negatives, err := f.solve(ctx, p, opts.Options, protect)
		removed = append(removed, negatives...)
		if err != nil {
			return nil, err
		}

		conc, err := specimen(p.phases, coef, opts.Standard, opts.StandardConc, opts.Signed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.sample, err)
		}

		drop := map[int]bool{}
		for i, ph := range p.phases {
			if protect[ph.ID] {
				continue
			}
			switch {
			case coef[i] <= 0:
				drop[i] = true
				removed = append(removed, newRemoval(ph, ReasonNonPositive, conc[i], 0))
			case amorphous[ph.ID]:
				if opts.AmorphousLOD > 0 && conc[i] < opts.AmorphousLOD {
					drop[i] = true
					removed = append(removed, newRemoval(ph, ReasonBelowAmorphousLOD, conc[i], opts.AmorphousLOD))
				}
			case opts.LOD > 0:
				lod := opts.LOD * stdRIR / ph.RIR
				if conc[i] < lod {
					drop[i] = true
					removed = append(removed, newRemoval(ph, ReasonBelowLOD, conc[i], lod))
				}
			}
		}

		if len(drop) == 0 {
			res := f.result(p, coef, conc, removed, opts.Options)
			f.logger.Debugf("automated fit %s against %s: %d phases kept, %d removed in %d rounds, Rwp=%.4f",
				res.Sample, res.Library, len(res.Phases), len(res.Removed), round, res.Rwp)
			return res, nil
		}

		f.logger.Debugf("%s round %d: removing %d references", p.sample, round, len(drop))
		p.drop(drop)
	}
}
