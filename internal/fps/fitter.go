// Package fps quantifies X-ray powder diffraction patterns by full pattern
// summation: the measured pattern is modelled as a weighted sum of pure-phase
// reference patterns and the fitted weights are converted to weight percent
// with reference intensity ratios.
package fps

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// Fitter runs full pattern summation fits. A Fitter holds no per-fit state
// and may be shared between goroutines.
type Fitter struct {
	logger *zap.SugaredLogger
}

// NewFitter creates a Fitter logging to logger; nil disables logging
func NewFitter(logger *zap.SugaredLogger) *Fitter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fitter{logger: logger}
}

// Fit quantifies sample against the selected references of lib
func (f *Fitter) Fit(ctx context.Context, sample *xrd.Diffractogram, lib *xrd.Library, opts Options) (*Result, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	p, err := f.prepare(sample, lib, opts, nil)
	if err != nil {
		return nil, err
	}

	protect := map[string]bool{}
	if opts.Standard != "" {
		protect[opts.Standard] = true
	}

	coef, removed, err := f.solve(ctx, p, opts, protect)
	if err != nil {
		return nil, err
	}

	conc, err := specimen(p.phases, coef, opts.Standard, opts.StandardConc, opts.Signed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.sample, err)
	}

	res := f.result(p, coef, conc, removed, opts)
	f.logger.Debugf("fit %s against %s: %d phases, Rwp=%.4f, total=%.2f%%",
		res.Sample, res.Library, len(res.Phases), res.Rwp, res.Total())
	return res, nil
}

// prepare validates the inputs, selects references, harmonises axes and
// applies whole-sample alignment. extra lists references added to the
// selection when missing from opts.Refs.
func (f *Fitter) prepare(sample *xrd.Diffractogram, lib *xrd.Library, opts Options, extra []string) (*problem, error) {
	if sample == nil || lib == nil {
		return nil, fmt.Errorf("%w: sample and library are required", ErrInvalidOption)
	}
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	refs, err := selectRefs(lib, opts.Refs, extra)
	if err != nil {
		return nil, err
	}
	if opts.Standard != "" && !contains(refs, opts.Standard) {
		return nil, fmt.Errorf("%w: %s", ErrStandardNotSelected, opts.Standard)
	}

	sub, err := lib.Subset(refs, true)
	if err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	converted := sample.Wavelength > 0 && sub.Wavelength > 0 && sample.Wavelength != sub.Wavelength
	if converted && !opts.Harmonise {
		return nil, fmt.Errorf("%w: %s recorded at %.5f Å, library %s at %.5f Å (enable harmonise)",
			xrd.ErrWavelengthMismatch, sample.Name, sample.Wavelength, lib.Name, sub.Wavelength)
	}
	if converted || !xrd.AxesEqual(sample.TwoTheta, sub.TwoTheta) {
		if !opts.Harmonise {
			return nil, fmt.Errorf("%w: %s has %d points over [%.3f, %.3f], %s has %d over [%.3f, %.3f]",
				ErrAxisMismatch, sample.Name, sample.Len(), sample.TwoTheta[0], sample.TwoTheta[sample.Len()-1],
				lib.Name, sub.Len(), sub.TwoTheta[0], sub.TwoTheta[sub.Len()-1])
		}
		sample, sub, err = xrd.Harmonise(sample, sub)
		if err != nil {
			return nil, err
		}
		f.logger.Debugf("harmonised %s with %s onto %d points", sample.Name, lib.Name, sample.Len())
	}

	p := &problem{
		sample:  sample.Name,
		library: lib.Name,
		srcAxis: sample.TwoTheta,
		srcObs:  sample.Counts,
		src:     sub.Patterns,
		phases:  sub.Phases,
		shifts:  make([]float64, sub.Len()),
		signed:  opts.Signed,
		logger:  f.logger,
	}

	if opts.Align > 0 {
		std := p.index(opts.Standard)
		s := alignment(p.srcAxis, p.srcObs, p.src[std], opts.Align)
		lo, hi := interior(p.srcAxis, opts.Align)
		if hi-lo < 2 {
			return nil, fmt.Errorf("%w: alignment limit %g leaves no data", ErrInvalidOption, opts.Align)
		}
		axis := p.srcAxis[lo:hi]
		p.srcObs = xrd.Resample(p.srcAxis, p.srcObs, axis, s)
		src := make([][]float64, len(p.src))
		for i := range p.src {
			src[i] = p.src[i][lo:hi]
		}
		p.src = src
		p.srcAxis = axis
		p.alignment = s
		f.logger.Debugf("aligned %s by %.4f° against %s", p.sample, s, opts.Standard)
	}

	p.lo, p.hi = interior(p.srcAxis, opts.Shift)
	if p.hi-p.lo < 2 {
		return nil, fmt.Errorf("%w: shift limit %g leaves no data", ErrInvalidOption, opts.Shift)
	}
	return p, nil
}

// solve computes coefficients for the current references. Optimiser solvers
// without signed coefficients drop unprotected references that go negative
// and re-fit until none do.
func (f *Fitter) solve(ctx context.Context, p *problem, opts Options, protect map[string]bool) ([]float64, []Removal, error) {
	var removed []Removal
	score := objective(opts.Objective)

	for {
		if len(p.src) == 0 {
			return nil, removed, ErrNoReferences
		}
		if err := ctx.Err(); err != nil {
			return nil, removed, err
		}

		if opts.Shift > 0 {
			if err := p.searchShifts(ctx, opts.Shift, score); err != nil {
				return nil, removed, err
			}
		}

		patterns := p.patterns()
		coef, err := p.linear(patterns)
		if err != nil {
			return nil, removed, fmt.Errorf("%s: %w", p.sample, err)
		}
		if opts.Solver == SolverNNLS {
			return coef, removed, nil
		}

		coef, err = optimise(ctx, patterns, p.obs(), coef, opts)
		if err != nil {
			return nil, removed, err
		}
		if opts.Signed {
			return coef, removed, nil
		}

		drop := map[int]bool{}
		for i, c := range coef {
			if c < 0 && !protect[p.phases[i].ID] {
				drop[i] = true
				removed = append(removed, newRemoval(p.phases[i], ReasonNegative, 0, 0))
			}
		}
		if len(drop) == 0 {
			for i := range coef {
				if coef[i] < 0 {
					coef[i] = 0
				}
			}
			return coef, removed, nil
		}
		f.logger.Debugf("%s: removing %d references with negative coefficients", p.sample, len(drop))
		p.drop(drop)
	}
}

// result assembles the reported outcome of a solved problem
func (f *Fitter) result(p *problem, coef, conc []float64, removed []Removal, opts Options) *Result {
	axis := p.axis()
	obs := p.obs()
	fitted := synthesise(p.patterns(), coef, len(obs))
	residuals := make([]float64, len(obs))
	for i := range obs {
		residuals[i] = obs[i] - fitted[i]
	}

	phases, reported, idx := report(p.phases, conc, opts)
	out := make([]PhaseResult, len(phases))
	for k, ph := range phases {
		out[k] = PhaseResult{
			ID:            ph.ID,
			Name:          ph.Name,
			RIR:           ph.RIR,
			Coefficient:   coef[idx[k]],
			Shift:         p.shifts[idx[k]],
			Concentration: reported[k],
		}
	}

	return &Result{
		Sample:       p.sample,
		Library:      p.library,
		TwoTheta:     append([]float64(nil), axis...),
		Measured:     append([]float64(nil), obs...),
		Fitted:       fitted,
		Residuals:    residuals,
		Phases:       out,
		Grouped:      GroupPhases(out),
		Removed:      removed,
		Stats:        Evaluate(obs, fitted),
		Alignment:    p.alignment,
		Standard:     opts.Standard,
		StandardConc: opts.StandardConc,
		Closed:       opts.Closed,
	}
}

// selectRefs resolves the requested references against the library
func selectRefs(lib *xrd.Library, refs, extra []string) ([]string, error) {
	if len(refs) == 0 {
		refs = lib.IDs()
	}
	seen := make(map[string]bool, len(refs))
	var out []string
	for _, id := range append(append([]string(nil), refs...), extra...) {
		if seen[id] {
			continue
		}
		if !lib.Has(id) {
			return nil, fmt.Errorf("%w: %s not in library %s", ErrUnknownReference, id, lib.Name)
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, ErrNoReferences
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
