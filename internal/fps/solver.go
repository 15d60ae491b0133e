package fps

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// method maps an optimiser solver to its gonum implementation
func (s Solver) method() optimize.Method {
	switch s {
	case SolverBFGS:
		return &optimize.BFGS{}
	case SolverLBFGS:
		return &optimize.LBFGS{}
	default:
		return &optimize.NelderMead{}
	}
}

// optimise refines start by minimising the objective directly. The result is
// only accepted when it improves on start.
func optimise(ctx context.Context, patterns [][]float64, obs, start []float64, opts Options) ([]float64, error) {
	score := objective(opts.Objective)
	n := len(obs)
	f := func(x []float64) float64 {
		return score(obs, synthesise(patterns, x, n))
	}

	p := optimize.Problem{Func: f}
	if opts.Solver != SolverNelderMead {
		p.Grad = func(grad, x []float64) {
			fd.Gradient(grad, f, x, nil)
		}
	}

	settings := &optimize.Settings{FuncEvaluations: opts.MaxIter, Recorder: ctxRecorder{ctx}}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := optimize.Minimize(p, append([]float64(nil), start...), settings, opts.Solver.method())
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if res == nil {
		return nil, fmt.Errorf("%s solver: %w", opts.Solver, err)
	}
	if res.F < f(start) {
		return res.X, nil
	}
	return start, nil
}

// ctxRecorder stops a minimisation once ctx is done. Minimize consults it
// after every evaluation and iteration.
type ctxRecorder struct {
	ctx context.Context
}

func (r ctxRecorder) Init() error { return r.ctx.Err() }

func (r ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}
