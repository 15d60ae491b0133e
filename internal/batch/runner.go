// Package batch fits many samples against one library in parallel.
package batch

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// Outcome is the fit of one sample. Err is set when that sample failed.
type Outcome struct {
	Sample string
	Result *fps.Result
	Err    error
}

// Runner distributes independent per-sample fits across a bounded pool of
// goroutines. Samples share nothing but the read-only library.
type Runner struct {
	fitter  *fps.Fitter
	workers int
	logger  *zap.SugaredLogger
}

// NewRunner creates a Runner; workers <= 0 uses one per CPU
func NewRunner(fitter *fps.Fitter, workers int, logger *zap.SugaredLogger) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{fitter: fitter, workers: workers, logger: logger}
}

// Fit runs a full pattern summation fit on every sample
func (r *Runner) Fit(ctx context.Context, samples []*xrd.Diffractogram, lib *xrd.Library, opts fps.Options) ([]Outcome, error) {
	return r.run(ctx, samples, func(ctx context.Context, s *xrd.Diffractogram) (*fps.Result, error) {
		return r.fitter.Fit(ctx, s, lib, opts)
	})
}

// AutoFit runs an automated fit on every sample
func (r *Runner) AutoFit(ctx context.Context, samples []*xrd.Diffractogram, lib *xrd.Library, opts fps.AutoOptions) ([]Outcome, error) {
	return r.run(ctx, samples, func(ctx context.Context, s *xrd.Diffractogram) (*fps.Result, error) {
		return r.fitter.AutoFit(ctx, s, lib, opts)
	})
}

// run returns outcomes in input order. The error is non-nil only when ctx
// ends before every sample was fitted.
func (r *Runner) run(ctx context.Context, samples []*xrd.Diffractogram, fit func(context.Context, *xrd.Diffractogram) (*fps.Result, error)) ([]Outcome, error) {
	outcomes := make([]Outcome, len(samples))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, s := range samples {
		if gctx.Err() != nil {
			break
		}
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := ""
			if s != nil {
				name = s.Name
			}
			res, err := fit(gctx, s)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				r.logger.Warnf("fit of %s failed: %v", name, err)
			}
			outcomes[i] = Outcome{Sample: name, Result: res, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}

	r.logger.Infof("fitted %d samples with %d workers in %v", len(samples), r.workers, time.Since(start).Round(time.Millisecond))
	return outcomes, nil
}

// Failed returns the outcomes that carry an error
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
