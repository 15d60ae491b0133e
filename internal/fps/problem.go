package fps

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

const maxShiftCandidates = 41

// problem is a prepared fit: reference patterns on a source axis, the
// observation on the same axis, and the evaluation window [lo, hi) that leaves
// room for per-reference shifts.
type problem struct {
	sample  string
	library string

	srcAxis []float64
	srcObs  []float64
	src     [][]float64
	phases  []xrd.Phase
	shifts  []float64
	lo, hi  int

	alignment float64
	signed    bool
	logger    *zap.SugaredLogger
}

func (p *problem) axis() []float64 { return p.srcAxis[p.lo:p.hi] }

func (p *problem) obs() []float64 { return p.srcObs[p.lo:p.hi] }

func (p *problem) pattern(i int) []float64 {
	if p.shifts[i] == 0 {
		return p.src[i][p.lo:p.hi]
	}
	return xrd.Resample(p.srcAxis, p.src[i], p.axis(), p.shifts[i])
}

func (p *problem) patterns() [][]float64 {
	out := make([][]float64, len(p.src))
	for i := range p.src {
		out[i] = p.pattern(i)
	}
	return out
}

func (p *problem) index(id string) int {
	for i, ph := range p.phases {
		if ph.ID == id {
			return i
		}
	}
	return -1
}

// drop removes the references at the given positions
func (p *problem) drop(remove map[int]bool) {
	var src [][]float64
	var phases []xrd.Phase
	var shifts []float64
	for i := range p.src {
		if remove[i] {
			continue
		}
		src = append(src, p.src[i])
		phases = append(phases, p.phases[i])
		shifts = append(shifts, p.shifts[i])
	}
	p.src, p.phases, p.shifts = src, phases, shifts
}

// linear solves for coefficients with NNLS, or plain least squares when
// signed coefficients are allowed. An NNLS run that hits its iteration cap
// still yields a feasible point, which is used.
func (p *problem) linear(patterns [][]float64) ([]float64, error) {
	if p.signed {
		return solveLinear(patterns, p.obs())
	}
	x, err := nnls(patterns, p.obs())
	if errors.Is(err, ErrNotConverged) && x != nil {
		p.logger.Warnf("%s: %v, using last feasible solution", p.sample, err)
		return x, nil
	}
	return x, err
}

// searchShifts adjusts each reference's 2θ offset in turn over a grid in
// [-limit, limit], keeping any offset that lowers the objective of the linear
// fit. At most two passes are made over the references.
func (p *problem) searchShifts(ctx context.Context, limit float64, score func(obs, calc []float64) float64) error {
	axis := p.axis()
	obs := p.obs()
	step := math.Min((p.srcAxis[len(p.srcAxis)-1]-p.srcAxis[0])/float64(len(p.srcAxis)-1)/2, limit/5)
	n := int(2*limit/step) + 1
	if n > maxShiftCandidates {
		n = maxShiftCandidates
	}
	if n%2 == 0 {
		n++
	}
	grid := floats.Span(make([]float64, n), -limit, limit)

	patterns := p.patterns()
	coef, err := p.linear(patterns)
	if err != nil {
		return err
	}
	best := score(obs, synthesise(patterns, coef, len(obs)))

	for pass := 0; pass < 2; pass++ {
		improved := false
		for i := range p.src {
			if err := ctx.Err(); err != nil {
				return err
			}
			chosen := patterns[i]
			for _, s := range grid {
				if s == p.shifts[i] {
					continue
				}
				patterns[i] = xrd.Resample(p.srcAxis, p.src[i], axis, s)
				c, err := p.linear(patterns)
				if err != nil {
					continue
				}
				if v := score(obs, synthesise(patterns, c, len(obs))); v < best-1e-12 {
					best = v
					p.shifts[i] = s
					chosen = patterns[i]
					improved = true
				}
			}
			patterns[i] = chosen
		}
		if !improved {
			break
		}
	}
	p.logger.Debugf("%s: peak shifts %v (objective %.5f)", p.sample, p.shifts, best)
	return nil
}
