package fps

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

const (
	minAlignCandidates = 8
	maxAlignCandidates = 400
)

// interior returns the index range of axis lying at least margin inside both ends
func interior(axis []float64, margin float64) (int, int) {
	lo, hi := 0, len(axis)
	if margin <= 0 {
		return lo, hi
	}
	for lo < hi && axis[lo] < axis[0]+margin {
		lo++
	}
	for hi > lo && axis[hi-1] > axis[len(axis)-1]-margin {
		hi--
	}
	return lo, hi
}

// alignment finds the offset in [-limit, limit] that maximises the correlation
// between the shifted sample and the standard over the interior of the axis.
// A coarse grid locates the optimum and Nelder-Mead refines it.
func alignment(axis, obs, standard []float64, limit float64) float64 {
	lo, hi := interior(axis, limit)
	if hi-lo < 2 {
		return 0
	}
	inner := axis[lo:hi]
	target := standard[lo:hi]

	score := func(s float64) float64 {
		if s < -limit || s > limit {
			return math.Inf(1)
		}
		return -correlation(xrd.Resample(axis, obs, inner, s), target)
	}

	step := (axis[len(axis)-1] - axis[0]) / float64(len(axis)-1) / 4
	n := int(2*limit/step) + 1
	if n < minAlignCandidates {
		n = minAlignCandidates
	}
	if n > maxAlignCandidates {
		n = maxAlignCandidates
	}
	grid := floats.Span(make([]float64, n), -limit, limit)

	best, bestScore := 0.0, score(0)
	for _, s := range grid {
		if v := score(s); v < bestScore {
			best, bestScore = s, v
		}
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 { return score(x[0]) },
	}
	// Evaluation-limit terminations still carry the best location found
	res, _ := optimize.Minimize(p, []float64{best}, &optimize.Settings{FuncEvaluations: 200},
		&optimize.NelderMead{SimplexSize: 2 * limit / float64(n)})
	if res == nil {
		return best
	}
	if res.F < bestScore && math.Abs(res.X[0]) <= limit {
		return res.X[0]
	}
	return best
}
