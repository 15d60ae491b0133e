package fps

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// nnlsTolerance scales the optimality threshold on the gradient (relative
	// to its largest initial value) and is the level at which a coefficient
	// counts as zero
	nnlsTolerance = 1e-10

	// svdRankTolerance discards singular values below this fraction of the largest
	svdRankTolerance = 1e-12
)

// design builds the m×n matrix whose columns are the reference patterns
func design(patterns [][]float64) *mat.Dense {
	m, n := len(patterns[0]), len(patterns)
	a := mat.NewDense(m, n, nil)
	for j, p := range patterns {
		a.SetCol(j, p)
	}
	return a
}

// leastSquares solves min ||Ax - b|| for the listed columns of a.
// QR is used first; a rank-deficient sub-problem falls back to the
// minimum-norm SVD solution.
func leastSquares(a *mat.Dense, b *mat.VecDense, cols []int) ([]float64, error) {
	m, _ := a.Dims()
	sub := mat.NewDense(m, len(cols), nil)
	for k, j := range cols {
		sub.SetCol(k, mat.Col(nil, j, a))
	}

	var z mat.VecDense
	var qr mat.QR
	qr.Factorize(sub)
	err := qr.SolveVecTo(&z, false, b)
	if err == nil {
		return z.RawVector().Data, nil
	}

	var cond mat.Condition
	if !errors.As(err, &cond) {
		return nil, err
	}

	var svd mat.SVD
	if ok := svd.Factorize(sub, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: singular value decomposition failed", ErrSingular)
	}
	rank := svd.Rank(svdRankTolerance)
	if rank == 0 {
		return nil, ErrSingular
	}
	z.Reset()
	svd.SolveVecTo(&z, b, rank)
	return z.RawVector().Data, nil
}

// solveLinear returns the unconstrained least squares coefficients
func solveLinear(patterns [][]float64, obs []float64) ([]float64, error) {
	a := design(patterns)
	cols := make([]int, len(patterns))
	for i := range cols {
		cols[i] = i
	}
	return leastSquares(a, mat.NewVecDense(len(obs), obs), cols)
}

// nnls solves min ||Ax - b|| subject to x >= 0 with the Lawson-Hanson active
// set method.
func nnls(patterns [][]float64, obs []float64) ([]float64, error) {
	a := design(patterns)
	b := mat.NewVecDense(len(obs), obs)
	_, n := a.Dims()

	x := make([]float64, n)
	passive := make([]bool, n)
	w := make([]float64, n)

	gradient := func() {
		var r, g mat.VecDense
		r.MulVec(a, mat.NewVecDense(n, x))
		r.SubVec(b, &r)
		g.MulVec(a.T(), &r)
		copy(w, g.RawVector().Data)
	}
	passiveCols := func() []int {
		var cols []int
		for j, p := range passive {
			if p {
				cols = append(cols, j)
			}
		}
		return cols
	}

	maxIter := 3 * n
	if maxIter < 30 {
		maxIter = 30
	}

	gradient()
	tol := nnlsTolerance * math.Max(1, floats.Max(w))
	for iter := 0; ; iter++ {
		if iter >= maxIter {
			return x, fmt.Errorf("%w after %d iterations", ErrNotConverged, iter)
		}

		// Pick the active variable with the steepest descent direction
		j := -1
		for k := 0; k < n; k++ {
			if !passive[k] && w[k] > tol && (j < 0 || w[k] > w[j]) {
				j = k
			}
		}
		if j < 0 {
			return x, nil
		}
		passive[j] = true

		parked := false
		for {
			cols := passiveCols()
			z, err := leastSquares(a, b, cols)
			if err != nil {
				return nil, err
			}

			feasible := true
			for k, c := range cols {
				if z[k] <= 0 {
					feasible = false
					// A new column that cannot enter positively is parked
					// until the gradient is next refreshed.
					if c == j && x[c] == 0 {
						passive[c] = false
						w[c] = 0
						parked = true
						break
					}
				}
			}
			if parked {
				break
			}
			if feasible {
				for k := range x {
					x[k] = 0
				}
				for k, c := range cols {
					x[c] = z[k]
				}
				break
			}

			// Step back towards the previous feasible point
			alpha := 1.0
			for k, c := range cols {
				if z[k] <= 0 {
					if step := x[c] / (x[c] - z[k]); step < alpha {
						alpha = step
					}
				}
			}
			for k, c := range cols {
				x[c] += alpha * (z[k] - x[c])
				if x[c] <= nnlsTolerance {
					x[c] = 0
					passive[c] = false
				}
			}
			if len(passiveCols()) == 0 {
				break
			}
		}

		if parked {
			continue
		}
		gradient()
	}
}
