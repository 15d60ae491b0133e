package fps

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats holds the goodness-of-fit measures of a fitted pattern
type Stats struct {
	Rwp         float64 `json:"rwp"`
	R           float64 `json:"r"`
	Delta       float64 `json:"delta"`
	Correlation float64 `json:"correlation"`
}

// rwp is the weighted profile residual with weights 1/obs over positive
// observations.
func rwp(obs, calc []float64) float64 {
	var num, den float64
	for i, o := range obs {
		if o <= 0 {
			continue
		}
		d := o - calc[i]
		num += d * d / o
		den += o
	}
	if den == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(num / den)
}

// rFactor is the unweighted profile residual
func rFactor(obs, calc []float64) float64 {
	var num, den float64
	for i, o := range obs {
		d := o - calc[i]
		num += d * d
		den += o * o
	}
	if den == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(num / den)
}

// delta is the summed absolute discrepancy normalised by the summed absolute
// observation.
func delta(obs, calc []float64) float64 {
	den := floats.Norm(obs, 1)
	if den == 0 {
		return math.Inf(1)
	}
	return floats.Distance(obs, calc, 1) / den
}

// correlation is the Pearson coefficient of observed against fitted; constant
// inputs give 0.
func correlation(obs, calc []float64) float64 {
	r := stat.Correlation(obs, calc, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Evaluate computes every fit statistic of calc against obs
func Evaluate(obs, calc []float64) Stats {
	return Stats{
		Rwp:         rwp(obs, calc),
		R:           rFactor(obs, calc),
		Delta:       delta(obs, calc),
		Correlation: correlation(obs, calc),
	}
}

// objective returns the scalar minimised for the chosen measure
func objective(kind Objective) func(obs, calc []float64) float64 {
	switch kind {
	case ObjectiveR:
		return rFactor
	case ObjectiveDelta:
		return delta
	default:
		return rwp
	}
}

// synthesise returns Σ coef[i]·patterns[i]
func synthesise(patterns [][]float64, coef []float64, n int) []float64 {
	out := make([]float64, n)
	for i, p := range patterns {
		if coef[i] != 0 {
			floats.AddScaled(out, coef[i], p)
		}
	}
	return out
}
