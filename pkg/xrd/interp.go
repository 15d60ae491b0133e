package xrd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// resample evaluates the piecewise-linear interpolant of (xs, ys) at each
// point of axis, offset by -shift. Outside [xs[0], xs[n-1]] the edge value is
// held constant. xs must already be validated.
func resample(xs, ys, axis []float64, shift float64) []float64 {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		// Fit only fails on invalid input, which validateAxis rules out
		panic(fmt.Sprintf("xrd: interpolation fit: %v", err))
	}

	out := make([]float64, len(axis))
	for i, x := range axis {
		out[i] = pl.Predict(x - shift)
	}
	return out
}

// Interpolate returns the pattern resampled onto axis
func (d *Diffractogram) Interpolate(axis []float64) (*Diffractogram, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := validateAxis(axis); err != nil {
		return nil, fmt.Errorf("target axis: %w", err)
	}
	return &Diffractogram{
		Name:       d.Name,
		TwoTheta:   append([]float64(nil), axis...),
		Counts:     resample(d.TwoTheta, d.Counts, axis, 0),
		Wavelength: d.Wavelength,
	}, nil
}

// Shift moves the pattern by offset degrees 2θ and resamples it onto its own
// axis, so the returned counts at 2θ equal the original counts at 2θ-offset.
func (d *Diffractogram) Shift(offset float64) *Diffractogram {
	out := d.Clone()
	if offset == 0 {
		return out
	}
	out.Counts = resample(d.TwoTheta, d.Counts, d.TwoTheta, offset)
	return out
}

// Resample evaluates the pattern (xs, ys), moved by offset degrees, at every
// point of axis. xs must be strictly increasing with at least two points.
func Resample(xs, ys, axis []float64, offset float64) []float64 {
	return resample(xs, ys, axis, offset)
}

// Seq returns lo, lo+step, ... up to and including hi (within rounding).
func Seq(lo, hi, step float64) []float64 {
	if step <= 0 || hi < lo {
		return nil
	}
	n := int(math.Floor((hi-lo)/step+1e-9)) + 1
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = lo + float64(i)*step
	}
	return axis
}
