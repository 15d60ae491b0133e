// Package xrd provides X-ray powder diffraction patterns, reference libraries
// and the axis operations (interpolation, shifting, harmonisation, wavelength
// conversion) that full pattern summation depends on.
package xrd

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTooFewPoints indicates a pattern with fewer than two samples.
	ErrTooFewPoints = errors.New("xrd: pattern needs at least two points")

	// ErrLengthMismatch indicates an angle axis and intensity vector of different lengths.
	ErrLengthMismatch = errors.New("xrd: angle and intensity lengths differ")

	// ErrNonMonotonic indicates an angle axis that is not strictly increasing.
	ErrNonMonotonic = errors.New("xrd: 2theta axis must be strictly increasing")

	// ErrNonFinite indicates a NaN or infinite value.
	ErrNonFinite = errors.New("xrd: non-finite value")

	// ErrNoOverlap indicates two axes that share no angular range.
	ErrNoOverlap = errors.New("xrd: axes do not overlap")

	// ErrWavelengthMismatch indicates patterns recorded with different radiation.
	ErrWavelengthMismatch = errors.New("xrd: wavelengths differ")
)

// Diffractogram is a measured or reference powder pattern: one intensity per 2θ sample.
type Diffractogram struct {
	Name       string    `json:"name"`
	TwoTheta   []float64 `json:"two_theta"`
	Counts     []float64 `json:"counts"`
	Wavelength float64   `json:"wavelength,omitempty"` // Å, 0 when unknown
}

// Validate checks the invariants of the pattern
func (d *Diffractogram) Validate() error {
	if err := validateAxis(d.TwoTheta); err != nil {
		return fmt.Errorf("%s: %w", d.label(), err)
	}
	if len(d.Counts) != len(d.TwoTheta) {
		return fmt.Errorf("%s: %w (%d angles, %d counts)", d.label(), ErrLengthMismatch, len(d.TwoTheta), len(d.Counts))
	}
	for i, c := range d.Counts {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%s: %w at index %d", d.label(), ErrNonFinite, i)
		}
	}
	return nil
}

func (d *Diffractogram) label() string {
	if d.Name == "" {
		return "diffractogram"
	}
	return d.Name
}

// Len returns the number of samples
func (d *Diffractogram) Len() int {
	return len(d.TwoTheta)
}

// Step returns the mean angular step of the pattern
func (d *Diffractogram) Step() float64 {
	return axisStep(d.TwoTheta)
}

// Range returns the first and last 2θ values
func (d *Diffractogram) Range() (float64, float64) {
	if len(d.TwoTheta) == 0 {
		return 0, 0
	}
	return d.TwoTheta[0], d.TwoTheta[len(d.TwoTheta)-1]
}

// Clone returns a deep copy
func (d *Diffractogram) Clone() *Diffractogram {
	return &Diffractogram{
		Name:       d.Name,
		TwoTheta:   append([]float64(nil), d.TwoTheta...),
		Counts:     append([]float64(nil), d.Counts...),
		Wavelength: d.Wavelength,
	}
}

// Trim returns the portion of the pattern with min <= 2θ <= max
func (d *Diffractogram) Trim(min, max float64) (*Diffractogram, error) {
	lo, hi := trimBounds(d.TwoTheta, min, max)
	if hi-lo < 2 {
		return nil, fmt.Errorf("%s: trimming to [%.4f, %.4f]: %w", d.label(), min, max, ErrTooFewPoints)
	}
	return &Diffractogram{
		Name:       d.Name,
		TwoTheta:   append([]float64(nil), d.TwoTheta[lo:hi]...),
		Counts:     append([]float64(nil), d.Counts[lo:hi]...),
		Wavelength: d.Wavelength,
	}, nil
}

func validateAxis(axis []float64) error {
	if len(axis) < 2 {
		return ErrTooFewPoints
	}
	for i, v := range axis {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w in 2theta at index %d", ErrNonFinite, i)
		}
		if i > 0 && v <= axis[i-1] {
			return fmt.Errorf("%w (index %d: %g after %g)", ErrNonMonotonic, i, v, axis[i-1])
		}
	}
	return nil
}

func axisStep(axis []float64) float64 {
	n := len(axis)
	if n < 2 {
		return 0
	}
	return (axis[n-1] - axis[0]) / float64(n-1)
}

// trimBounds returns the half-open index range of axis values inside [min, max]
func trimBounds(axis []float64, min, max float64) (int, int) {
	lo := 0
	for lo < len(axis) && axis[lo] < min {
		lo++
	}
	hi := len(axis)
	for hi > lo && axis[hi-1] > max {
		hi--
	}
	return lo, hi
}
