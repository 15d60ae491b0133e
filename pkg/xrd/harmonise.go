package xrd

import (
	"fmt"
	"math"
)

// axisTolerance is the largest per-point difference at which two axes are
// treated as identical.
const axisTolerance = 1e-9

// AxesEqual reports whether two 2θ axes are identical
func AxesEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > axisTolerance {
			return false
		}
	}
	return true
}

// CommonAxis returns the axis spanning the overlap of a and b at the coarser
// of their two resolutions.
func CommonAxis(a, b []float64) ([]float64, error) {
	if err := validateAxis(a); err != nil {
		return nil, err
	}
	if err := validateAxis(b); err != nil {
		return nil, err
	}

	lo := math.Max(a[0], b[0])
	hi := math.Min(a[len(a)-1], b[len(b)-1])
	if hi <= lo {
		return nil, fmt.Errorf("%w ([%.3f, %.3f] vs [%.3f, %.3f])", ErrNoOverlap, a[0], a[len(a)-1], b[0], b[len(b)-1])
	}

	step := math.Max(axisStep(a), axisStep(b))
	axis := Seq(lo, hi, step)
	if len(axis) < 2 {
		return nil, fmt.Errorf("%w: overlap narrower than one step", ErrNoOverlap)
	}
	return axis, nil
}

// Harmonise puts a sample and a library on the same 2θ axis. Inputs already
// sharing an axis are returned unchanged. Otherwise both are interpolated onto
// CommonAxis. A sample recorded at a different known wavelength is converted
// to the library's wavelength first.
func Harmonise(sample *Diffractogram, lib *Library) (*Diffractogram, *Library, error) {
	if err := sample.Validate(); err != nil {
		return nil, nil, err
	}

	if sample.Wavelength > 0 && lib.Wavelength > 0 && sample.Wavelength != lib.Wavelength {
		converted, err := sample.ConvertWavelength(lib.Wavelength)
		if err != nil {
			return nil, nil, fmt.Errorf("harmonising %s: %w", sample.label(), err)
		}
		sample = converted
	}

	if AxesEqual(sample.TwoTheta, lib.TwoTheta) {
		return sample, lib, nil
	}

	axis, err := CommonAxis(sample.TwoTheta, lib.TwoTheta)
	if err != nil {
		return nil, nil, fmt.Errorf("harmonising %s with library %s: %w", sample.label(), lib.Name, err)
	}

	s, err := sample.Interpolate(axis)
	if err != nil {
		return nil, nil, err
	}
	l, err := lib.Interpolate(axis)
	if err != nil {
		return nil, nil, err
	}
	return s, l, nil
}
