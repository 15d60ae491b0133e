package xrd

import (
	"fmt"
	"math"
)

// Common anode wavelengths in Å (Kα1).
const (
	WavelengthCu = 1.54056
	WavelengthCo = 1.78897
	WavelengthFe = 1.93604
	WavelengthMo = 0.70930
)

// ConvertWavelength re-expresses the 2θ axis for radiation of wavelength to
// using Bragg's law. Angles with no solution at the new wavelength are dropped.
func (d *Diffractogram) ConvertWavelength(to float64) (*Diffractogram, error) {
	if d.Wavelength <= 0 || to <= 0 {
		return nil, fmt.Errorf("%s: wavelength conversion needs known source and target wavelengths", d.label())
	}
	if d.Wavelength == to {
		return d.Clone(), nil
	}

	ratio := to / d.Wavelength
	out := &Diffractogram{Name: d.Name, Wavelength: to}
	for i, tth := range d.TwoTheta {
		s := ratio * math.Sin(tth*math.Pi/360)
		if s <= 0 || s >= 1 {
			continue
		}
		out.TwoTheta = append(out.TwoTheta, 360*math.Asin(s)/math.Pi)
		out.Counts = append(out.Counts, d.Counts[i])
	}

	if len(out.TwoTheta) < 2 {
		return nil, fmt.Errorf("%s: converting %.5f Å to %.5f Å: %w", d.label(), d.Wavelength, to, ErrTooFewPoints)
	}
	return out, nil
}

// DSpacing returns the lattice spacing in Å for a 2θ angle at the given wavelength.
func DSpacing(twoTheta, wavelength float64) float64 {
	return wavelength / (2 * math.Sin(twoTheta*math.Pi/360))
}
