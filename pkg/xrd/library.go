package xrd

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrDuplicatePhase indicates two library entries sharing an identifier.
	ErrDuplicatePhase = errors.New("xrd: duplicate reference identifier")

	// ErrUnknownPhase indicates an identifier with no entry in the library.
	ErrUnknownPhase = errors.New("xrd: unknown reference identifier")

	// ErrInvalidRIR indicates a reference intensity ratio that is not positive.
	ErrInvalidRIR = errors.New("xrd: reference intensity ratio must be positive")

	// ErrPatternCount indicates metadata and pattern columns that do not pair up.
	ErrPatternCount = errors.New("xrd: metadata rows and pattern columns differ")
)

// Phase is the metadata row of one reference pattern
type Phase struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	RIR  float64 `json:"rir"`
}

// Library is a set of reference patterns sharing a common 2θ axis. Phases[i]
// describes Patterns[i].
type Library struct {
	Name       string      `json:"name"`
	TwoTheta   []float64   `json:"two_theta"`
	Patterns   [][]float64 `json:"patterns"`
	Phases     []Phase     `json:"phases"`
	Wavelength float64     `json:"wavelength,omitempty"`

	index map[string]int
}

// NewLibrary validates and indexes a reference library
func NewLibrary(name string, twoTheta []float64, patterns [][]float64, phases []Phase) (*Library, error) {
	lib := &Library{
		Name:     name,
		TwoTheta: twoTheta,
		Patterns: patterns,
		Phases:   phases,
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Validate checks the library invariants and rebuilds the identifier index
func (l *Library) Validate() error {
	if err := validateAxis(l.TwoTheta); err != nil {
		return fmt.Errorf("library %s: %w", l.Name, err)
	}
	if len(l.Patterns) != len(l.Phases) {
		return fmt.Errorf("library %s: %w (%d phases, %d patterns)", l.Name, ErrPatternCount, len(l.Phases), len(l.Patterns))
	}

	index := make(map[string]int, len(l.Phases))
	for i, p := range l.Phases {
		if p.ID == "" {
			return fmt.Errorf("library %s: phase %d has an empty identifier", l.Name, i)
		}
		if _, exists := index[p.ID]; exists {
			return fmt.Errorf("library %s: %w: %s", l.Name, ErrDuplicatePhase, p.ID)
		}
		if !(p.RIR > 0) || math.IsInf(p.RIR, 0) {
			return fmt.Errorf("library %s: %s: %w (got %g)", l.Name, p.ID, ErrInvalidRIR, p.RIR)
		}
		if len(l.Patterns[i]) != len(l.TwoTheta) {
			return fmt.Errorf("library %s: %s: %w", l.Name, p.ID, ErrLengthMismatch)
		}
		for j, v := range l.Patterns[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("library %s: %s: %w at index %d", l.Name, p.ID, ErrNonFinite, j)
			}
		}
		index[p.ID] = i
	}
	l.index = index
	return nil
}

func (l *Library) reindex() {
	l.index = make(map[string]int, len(l.Phases))
	for i, p := range l.Phases {
		l.index[p.ID] = i
	}
}

func (l *Library) lookup(id string) (int, bool) {
	if l.index == nil {
		l.reindex()
	}
	i, ok := l.index[id]
	return i, ok
}

// Len returns the number of reference patterns
func (l *Library) Len() int {
	return len(l.Phases)
}

// Step returns the mean angular step of the library axis
func (l *Library) Step() float64 {
	return axisStep(l.TwoTheta)
}

// IDs returns the reference identifiers in library order
func (l *Library) IDs() []string {
	ids := make([]string, len(l.Phases))
	for i, p := range l.Phases {
		ids[i] = p.ID
	}
	return ids
}

// Has reports whether the library holds a reference with this identifier
func (l *Library) Has(id string) bool {
	_, ok := l.lookup(id)
	return ok
}

// Phase returns the metadata for a reference
func (l *Library) Phase(id string) (Phase, error) {
	i, ok := l.lookup(id)
	if !ok {
		return Phase{}, fmt.Errorf("library %s: %w: %s", l.Name, ErrUnknownPhase, id)
	}
	return l.Phases[i], nil
}

// Pattern returns a reference pattern as a Diffractogram
func (l *Library) Pattern(id string) (*Diffractogram, error) {
	i, ok := l.lookup(id)
	if !ok {
		return nil, fmt.Errorf("library %s: %w: %s", l.Name, ErrUnknownPhase, id)
	}
	return &Diffractogram{
		Name:       id,
		TwoTheta:   append([]float64(nil), l.TwoTheta...),
		Counts:     append([]float64(nil), l.Patterns[i]...),
		Wavelength: l.Wavelength,
	}, nil
}

// Subset returns a library holding the listed references (keep=true) or every
// reference except the listed ones (keep=false). With keep=true the order of
// ids is preserved.
func (l *Library) Subset(ids []string, keep bool) (*Library, error) {
	for _, id := range ids {
		if !l.Has(id) {
			return nil, fmt.Errorf("library %s: %w: %s", l.Name, ErrUnknownPhase, id)
		}
	}

	var selected []int
	if keep {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			i, _ := l.lookup(id)
			selected = append(selected, i)
		}
	} else {
		drop := make(map[string]bool, len(ids))
		for _, id := range ids {
			drop[id] = true
		}
		for i, p := range l.Phases {
			if !drop[p.ID] {
				selected = append(selected, i)
			}
		}
	}

	out := &Library{
		Name:       l.Name,
		TwoTheta:   append([]float64(nil), l.TwoTheta...),
		Wavelength: l.Wavelength,
	}
	for _, i := range selected {
		out.Phases = append(out.Phases, l.Phases[i])
		out.Patterns = append(out.Patterns, append([]float64(nil), l.Patterns[i]...))
	}
	out.reindex()
	return out, nil
}

// Interpolate returns the library with every pattern resampled onto axis
func (l *Library) Interpolate(axis []float64) (*Library, error) {
	if err := validateAxis(l.TwoTheta); err != nil {
		return nil, fmt.Errorf("library %s: %w", l.Name, err)
	}
	if err := validateAxis(axis); err != nil {
		return nil, fmt.Errorf("target axis: %w", err)
	}

	out := &Library{
		Name:       l.Name,
		TwoTheta:   append([]float64(nil), axis...),
		Patterns:   make([][]float64, len(l.Patterns)),
		Phases:     append([]Phase(nil), l.Phases...),
		Wavelength: l.Wavelength,
	}
	for i, p := range l.Patterns {
		out.Patterns[i] = resample(l.TwoTheta, p, axis, 0)
	}
	out.reindex()
	return out, nil
}

// Merge combines two libraries. When the axes differ both are interpolated
// onto their common overlapping axis at the coarser resolution.
func (l *Library) Merge(other *Library) (*Library, error) {
	if l.Wavelength > 0 && other.Wavelength > 0 && l.Wavelength != other.Wavelength {
		return nil, fmt.Errorf("merging %s and %s: %w", l.Name, other.Name, ErrWavelengthMismatch)
	}
	for _, p := range other.Phases {
		if l.Has(p.ID) {
			return nil, fmt.Errorf("merging %s and %s: %w: %s", l.Name, other.Name, ErrDuplicatePhase, p.ID)
		}
	}

	a, b := l, other
	if !AxesEqual(l.TwoTheta, other.TwoTheta) {
		axis, err := CommonAxis(l.TwoTheta, other.TwoTheta)
		if err != nil {
			return nil, fmt.Errorf("merging %s and %s: %w", l.Name, other.Name, err)
		}
		if a, err = l.Interpolate(axis); err != nil {
			return nil, err
		}
		if b, err = other.Interpolate(axis); err != nil {
			return nil, err
		}
	}

	wavelength := l.Wavelength
	if wavelength == 0 {
		wavelength = other.Wavelength
	}

	out := &Library{
		Name:       l.Name,
		TwoTheta:   append([]float64(nil), a.TwoTheta...),
		Wavelength: wavelength,
	}
	for i := range a.Phases {
		out.Phases = append(out.Phases, a.Phases[i])
		out.Patterns = append(out.Patterns, append([]float64(nil), a.Patterns[i]...))
	}
	for i := range b.Phases {
		out.Phases = append(out.Phases, b.Phases[i])
		out.Patterns = append(out.Patterns, append([]float64(nil), b.Patterns[i]...))
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Groups returns the distinct phase-group names, sorted
func (l *Library) Groups() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range l.Phases {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}
