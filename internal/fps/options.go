package fps

import (
	"fmt"
	"strings"
)

// Solver selects how scaling coefficients are computed
type Solver string

const (
	// SolverNNLS uses Lawson-Hanson non-negative least squares
	SolverNNLS Solver = "nnls"

	// SolverNelderMead minimises the objective with the Nelder-Mead simplex
	SolverNelderMead Solver = "nelder-mead"

	// SolverBFGS minimises the objective with BFGS and finite-difference gradients
	SolverBFGS Solver = "bfgs"

	// SolverLBFGS minimises the objective with limited-memory BFGS
	SolverLBFGS Solver = "lbfgs"
)

// Objective selects the fit-quality measure minimised by optimiser solvers
// and by the peak-shift search
type Objective string

const (
	ObjectiveRwp   Objective = "rwp"
	ObjectiveR     Objective = "r"
	ObjectiveDelta Objective = "delta"
)

// Options controls a full pattern summation fit
type Options struct {
	// Refs lists the reference identifiers to fit. Empty means every library phase.
	Refs []string `json:"refs,omitempty" yaml:"refs,omitempty"`

	// Standard is the internal standard reference identifier
	Standard string `json:"std,omitempty" yaml:"std,omitempty"`

	// StandardConc is the known weight percent of the internal standard; 0 when not supplied
	StandardConc float64 `json:"std_conc,omitempty" yaml:"std_conc,omitempty"`

	// Align is the maximum whole-sample 2θ shift applied against the standard; 0 disables alignment
	Align float64 `json:"align,omitempty" yaml:"align,omitempty"`

	// Shift is the per-reference peak-shift tolerance; 0 disables the search
	Shift float64 `json:"shift,omitempty" yaml:"shift,omitempty"`

	// Harmonise interpolates sample and library onto a common axis when they differ
	Harmonise bool `json:"harmonise,omitempty" yaml:"harmonise,omitempty"`

	// Closed forces the reported concentrations to sum to 100
	Closed bool `json:"closed,omitempty" yaml:"closed,omitempty"`

	// OmitStandard removes the internal standard from the reported phases and
	// expresses the rest relative to the original, un-spiked sample
	OmitStandard bool `json:"omit_std,omitempty" yaml:"omit_std,omitempty"`

	// Signed allows negative coefficients (loading interpretation)
	Signed bool `json:"signed,omitempty" yaml:"signed,omitempty"`

	Solver    Solver    `json:"solver,omitempty" yaml:"solver,omitempty"`
	Objective Objective `json:"objective,omitempty" yaml:"objective,omitempty"`

	// MaxIter caps optimiser function evaluations; 0 selects a default
	MaxIter int `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// AutoOptions controls an automated fit with detection-limit based phase selection
type AutoOptions struct {
	Options `yaml:",inline"`

	// LOD is the detection limit of the internal standard in weight percent
	LOD float64 `json:"lod,omitempty" yaml:"lod,omitempty"`

	// Force lists references never removed automatically
	Force []string `json:"force,omitempty" yaml:"force,omitempty"`

	// Amorphous lists references treated as amorphous
	Amorphous []string `json:"amorphous,omitempty" yaml:"amorphous,omitempty"`

	// AmorphousLOD is the concentration below which amorphous phases are removed
	AmorphousLOD float64 `json:"amorphous_lod,omitempty" yaml:"amorphous_lod,omitempty"`
}

// normalize fills defaults and validates option values
func (o *Options) normalize() error {
	o.Solver = Solver(strings.ToLower(string(o.Solver)))
	switch o.Solver {
	case "":
		o.Solver = SolverNNLS
	case SolverNNLS, SolverNelderMead, SolverBFGS, SolverLBFGS:
	default:
		return fmt.Errorf("%w: unknown solver %q", ErrInvalidOption, o.Solver)
	}

	o.Objective = Objective(strings.ToLower(string(o.Objective)))
	switch o.Objective {
	case "":
		o.Objective = ObjectiveRwp
	case ObjectiveRwp, ObjectiveR, ObjectiveDelta:
	default:
		return fmt.Errorf("%w: unknown objective %q", ErrInvalidOption, o.Objective)
	}

	if o.Align < 0 || o.Shift < 0 {
		return fmt.Errorf("%w: align and shift must not be negative", ErrInvalidOption)
	}
	if o.StandardConc != 0 {
		if o.Standard == "" {
			return fmt.Errorf("%w: std_conc given without std", ErrStandardRequired)
		}
		if o.StandardConc <= 0 || o.StandardConc >= 100 {
			return fmt.Errorf("%w (std_conc %g)", ErrInvalidConcentration, o.StandardConc)
		}
	}
	if o.Align > 0 && o.Standard == "" {
		return fmt.Errorf("%w: alignment is performed against the standard", ErrStandardRequired)
	}
	if o.OmitStandard && o.Standard == "" {
		return fmt.Errorf("%w: omit_std needs std", ErrStandardRequired)
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 2000
	}
	return nil
}

func (o *AutoOptions) normalize() error {
	if err := o.Options.normalize(); err != nil {
		return err
	}
	if o.LOD < 0 || o.AmorphousLOD < 0 {
		return fmt.Errorf("%w: detection limits must not be negative", ErrInvalidOption)
	}
	if o.LOD > 0 && o.Standard == "" {
		return fmt.Errorf("%w: detection limits are propagated from the standard", ErrStandardRequired)
	}
	return nil
}
