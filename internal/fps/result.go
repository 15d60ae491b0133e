package fps

import (
	"sort"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// Removal reasons reported for references dropped during a fit
const (
	ReasonNegative          = "negative"
	ReasonNonPositive       = "non-positive"
	ReasonBelowLOD          = "below-lod"
	ReasonBelowAmorphousLOD = "below-amorphous-lod"
)

// PhaseResult is the fitted outcome for one reference pattern
type PhaseResult struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	RIR           float64 `json:"rir"`
	Coefficient   float64 `json:"coefficient"`
	Shift         float64 `json:"shift"`
	Concentration float64 `json:"concentration"`
}

// GroupResult is the summed concentration of references sharing a phase name
type GroupResult struct {
	Name          string  `json:"name"`
	Concentration float64 `json:"concentration"`
}

// Removal records a reference dropped from the fit
type Removal struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Reason        string  `json:"reason"`
	Concentration float64 `json:"concentration"`
	LOD           float64 `json:"lod,omitempty"`
}

// Result is the outcome of a full pattern summation fit
type Result struct {
	Sample    string    `json:"sample"`
	Library   string    `json:"library"`
	TwoTheta  []float64 `json:"two_theta"`
	Measured  []float64 `json:"measured"`
	Fitted    []float64 `json:"fitted"`
	Residuals []float64 `json:"residuals"`

	Phases  []PhaseResult `json:"phases"`
	Grouped []GroupResult `json:"grouped"`
	Removed []Removal     `json:"removed,omitempty"`

	Stats

	Alignment    float64 `json:"alignment"`
	Standard     string  `json:"std,omitempty"`
	StandardConc float64 `json:"std_conc,omitempty"`
	Closed       bool    `json:"closed"`
}

// Total returns the sum of the reported phase concentrations
func (r *Result) Total() float64 {
	var total float64
	for _, p := range r.Phases {
		total += p.Concentration
	}
	return total
}

// Phase returns the result for one reference
func (r *Result) Phase(id string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.ID == id {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Close returns a copy of r whose concentrations sum to 100 with their ratios
// preserved. A result with a non-positive total is copied unchanged.
func Close(r *Result) *Result {
	out := *r
	out.Phases = append([]PhaseResult(nil), r.Phases...)
	out.Removed = append([]Removal(nil), r.Removed...)

	total := r.Total()
	if total > 0 {
		for i := range out.Phases {
			out.Phases[i].Concentration *= 100 / total
		}
		out.Closed = true
	}
	out.Grouped = GroupPhases(out.Phases)
	return &out
}

// GroupPhases sums concentrations by phase name, ordered by name
func GroupPhases(phases []PhaseResult) []GroupResult {
	sums := make(map[string]float64)
	for _, p := range phases {
		sums[p.Name] += p.Concentration
	}
	out := make([]GroupResult, 0, len(sums))
	for name, c := range sums {
		out = append(out, GroupResult{Name: name, Concentration: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// newRemoval builds a removal record for a reference
func newRemoval(ph xrd.Phase, reason string, conc, lod float64) Removal {
	return Removal{ID: ph.ID, Name: ph.Name, Reason: reason, Concentration: conc, LOD: lod}
}
