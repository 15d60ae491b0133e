package restserver

import (
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// LibrarySummary describes a loaded reference library
type LibrarySummary struct {
	Name       string      `json:"name"`
	References int         `json:"references"`
	Points     int         `json:"points"`
	Min        float64     `json:"min_two_theta"`
	Max        float64     `json:"max_two_theta"`
	Step       float64     `json:"step"`
	Wavelength float64     `json:"wavelength,omitempty"`
	Groups     []string    `json:"groups"`
	Phases     []xrd.Phase `json:"phases,omitempty"`
}

// FitResponse is returned for every completed fit
type FitResponse struct {
	ID     string      `json:"id"`
	Result *fps.Result `json:"result"`
}

// HealthResponse reports service and storage health
type HealthResponse struct {
	Status    string                        `json:"status"`
	Libraries int                           `json:"libraries"`
	Storage   map[string]storage.HealthData `json:"storage,omitempty"`
}

func summarize(lib *xrd.Library, withPhases bool) LibrarySummary {
	s := LibrarySummary{
		Name:       lib.Name,
		References: lib.Len(),
		Points:     len(lib.TwoTheta),
		Step:       lib.Step(),
		Wavelength: lib.Wavelength,
		Groups:     lib.Groups(),
	}
	if n := len(lib.TwoTheta); n > 0 {
		s.Min, s.Max = lib.TwoTheta[0], lib.TwoTheta[n-1]
	}
	if withPhases {
		s.Phases = lib.Phases
	}
	return s
}
