package fps

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chrissnell/xrdquant/pkg/xrd"
)

const peakWidth = 0.08

// referencePeaks places each synthetic phase's peaks far enough from every
// other phase's that the patterns are close to orthogonal.
var referencePeaks = []struct {
	id, name string
	rir      float64
	peaks    []float64
}{
	{"COR", "Corundum", 1.0, []float64{25.6, 35.2, 43.4, 57.5}},
	{"QUA", "Quartz", 3.4, []float64{20.9, 26.6, 50.1}},
	{"CAL", "Calcite", 2.0, []float64{29.4, 39.4, 48.5}},
	{"KAO", "Kaolinite", 1.0, []float64{12.4, 24.9, 38.5}},
	{"ILL", "Illite", 0.5, []float64{8.8, 17.8, 45.5}},
	{"ALB", "Albite", 0.9, []float64{22.0, 27.9, 31.5}},
	{"MIC", "Microcline", 0.8, []float64{15.0, 33.5, 41.8}},
	{"DOL", "Dolomite", 2.5, []float64{30.9, 41.1, 51.0}},
	{"HAL", "Halite", 4.5, []float64{36.5, 53.2, 56.3}},
	{"ILL2", "Illite", 0.6, []float64{10.0, 19.6, 46.5}},
}

// eightPhases is the synthetic mixture used across the quantification tests;
// 5 wt% halite is added to it but left out of the reference selection.
var eightPhases = map[string]float64{
	"COR": 20, "QUA": 20, "CAL": 10, "KAO": 15,
	"ILL": 10, "ALB": 10, "MIC": 5, "DOL": 5,
}

var eightRefs = []string{"COR", "QUA", "CAL", "KAO", "ILL", "ALB", "MIC", "DOL"}

func testAxis(step float64) []float64 {
	return xrd.Seq(5, 60, step)
}

func gaussian(axis, centres []float64, offset float64) []float64 {
	out := make([]float64, len(axis))
	for _, c := range centres {
		for i, x := range axis {
			d := (x - c - offset) / peakWidth
			out[i] += 100 * math.Exp(-0.5*d*d)
		}
	}
	return out
}

func testLibrary(t *testing.T) *xrd.Library {
	t.Helper()
	axis := testAxis(0.02)
	var patterns [][]float64
	var phases []xrd.Phase
	for _, r := range referencePeaks {
		patterns = append(patterns, gaussian(axis, r.peaks, 0))
		phases = append(phases, xrd.Phase{ID: r.id, Name: r.name, RIR: r.rir})
	}
	lib, err := xrd.NewLibrary("synthetic", axis, patterns, phases)
	require.NoError(t, err)
	return lib
}

// mixture builds counts Σ w_i·RIR_i·pattern_i, optionally with per-phase
// peak offsets.
func mixture(t *testing.T, name string, weights map[string]float64, offsets map[string]float64) *xrd.Diffractogram {
	t.Helper()
	axis := testAxis(0.02)
	counts := make([]float64, len(axis))
	for _, r := range referencePeaks {
		w, ok := weights[r.id]
		if !ok || w == 0 {
			continue
		}
		p := gaussian(axis, r.peaks, offsets[r.id])
		for i := range counts {
			counts[i] += w * r.rir * p[i]
		}
	}
	return &xrd.Diffractogram{Name: name, TwoTheta: axis, Counts: counts}
}

func withHalite(weights map[string]float64) map[string]float64 {
	out := map[string]float64{"HAL": 5}
	for k, v := range weights {
		out[k] = v
	}
	return out
}

func concentrations(res *Result) map[string]float64 {
	out := make(map[string]float64, len(res.Phases))
	for _, p := range res.Phases {
		out[p.ID] = p.Concentration
	}
	return out
}
