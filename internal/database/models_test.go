package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
)

func TestFitRowRoundTrip(t *testing.T) {
	res := &fps.Result{
		Sample:   "soil-1",
		Library:  "rockjock",
		TwoTheta: []float64{10, 10.02, 10.04},
		Measured: []float64{5, 7, 6},
		Fitted:   []float64{4.5, 7.5, 6},
		Phases: []fps.PhaseResult{
			{ID: "QUA", Name: "Quartz", RIR: 3.4, Coefficient: 12, Concentration: 60},
			{ID: "ILL", Name: "Illite", RIR: 0.5, Coefficient: 1, Shift: 0.02, Concentration: 40},
		},
		Removed: []fps.Removal{{ID: "MIC", Name: "Microcline", Reason: fps.ReasonBelowLOD, Concentration: 0.2, LOD: 1.25}},
		Stats:   fps.Stats{Rwp: 0.1, R: 0.05, Delta: 0.03, Correlation: 0.99},
	}
	rec := types.NewFitRecord(types.ModeAutoFit, types.SourceCLI, res)

	row := NewFitRow(rec)
	require.Len(t, row.Phases, 3)
	assert.Equal(t, "MIC", row.Phases[2].PhaseID)
	assert.Equal(t, 2, row.Phases[2].Position)

	back := row.Record()
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, types.ModeAutoFit, back.Mode)
	assert.Equal(t, res.Phases, back.Result.Phases)
	assert.Equal(t, res.Removed, back.Result.Removed)
	assert.Equal(t, []float64{0.5, -0.5, 0}, back.Result.Residuals)
	assert.Equal(t, res.Stats, back.Result.Stats)
	require.Len(t, back.Result.Grouped, 2)
	assert.Equal(t, "Illite", back.Result.Grouped[0].Name)
}
