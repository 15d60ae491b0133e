package fps

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateRIR(t *testing.T) {
	lib := testLibrary(t)

	var mixtures []RIRMixture
	for _, q := range []float64{20, 50, 80} {
		sample := mixture(t, fmt.Sprintf("qua%.0f", q), map[string]float64{"QUA": q, "COR": 100 - q}, nil)
		mixtures = append(mixtures, RIRMixture{Pattern: sample, PhaseConc: q, StandardConc: 100 - q})
	}

	est, err := NewFitter(nil).EstimateRIR(context.Background(), lib, "QUA", "COR", mixtures)
	require.NoError(t, err)

	assert.InDelta(t, 3.4, est.RIR, 0.01)
	assert.InDelta(t, 1, est.RSquared, 1e-6)
	require.Len(t, est.Points, 3)
	for _, p := range est.Points {
		assert.InDelta(t, 3.4, p.RIR, 0.01, p.Sample)
	}
}

func TestEstimateRIRErrors(t *testing.T) {
	lib := testLibrary(t)
	fitter := NewFitter(nil)
	sample := mixture(t, "mix", map[string]float64{"QUA": 50, "COR": 50}, nil)

	_, err := fitter.EstimateRIR(context.Background(), lib, "QUA", "COR", nil)
	assert.ErrorIs(t, err, ErrCalibrationData)

	_, err = fitter.EstimateRIR(context.Background(), lib, "XXX", "COR", []RIRMixture{{Pattern: sample, PhaseConc: 50, StandardConc: 50}})
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, err = fitter.EstimateRIR(context.Background(), lib, "QUA", "COR", []RIRMixture{{Pattern: sample, PhaseConc: 0, StandardConc: 50}})
	assert.ErrorIs(t, err, ErrInvalidConcentration)
}
