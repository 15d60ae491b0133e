package fps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func removal(res *Result, id string) (Removal, bool) {
	for _, r := range res.Removed {
		if r.ID == id {
			return r, true
		}
	}
	return Removal{}, false
}

func TestAutoFitDropsAbsentPhases(t *testing.T) {
	lib := testLibrary(t)
	weights := withHalite(eightPhases)
	delete(weights, "MIC")
	sample := mixture(t, "no-microcline", weights, nil)

	res, err := NewFitter(nil).AutoFit(context.Background(), sample, lib, AutoOptions{
		Options: Options{Standard: "COR", StandardConc: 20},
		LOD:     0.5,
	})
	require.NoError(t, err)

	for _, id := range []string{"MIC", "ILL2"} {
		_, kept := res.Phase(id)
		assert.False(t, kept, id)
		_, dropped := removal(res, id)
		assert.True(t, dropped, id)
	}
	got := concentrations(res)
	assert.InDelta(t, 5, got["HAL"], 0.1)
	assert.InDelta(t, 15, got["KAO"], 0.1)
}

func TestAutoFitForcedPhaseRetained(t *testing.T) {
	lib := testLibrary(t)
	weights := withHalite(eightPhases)
	delete(weights, "MIC")
	sample := mixture(t, "no-microcline", weights, nil)

	res, err := NewFitter(nil).AutoFit(context.Background(), sample, lib, AutoOptions{
		Options: Options{Refs: eightRefs, Standard: "COR", StandardConc: 20},
		LOD:     0.5,
		Force:   []string{"MIC", "ILL2"},
	})
	require.NoError(t, err)

	mic, ok := res.Phase("MIC")
	require.True(t, ok)
	assert.InDelta(t, 0, mic.Concentration, 0.1)
	// ILL2 was not in Refs but forcing it adds it to the selection
	_, ok = res.Phase("ILL2")
	assert.True(t, ok)
	_, dropped := removal(res, "MIC")
	assert.False(t, dropped)
}

func TestAutoFitDetectionLimit(t *testing.T) {
	lib := testLibrary(t)
	weights := map[string]float64{"COR": 20, "QUA": 50, "CAL": 29.7, "MIC": 0.3}
	sample := mixture(t, "trace", weights, nil)

	res, err := NewFitter(nil).AutoFit(context.Background(), sample, lib, AutoOptions{
		Options: Options{Refs: []string{"COR", "QUA", "CAL", "MIC"}, Standard: "COR", StandardConc: 20},
		LOD:     1,
	})
	require.NoError(t, err)

	r, ok := removal(res, "MIC")
	require.True(t, ok)
	assert.Equal(t, ReasonBelowLOD, r.Reason)
	// lod = 1 · RIR_cor / RIR_mic
	assert.InDelta(t, 1.0/0.8, r.LOD, 1e-9)
	assert.InDelta(t, 0.3, r.Concentration, 0.05)
	_, kept := res.Phase("QUA")
	assert.True(t, kept)
}

func TestAutoFitAmorphousLimit(t *testing.T) {
	lib := testLibrary(t)
	sample := mixture(t, "mix", eightPhases, nil)
	fitter := NewFitter(nil)

	// Illite at 10 wt% would fail a crystalline limit of 15·1/0.5
	// but amorphous phases are exempt from it.
	res, err := fitter.AutoFit(context.Background(), sample, lib, AutoOptions{
		Options:   Options{Refs: []string{"COR", "QUA", "ILL"}, Standard: "COR", StandardConc: 20},
		LOD:       8,
		Amorphous: []string{"ILL"},
	})
	require.NoError(t, err)
	_, kept := res.Phase("ILL")
	assert.True(t, kept)

	res, err = fitter.AutoFit(context.Background(), sample, lib, AutoOptions{
		Options:      Options{Refs: []string{"COR", "QUA", "ILL"}, Standard: "COR", StandardConc: 20},
		Amorphous:    []string{"ILL"},
		AmorphousLOD: 12,
	})
	require.NoError(t, err)
	r, ok := removal(res, "ILL")
	require.True(t, ok)
	assert.Equal(t, ReasonBelowAmorphousLOD, r.Reason)
}

func TestAutoFitKeepsStandard(t *testing.T) {
	lib := testLibrary(t)
	sample := mixture(t, "mix", map[string]float64{"COR": 0.5, "QUA": 60, "CAL": 39.5}, nil)

	res, err := NewFitter(nil).AutoFit(context.Background(), sample, lib, AutoOptions{
		Options: Options{Refs: []string{"COR", "QUA", "CAL"}, Standard: "COR"},
		LOD:     5,
	})
	require.NoError(t, err)
	_, kept := res.Phase("COR")
	assert.True(t, kept)
}

func TestAutoFitOptionErrors(t *testing.T) {
	lib := testLibrary(t)
	sample := mixture(t, "mix", eightPhases, nil)
	fitter := NewFitter(nil)

	_, err := fitter.AutoFit(context.Background(), sample, lib, AutoOptions{LOD: 1})
	assert.ErrorIs(t, err, ErrStandardRequired)

	_, err = fitter.AutoFit(context.Background(), sample, lib, AutoOptions{Force: []string{"XXX"}})
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, err = fitter.AutoFit(context.Background(), sample, lib, AutoOptions{Amorphous: []string{"XXX"}})
	assert.ErrorIs(t, err, ErrUnknownReference)
}
