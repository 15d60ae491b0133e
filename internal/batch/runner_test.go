package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func peaks(axis []float64, centres ...float64) []float64 {
	out := make([]float64, len(axis))
	for _, c := range centres {
		for i, x := range axis {
			d := (x - c) / 0.1
			out[i] += 100 * math.Exp(-0.5*d*d)
		}
	}
	return out
}

func fixtures(t *testing.T, n int) (*xrd.Library, []*xrd.Diffractogram) {
	t.Helper()
	axis := xrd.Seq(10, 40, 0.02)
	a := peaks(axis, 15, 27)
	b := peaks(axis, 21, 33)
	lib, err := xrd.NewLibrary("pair", axis, [][]float64{a, b}, []xrd.Phase{
		{ID: "A", Name: "Alpha", RIR: 1},
		{ID: "B", Name: "Beta", RIR: 2},
	})
	require.NoError(t, err)

	samples := make([]*xrd.Diffractogram, n)
	for k := range samples {
		wa := float64(10 + k)
		counts := make([]float64, len(axis))
		for i := range counts {
			counts[i] = wa*a[i] + 2*(100-wa)*b[i]
		}
		samples[k] = &xrd.Diffractogram{Name: fmt.Sprintf("s%02d", k), TwoTheta: axis, Counts: counts}
	}
	return lib, samples
}

func TestRunnerPreservesOrder(t *testing.T) {
	lib, samples := fixtures(t, 12)
	runner := NewRunner(fps.NewFitter(nil), 4, nil)

	outcomes, err := runner.Fit(context.Background(), samples, lib, fps.Options{})
	require.NoError(t, err)
	require.Len(t, outcomes, len(samples))

	for k, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, samples[k].Name, o.Sample)
		a, _ := o.Result.Phase("A")
		assert.InDelta(t, float64(10+k), a.Concentration, 1e-6)
	}
	assert.Empty(t, Failed(outcomes))
}

func TestRunnerCapturesPerSampleErrors(t *testing.T) {
	lib, samples := fixtures(t, 3)
	samples[1] = &xrd.Diffractogram{Name: "broken", TwoTheta: []float64{1}, Counts: []float64{1}}
	runner := NewRunner(fps.NewFitter(nil), 2, nil)

	outcomes, err := runner.AutoFit(context.Background(), samples, lib, fps.AutoOptions{})
	require.NoError(t, err)

	failed := Failed(outcomes)
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Sample)
	assert.ErrorIs(t, failed[0].Err, xrd.ErrTooFewPoints)
	assert.NotNil(t, outcomes[0].Result)
	assert.NotNil(t, outcomes[2].Result)
}

func TestRunnerCancelled(t *testing.T) {
	lib, samples := fixtures(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(fps.NewFitter(nil), 2, nil).Fit(ctx, samples, lib, fps.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteSummary(t *testing.T) {
	lib, samples := fixtures(t, 2)
	outcomes, err := NewRunner(fps.NewFitter(nil), 1, nil).Fit(context.Background(), samples, lib, fps.Options{})
	require.NoError(t, err)
	outcomes = append(outcomes, Outcome{Sample: "missing", Err: fmt.Errorf("no such file")})

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, outcomes, false))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"sample", "rwp", "r", "delta", "correlation", "total", "A", "B", "error"}, records[0])
	assert.Equal(t, "s00", records[1][0])
	assert.Equal(t, "10.0000", records[1][6])
	assert.Equal(t, "100.0000", records[1][5])
	assert.Equal(t, "no such file", records[3][8])
	assert.Empty(t, records[3][6])

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, outcomes, true))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Alpha", records[0][6])
}
