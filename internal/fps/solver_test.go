package fps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancelAfter reports cancellation from its limit-th Err call onwards
type cancelAfter struct {
	context.Context
	calls, limit int
}

func (c *cancelAfter) Err() error {
	c.calls++
	if c.calls >= c.limit {
		return context.Canceled
	}
	return nil
}

func TestOptimiseStopsWhenCancelled(t *testing.T) {
	lib := testLibrary(t)
	sub, err := lib.Subset(eightRefs, true)
	require.NoError(t, err)
	sample := mixture(t, "mix", eightPhases, nil)

	start := make([]float64, len(sub.Patterns))
	for i := range start {
		start[i] = 1
	}
	opts := Options{Solver: SolverNelderMead, Objective: ObjectiveRwp, MaxIter: 1_000_000}

	ctx := &cancelAfter{Context: context.Background(), limit: 6}
	_, err = optimise(ctx, sub.Patterns, sample.Counts, start, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, ctx.calls, ctx.limit+1)
}

func TestOptimiseImprovesStart(t *testing.T) {
	lib := testLibrary(t)
	sub, err := lib.Subset([]string{"QUA", "CAL"}, true)
	require.NoError(t, err)
	sample := mixture(t, "pair", map[string]float64{"QUA": 60, "CAL": 40}, nil)

	start := []float64{100, 100}
	opts := Options{Solver: SolverNelderMead, Objective: ObjectiveR, MaxIter: 5000}
	coef, err := optimise(context.Background(), sub.Patterns, sample.Counts, start, opts)
	require.NoError(t, err)

	score := objective(ObjectiveR)
	n := len(sample.Counts)
	assert.Less(t, score(sample.Counts, synthesise(sub.Patterns, coef, n)), score(sample.Counts, synthesise(sub.Patterns, start, n)))
}
