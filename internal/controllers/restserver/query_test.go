package restserver

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/xrdquant/internal/fps"
)

func TestQueryOptions(t *testing.T) {
	base := fps.AutoOptions{Options: fps.Options{Harmonise: true, Solver: fps.SolverNNLS}, LOD: 0.5}

	q, err := url.ParseQuery("refs=COR,QUA&refs=CAL&std=COR&std_conc=20&align=0.1&shift=0.05" +
		"&closed=1&omit_std=true&harmonise=false&solver=bfgs&force=QUA&amorphous=GLS&amorphous_lod=2&max_iter=50")
	require.NoError(t, err)

	opts, err := queryOptions(q, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"COR", "QUA", "CAL"}, opts.Refs)
	assert.Equal(t, "COR", opts.Standard)
	assert.Equal(t, 20.0, opts.StandardConc)
	assert.Equal(t, 0.1, opts.Align)
	assert.Equal(t, 0.05, opts.Shift)
	assert.True(t, opts.Closed)
	assert.True(t, opts.OmitStandard)
	assert.False(t, opts.Harmonise)
	assert.Equal(t, fps.SolverBFGS, opts.Solver)
	assert.Equal(t, []string{"QUA"}, opts.Force)
	assert.Equal(t, []string{"GLS"}, opts.Amorphous)
	assert.Equal(t, 2.0, opts.AmorphousLOD)
	assert.Equal(t, 0.5, opts.LOD)
	assert.Equal(t, 50, opts.MaxIter)

	opts, err = queryOptions(url.Values{"name": {"scan"}}, base)
	require.NoError(t, err)
	assert.Equal(t, base, opts)

	for _, raw := range []string{"std_conc=x", "closed=maybe", "max_iter=1.5", "lod="} {
		q, err := url.ParseQuery(raw)
		require.NoError(t, err)
		_, err = queryOptions(q, base)
		assert.Error(t, err, raw)
	}
}
