// Package controllertest builds synthetic libraries and services for
// controller tests.
package controllertest

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// LibraryName is the name of the library built by Library
const LibraryName = "synthetic"

// Libraries is a map-backed controllers.LibrarySource
type Libraries map[string]*xrd.Library

// Get implements controllers.LibrarySource
func (l Libraries) Get(name string) (*xrd.Library, error) {
	lib, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownLibrary, name)
	}
	return lib, nil
}

// Names implements controllers.LibrarySource
func (l Libraries) Names() []string {
	names := make([]string, 0, len(l))
	for n := range l {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func peaks(axis []float64, centres ...float64) []float64 {
	out := make([]float64, len(axis))
	for _, c := range centres {
		for i, x := range axis {
			d := (x - c) / 0.12
			out[i] += 100 * math.Exp(-0.5*d*d)
		}
	}
	return out
}

// Library returns a three-phase library: corundum (COR, RIR 1), quartz
// (QUA, RIR 3.4) and calcite (CAL, RIR 2).
func Library(t testing.TB) *xrd.Library {
	t.Helper()
	axis := xrd.Seq(10, 50, 0.02)
	lib, err := xrd.NewLibrary(LibraryName, axis,
		[][]float64{
			peaks(axis, 25.6, 35.1, 43.4),
			peaks(axis, 20.9, 26.6, 36.5),
			peaks(axis, 23.1, 29.4, 39.4),
		},
		[]xrd.Phase{
			{ID: "COR", Name: "Corundum", RIR: 1},
			{ID: "QUA", Name: "Quartz", RIR: 3.4},
			{ID: "CAL", Name: "Calcite", RIR: 2},
		})
	require.NoError(t, err)
	return lib
}

// Mixture synthesises a sample from weight percents keyed by reference ID
func Mixture(t testing.TB, lib *xrd.Library, name string, weights map[string]float64) *xrd.Diffractogram {
	t.Helper()
	counts := make([]float64, len(lib.TwoTheta))
	for id, w := range weights {
		ph, err := lib.Phase(id)
		require.NoError(t, err)
		pat, err := lib.Pattern(id)
		require.NoError(t, err)
		for i := range counts {
			counts[i] += w * ph.RIR * pat.Counts[i]
		}
	}
	return &xrd.Diffractogram{
		Name:     name,
		TwoTheta: append([]float64(nil), lib.TwoTheta...),
		Counts:   counts,
	}
}

// Services returns services fitting against Library and sending records to store
func Services(t testing.TB, store chan<- types.FitRecord) *controllers.Services {
	t.Helper()
	return &controllers.Services{
		Fitter:    fps.NewFitter(nil),
		Libraries: Libraries{LibraryName: Library(t)},
		Store:     store,
		Logger:    zap.NewNop().Sugar(),
	}
}
