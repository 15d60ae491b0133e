package managers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers/controllertest"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

func TestLibraryManagerLoadsFiles(t *testing.T) {
	dir := t.TempDir()
	lib := controllertest.Library(t)

	patterns, err := os.Create(filepath.Join(dir, "patterns.csv"))
	require.NoError(t, err)
	phases, err := os.Create(filepath.Join(dir, "phases.csv"))
	require.NoError(t, err)
	require.NoError(t, xrd.WriteLibrary(patterns, phases, lib))
	require.NoError(t, patterns.Close())
	require.NoError(t, phases.Close())

	m, err := NewLibraryManager([]config.LibraryData{{
		Name:       "disk",
		Patterns:   patterns.Name(),
		Phases:     phases.Name(),
		Wavelength: xrd.WavelengthCu,
	}}, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.Equal(t, []string{"disk"}, m.Names())
	got, err := m.Get("disk")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, xrd.WavelengthCu, got.Wavelength)

	_, err = m.Get("other")
	assert.ErrorIs(t, err, types.ErrUnknownLibrary)
	assert.Error(t, m.Add(got))
}

func TestLibraryManagerMissingFile(t *testing.T) {
	_, err := NewLibraryManager([]config.LibraryData{{Name: "x", Patterns: "/nonexistent", Phases: "/nonexistent"}}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestFitDefaults(t *testing.T) {
	opts := FitDefaults(&config.FittingData{
		Standard:     "COR",
		StandardConc: 20,
		Solver:       "bfgs",
		Objective:    "r",
		LOD:          0.5,
		Force:        []string{"QUA"},
	})
	assert.Equal(t, "COR", opts.Standard)
	assert.Equal(t, fps.SolverBFGS, opts.Solver)
	assert.Equal(t, fps.ObjectiveR, opts.Objective)
	assert.Equal(t, 0.5, opts.LOD)
	assert.Equal(t, []string{"QUA"}, opts.Force)
	assert.Equal(t, fps.AutoOptions{}, FitDefaults(nil))
}

type recordingEngine struct {
	mu   sync.Mutex
	seen []string
}

func (e *recordingEngine) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.FitRecord {
	ch := make(chan types.FitRecord, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case r := <-ch:
				e.mu.Lock()
				e.seen = append(e.seen, r.Sample)
				e.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (e *recordingEngine) samples() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seen...)
}

func TestStorageManagerFansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	m := &StorageManager{FitDistributor: make(chan types.FitRecord, 4), logger: zap.NewNop().Sugar()}
	a, b := &recordingEngine{}, &recordingEngine{}
	m.AddEngine(ctx, &wg, "a", a)
	m.AddEngine(ctx, &wg, "b", b)
	assert.Nil(t, m.Reader())

	wg.Add(1)
	go m.startFitDistributor(ctx, &wg)

	m.GetFitDistributor() <- types.FitRecord{Sample: "one"}
	m.GetFitDistributor() <- types.FitRecord{Sample: "two"}

	for _, e := range []*recordingEngine{a, b} {
		assert.Eventually(t, func() bool { return len(e.samples()) == 2 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"one", "two"}, e.samples())
	}
}

func TestStorageManagerWithSQLite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	m, err := NewStorageManager(ctx, &wg, &config.StorageData{
		SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "fits.db")},
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, m.Reader())

	res := &fps.Result{Sample: "stored", Library: "lib", Phases: []fps.PhaseResult{{ID: "Q", Name: "Quartz", Concentration: 100}}}
	rec := types.NewFitRecord(types.ModeFit, types.SourceCLI, res)
	m.GetFitDistributor() <- rec

	assert.Eventually(t, func() bool {
		_, err := m.Reader().GetFit(context.Background(), rec.ID)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	wg.Wait()
	assert.NoError(t, m.Close())
}

func TestControllerManagerRejectsUnknownType(t *testing.T) {
	svc := controllertest.Services(t, nil)
	_, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, []config.ControllerData{{Type: "ftp"}}, svc, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = NewControllerManager(context.Background(), &sync.WaitGroup{}, []config.ControllerData{{Type: "watcher"}}, svc, zap.NewNop().Sugar())
	assert.Error(t, err)

	cm, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, []config.ControllerData{{Type: "rest"}, {Type: "grpc"}, {Type: "combined"}}, svc, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.NotNil(t, cm)
}
