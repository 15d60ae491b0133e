package managers

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// LibraryManager holds the reference libraries available to the front ends
type LibraryManager struct {
	mu        sync.RWMutex
	libraries map[string]*xrd.Library
	logger    *zap.SugaredLogger
}

// NewLibraryManager loads every configured library from disk
func NewLibraryManager(libs []config.LibraryData, logger *zap.SugaredLogger) (*LibraryManager, error) {
	m := &LibraryManager{
		libraries: make(map[string]*xrd.Library),
		logger:    logger,
	}
	for _, lc := range libs {
		lib, err := xrd.ReadLibraryFiles(lc.Name, lc.Patterns, lc.Phases)
		if err != nil {
			return nil, fmt.Errorf("loading library %s: %w", lc.Name, err)
		}
		if lc.Wavelength > 0 {
			lib.Wavelength = lc.Wavelength
		}
		if err := m.Add(lib); err != nil {
			return nil, err
		}
		logger.Infof("loaded library %s: %d references over %d points", lib.Name, lib.Len(), len(lib.TwoTheta))
	}
	return m, nil
}

// Add registers a library; names must be unique
func (m *LibraryManager) Add(lib *xrd.Library) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.libraries[lib.Name]; ok {
		return fmt.Errorf("library %s configured twice", lib.Name)
	}
	m.libraries[lib.Name] = lib
	return nil
}

// Get returns the named library
func (m *LibraryManager) Get(name string) (*xrd.Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lib, ok := m.libraries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownLibrary, name)
	}
	return lib, nil
}

// Names returns the loaded library names in order
func (m *LibraryManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.libraries))
	for name := range m.libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FitDefaults converts the configured fit defaults into automated fit options
func FitDefaults(f *config.FittingData) fps.AutoOptions {
	if f == nil {
		return fps.AutoOptions{}
	}
	return fps.AutoOptions{
		Options: fps.Options{
			Standard:     f.Standard,
			StandardConc: f.StandardConc,
			Align:        f.Align,
			Shift:        f.Shift,
			Harmonise:    f.Harmonise,
			Closed:       f.Closed,
			OmitStandard: f.OmitStandard,
			Solver:       fps.Solver(f.Solver),
			Objective:    fps.Objective(f.Objective),
		},
		LOD:          f.LOD,
		Force:        f.Force,
		Amorphous:    f.Amorphous,
		AmorphousLOD: f.AmorphousLOD,
	}
}
