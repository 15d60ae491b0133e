package managers

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/storage/sqlite"
	"github.com/chrissnell/xrdquant/internal/storage/timescaledb"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines        []StorageEngine
	FitDistributor chan types.FitRecord
	logger         *zap.SugaredLogger
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing fits to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- types.FitRecord
}

// NewStorageManager creates a StorageManager object, populated with all configured StorageEngines
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c *config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		FitDistributor: make(chan types.FitRecord, 20),
		logger:         logger,
	}

	// Check the configuration for various supported storage backends
	// and enable them if found
	if c != nil && c.SQLite != nil && c.SQLite.Path != "" {
		engine, err := sqlite.New(ctx, c.SQLite.Path, logger)
		if err != nil {
			return s, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		s.AddEngine(ctx, wg, "sqlite", engine)
	}

	if c != nil && c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		engine, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString, logger)
		if err != nil {
			return s, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		s.AddEngine(ctx, wg, "timescaledb", engine)
	}

	// Start our fit distributor to distribute completed fits to storage backends
	wg.Add(1)
	go s.startFitDistributor(ctx, wg)

	return s, nil
}

// GetFitDistributor returns the fit distributor channel
func (s *StorageManager) GetFitDistributor() chan<- types.FitRecord {
	return s.FitDistributor
}

// AddEngine starts engine and registers it under name. Engines must be added
// before the distributor starts.
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, name string, engine storage.StorageEngineInterface) {
	s.Engines = append(s.Engines, StorageEngine{
		Name:   name,
		Engine: engine,
		C:      engine.StartStorageEngine(ctx, wg),
	})
}

// Reader returns the first engine able to serve stored fits, or nil
func (s *StorageManager) Reader() storage.ResultReader {
	for _, e := range s.Engines {
		if r, ok := e.Engine.(storage.ResultReader); ok {
			return r
		}
	}
	return nil
}

// Close closes engines holding open resources
func (s *StorageManager) Close() error {
	var firstErr error
	for _, e := range s.Engines {
		if c, ok := e.Engine.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// startFitDistributor receives fits from the controllers and fans them out to
// the various storage backends
func (s *StorageManager) startFitDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case r := <-s.FitDistributor:
			if len(s.Engines) == 0 {
				s.logger.Debugf("no storage engines configured; fit %s of %s not stored", r.ID, r.Sample)
				continue
			}
			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
