// Package app wires the configured libraries, storage engines and controllers
// into a running server.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/managers"
	"github.com/chrissnell/xrdquant/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Load the reference libraries
	libraries, err := managers.NewLibraryManager(a.cfg.Libraries, a.logger.Named("libraries"))
	if err != nil {
		return err
	}
	if len(libraries.Names()) == 0 {
		return fmt.Errorf("no reference libraries configured")
	}

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, &a.cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer storageManager.Close()

	svc := &controllers.Services{
		Fitter:    fps.NewFitter(a.logger.Named("fps")),
		Libraries: libraries,
		Defaults:  managers.FitDefaults(&a.cfg.Fitting),
		Store:     storageManager.GetFitDistributor(),
		Reader:    storageManager.Reader(),
		Logger:    a.logger,
	}

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.cfg.Controllers, svc, a.logger)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return err
	}

	a.logger.Infow("application started", "libraries", libraries.Names(), "controllers", len(a.cfg.Controllers))

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

// LoadConfig reads configuration from cfgFile. An empty backend picks SQLite
// for .db files and YAML otherwise.
func LoadConfig(cfgFile, backend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	if backend == "" {
		backend = "yaml"
		if strings.EqualFold(filepath.Ext(filename), ".db") {
			backend = "sqlite"
		}
	}

	var provider config.ConfigProvider
	var err error

	switch backend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", filename, err)
	}

	return cfgData, nil
}
