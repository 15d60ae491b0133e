package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/types"
)

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) HealthData
}

// StartHealthMonitor periodically records a backend's health in the global
// health manager until ctx is cancelled
func StartHealthMonitor(ctx context.Context, storageType string, checker HealthChecker, interval time.Duration, logger *zap.SugaredLogger) {
	go func() {
		updateHealth := func() {
			health := checker.CheckHealth(ctx)
			GlobalHealthManager.UpdateHealth(storageType, health)
			logger.Debugf("updated %s health status: %s", storageType, health.Status)
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", storageType)
				return
			}
		}
	}()
}

// ProcessFits provides a standard pattern for processing records from a
// channel. Processor errors are logged and the loop continues.
func ProcessFits(ctx context.Context, wg *sync.WaitGroup, fitChan <-chan types.FitRecord, processor func(context.Context, types.FitRecord) error, name string, logger *zap.SugaredLogger) {
	defer wg.Done()

	for {
		select {
		case r := <-fitChan:
			if err := processor(ctx, r); err != nil {
				logger.Errorf("%s fit processor error: %v", name, err)
			}
		case <-ctx.Done():
			logger.Infof("cancellation request received. Cancelling %s fit processor", name)
			return
		}
	}
}

// CreateHealthData creates a basic health data structure
func CreateHealthData(status, message string, err error) HealthData {
	health := HealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}
