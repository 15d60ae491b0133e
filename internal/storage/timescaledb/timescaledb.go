// Package timescaledb stores fits in PostgreSQL/TimescaleDB through gorm.
package timescaledb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chrissnell/xrdquant/internal/database"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/types"
)

// Storage holds the configuration for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// New sets up a new TimescaleDB storage backend and migrates its tables
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Storage, error) {
	conn, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, conn, logger)
}

// NewWithDB wraps an existing gorm connection
func NewWithDB(ctx context.Context, db *gorm.DB, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger.Info("creating fit tables...")
	if err := database.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return &Storage{TimescaleDBConn: db, logger: logger}, nil
}

// StartStorageEngine creates a goroutine loop to receive fits and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.FitRecord {
	t.logger.Info("starting TimescaleDB storage engine...")
	fitChan := make(chan types.FitRecord, 10)
	wg.Add(1)
	go storage.ProcessFits(ctx, wg, fitChan, t.StoreFit, "TimescaleDB", t.logger)
	storage.StartHealthMonitor(ctx, "timescaledb", t, time.Minute, t.logger)
	return fitChan
}

// StoreFit stores a fit and its phases in one transaction
func (t *Storage) StoreFit(ctx context.Context, rec types.FitRecord) error {
	if rec.Result == nil {
		return fmt.Errorf("fit %s has no result", rec.ID)
	}
	row := database.NewFitRow(rec)
	if err := t.TimescaleDBConn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("could not store fit %s: %w", rec.ID, err)
	}
	return nil
}

// GetFit loads a stored fit
func (t *Storage) GetFit(ctx context.Context, id uuid.UUID) (types.FitRecord, error) {
	var row database.FitRow
	err := t.TimescaleDBConn.WithContext(ctx).
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.FitRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return types.FitRecord{}, err
	}
	return row.Record(), nil
}

// ListFits returns summaries of stored fits, newest first
func (t *Storage) ListFits(ctx context.Context, filter types.FitFilter) ([]types.FitSummary, error) {
	q := t.TimescaleDBConn.WithContext(ctx).
		Table("fits").
		Select("fits.id, fits.sample, fits.library, fits.mode, fits.source, fits.created_at, fits.rwp, " +
			"COALESCE((SELECT SUM(p.concentration) FROM fit_phases p WHERE p.fit_id = fits.id AND p.reason = ''), 0) AS total").
		Order("fits.created_at DESC")
	if filter.Sample != "" {
		q = q.Where("fits.sample = ?", filter.Sample)
	}
	if filter.Library != "" {
		q = q.Where("fits.library = ?", filter.Library)
	}
	if !filter.Since.IsZero() {
		q = q.Where("fits.created_at >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []struct {
		ID        uuid.UUID
		Sample    string
		Library   string
		Mode      string
		Source    string
		CreatedAt time.Time
		Rwp       float64
		Total     float64
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]types.FitSummary, len(rows))
	for i, r := range rows {
		out[i] = types.FitSummary{
			ID:        r.ID,
			Sample:    r.Sample,
			Library:   r.Library,
			Mode:      types.FitMode(r.Mode),
			Source:    r.Source,
			CreatedAt: r.CreatedAt,
			Rwp:       r.Rwp,
			Total:     r.Total,
		}
	}
	return out, nil
}

// CheckHealth implements storage.HealthChecker
func (t *Storage) CheckHealth(ctx context.Context) storage.HealthData {
	if t.TimescaleDBConn == nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "TimescaleDB connection is nil", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := database.Ping(ctx, t.TimescaleDBConn); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "TimescaleDB ping failed", err)
	}

	var count int64
	if err := t.TimescaleDBConn.WithContext(ctx).Table("fits").Count(&count).Error; err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "TimescaleDB query failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, fmt.Sprintf("TimescaleDB holds %d fits", count), nil)
}
