// Package storage defines the fit storage backends and their shared plumbing.
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/chrissnell/xrdquant/internal/types"
)

// ErrNotFound is returned when a stored fit does not exist
var ErrNotFound = errors.New("storage: fit not found")

// StorageEngineInterface is an interface that provides a few standardized
// methods for various storage backends
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.FitRecord
}

// ResultReader is implemented by backends that can serve stored fits back
type ResultReader interface {
	GetFit(ctx context.Context, id uuid.UUID) (types.FitRecord, error)
	ListFits(ctx context.Context, filter types.FitFilter) ([]types.FitSummary, error)
}
