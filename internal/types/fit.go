// Package types holds the records passed between the fitting front ends and
// the storage engines.
package types

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/xrdquant/internal/fps"
)

// ErrUnknownLibrary is returned for a library name that is not loaded
var ErrUnknownLibrary = errors.New("unknown library")

// FitMode names the procedure that produced a fit
type FitMode string

const (
	ModeFit     FitMode = "fps"
	ModeAutoFit FitMode = "afps"
)

// Fit sources, recorded with every stored fit
const (
	SourceCLI     = "cli"
	SourceREST    = "rest"
	SourceGRPC    = "grpc"
	SourceWatcher = "watcher"
)

// FitRecord is one completed fit as handed to the storage engines
type FitRecord struct {
	ID        uuid.UUID   `json:"id"`
	Sample    string      `json:"sample"`
	Library   string      `json:"library"`
	Mode      FitMode     `json:"mode"`
	Source    string      `json:"source"`
	CreatedAt time.Time   `json:"created_at"`
	Result    *fps.Result `json:"result"`
}

// NewFitRecord wraps a fit result in a record with a fresh identifier
func NewFitRecord(mode FitMode, source string, res *fps.Result) FitRecord {
	return FitRecord{
		ID:        uuid.New(),
		Sample:    res.Sample,
		Library:   res.Library,
		Mode:      mode,
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Result:    res,
	}
}

// FitSummary is the listing view of a stored fit
type FitSummary struct {
	ID        uuid.UUID `json:"id"`
	Sample    string    `json:"sample"`
	Library   string    `json:"library"`
	Mode      FitMode   `json:"mode"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Rwp       float64   `json:"rwp"`
	Total     float64   `json:"total"`
}

// Summary returns the listing view of the record
func (r FitRecord) Summary() FitSummary {
	s := FitSummary{
		ID:        r.ID,
		Sample:    r.Sample,
		Library:   r.Library,
		Mode:      r.Mode,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
	}
	if r.Result != nil {
		s.Rwp = r.Result.Rwp
		s.Total = r.Result.Total()
	}
	return s
}

// FitFilter narrows a listing of stored fits. Zero fields do not filter.
type FitFilter struct {
	Sample  string
	Library string
	Since   time.Time
	Limit   int
}
