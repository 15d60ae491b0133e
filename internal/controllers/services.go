// Package controllers holds the front ends that accept fit requests (REST,
// gRPC and the inbox watcher) and the services they share.
package controllers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// LibrarySource resolves reference libraries by name
type LibrarySource interface {
	Get(name string) (*xrd.Library, error)
	Names() []string
}

// FitRequest asks for a full pattern summation fit. A nil Options applies the
// configured defaults.
type FitRequest struct {
	Sample  *xrd.Diffractogram `json:"sample"`
	Options *fps.Options       `json:"options,omitempty"`
}

// AutoFitRequest asks for an automated fit. A nil Options applies the
// configured defaults.
type AutoFitRequest struct {
	Sample  *xrd.Diffractogram `json:"sample"`
	Options *fps.AutoOptions   `json:"options,omitempty"`
}

// Services is what every controller needs to run and record fits
type Services struct {
	Fitter    *fps.Fitter
	Libraries LibrarySource
	Defaults  fps.AutoOptions

	// Store receives completed fits; nil discards them
	Store chan<- types.FitRecord

	// Reader serves stored fits; nil when no readable backend is configured
	Reader storage.ResultReader

	Logger *zap.SugaredLogger
}

// Fit runs a fit against the named library and submits the record for storage
func (s *Services) Fit(ctx context.Context, library string, req FitRequest, source string) (types.FitRecord, error) {
	lib, err := s.Libraries.Get(library)
	if err != nil {
		return types.FitRecord{}, err
	}
	if req.Sample == nil {
		return types.FitRecord{}, fmt.Errorf("%w: sample is required", fps.ErrInvalidOption)
	}

	opts := s.Defaults.Options
	if req.Options != nil {
		opts = *req.Options
	}

	start := time.Now()
	res, err := s.Fitter.Fit(ctx, req.Sample, lib, opts)
	if err != nil {
		return types.FitRecord{}, err
	}
	rec := types.NewFitRecord(types.ModeFit, source, res)
	s.Logger.Infof("%s: fitted %s against %s in %v (Rwp %.4f)", source, res.Sample, library, time.Since(start).Round(time.Millisecond), res.Rwp)
	return rec, s.submit(ctx, rec)
}

// AutoFit runs an automated fit against the named library and submits the
// record for storage
func (s *Services) AutoFit(ctx context.Context, library string, req AutoFitRequest, source string) (types.FitRecord, error) {
	lib, err := s.Libraries.Get(library)
	if err != nil {
		return types.FitRecord{}, err
	}
	if req.Sample == nil {
		return types.FitRecord{}, fmt.Errorf("%w: sample is required", fps.ErrInvalidOption)
	}

	opts := s.Defaults
	if req.Options != nil {
		opts = *req.Options
	}

	start := time.Now()
	res, err := s.Fitter.AutoFit(ctx, req.Sample, lib, opts)
	if err != nil {
		return types.FitRecord{}, err
	}
	rec := types.NewFitRecord(types.ModeAutoFit, source, res)
	s.Logger.Infof("%s: auto-fitted %s against %s in %v (%d phases, %d removed, Rwp %.4f)",
		source, res.Sample, library, time.Since(start).Round(time.Millisecond), len(res.Phases), len(res.Removed), res.Rwp)
	return rec, s.submit(ctx, rec)
}

func (s *Services) submit(ctx context.Context, rec types.FitRecord) error {
	if s.Store == nil {
		return nil
	}
	select {
	case s.Store <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
