package controllers

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

// ErrBadRequest marks a request body that could not be decoded
var ErrBadRequest = errors.New("malformed request")

var invalidInput = []error{
	ErrBadRequest,
	fps.ErrAxisMismatch,
	fps.ErrUnknownReference,
	fps.ErrNoReferences,
	fps.ErrStandardRequired,
	fps.ErrStandardNotSelected,
	fps.ErrInvalidConcentration,
	fps.ErrInvalidOption,
	xrd.ErrTooFewPoints,
	xrd.ErrLengthMismatch,
	xrd.ErrNonMonotonic,
	xrd.ErrNonFinite,
	xrd.ErrNoOverlap,
	xrd.ErrWavelengthMismatch,
	xrd.ErrUnknownPhase,
}

// Fits that were well formed but could not be solved for this sample
var unprocessable = []error{
	fps.ErrSingular,
	fps.ErrStandardNotDetected,
	fps.ErrNonPositiveTotal,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// HTTPStatus maps a fit or lookup error to an HTTP status code
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownLibrary), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case isAny(err, invalidInput):
		return http.StatusBadRequest
	case isAny(err, unprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps a fit or lookup error to a gRPC status code
func GRPCCode(err error) codes.Code {
	switch {
	case errors.Is(err, types.ErrUnknownLibrary), errors.Is(err, storage.ErrNotFound):
		return codes.NotFound
	case isAny(err, invalidInput):
		return codes.InvalidArgument
	case isAny(err, unprocessable):
		return codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
