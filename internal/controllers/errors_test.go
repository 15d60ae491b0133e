package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   codes.Code
	}{
		{"unknown library", fmt.Errorf("lib x: %w", types.ErrUnknownLibrary), http.StatusNotFound, codes.NotFound},
		{"wavelength mismatch", fmt.Errorf("s: %w", xrd.ErrWavelengthMismatch), http.StatusBadRequest, codes.InvalidArgument},
		{"axis mismatch", fps.ErrAxisMismatch, http.StatusBadRequest, codes.InvalidArgument},
		{"standard not detected", fps.ErrStandardNotDetected, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"signed total not positive", fmt.Errorf("%w (-0.4)", fps.ErrNonPositiveTotal), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, codes.DeadlineExceeded},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
			assert.Equal(t, tc.code, GRPCCode(tc.err))
		})
	}
}
