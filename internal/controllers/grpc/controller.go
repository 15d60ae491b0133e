// Package grpc serves fits over gRPC.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
)

// Controller represents the gRPC controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	Server     *grpc.Server
	GRPCConfig *config.GRPCData
	health     *health.Server
	services   *controllers.Services
	logger     *zap.SugaredLogger
}

// NewController creates a new gRPC controller instance
func NewController(ctx context.Context, wg *sync.WaitGroup, grpcConfig config.GRPCData, svc *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if svc == nil || svc.Fitter == nil || svc.Libraries == nil {
		return nil, fmt.Errorf("gRPC controller needs a fitter and a library source")
	}
	if grpcConfig.Port == 0 {
		logger.Info("grpc.port not provided; defaulting to 5050")
		grpcConfig.Port = 5050
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		GRPCConfig: &grpcConfig,
		health:     health.NewServer(),
		services:   svc,
		logger:     logger,
	}

	opts := []grpc.ServerOption{grpc.UnaryInterceptor(ctrl.logCalls)}
	// Create gRPC server with optional TLS
	if grpcConfig.Cert != "" && grpcConfig.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(grpcConfig.Cert, grpcConfig.Key)
		if err != nil {
			return nil, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	ctrl.Server = grpc.NewServer(opts...)

	RegisterQuantifierServer(ctrl.Server, ctrl)
	healthpb.RegisterHealthServer(ctrl.Server, ctrl.health)
	ctrl.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return ctrl, nil
}

// StartController starts the gRPC controller
func (c *Controller) StartController() error {
	listenAddr := fmt.Sprintf("%s:%d", c.GRPCConfig.ListenAddr, c.GRPCConfig.Port)
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("gRPC controller could not create listener: %v", err)
	}
	return c.Serve(l)
}

// Serve serves on l until the controller's context ends
func (c *Controller) Serve(l net.Listener) error {
	c.logger.Infof("gRPC controller listening on %s", l.Addr())
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(l); err != nil {
			c.logger.Errorf("gRPC controller serve error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.StopController()
	}()

	return nil
}

// StopController stops the gRPC controller
func (c *Controller) StopController() {
	c.logger.Info("Stopping gRPC controller...")
	c.health.Shutdown()
	c.Server.GracefulStop()
}

// Fit implements QuantifierServer
func (c *Controller) Fit(ctx context.Context, in *FitRequest) (*FitResponse, error) {
	rec, err := c.services.Fit(ctx, in.Library, controllers.FitRequest{Sample: in.Sample, Options: in.Options}, types.SourceGRPC)
	if err != nil {
		return nil, status.Error(controllers.GRPCCode(err), err.Error())
	}
	return &FitResponse{ID: rec.ID.String(), Result: rec.Result}, nil
}

// AutoFit implements QuantifierServer
func (c *Controller) AutoFit(ctx context.Context, in *AutoFitRequest) (*FitResponse, error) {
	rec, err := c.services.AutoFit(ctx, in.Library, controllers.AutoFitRequest{Sample: in.Sample, Options: in.Options}, types.SourceGRPC)
	if err != nil {
		return nil, status.Error(controllers.GRPCCode(err), err.Error())
	}
	return &FitResponse{ID: rec.ID.String(), Result: rec.Result}, nil
}

func (c *Controller) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		c.logger.Warnf("gRPC %s failed after %v: %v", info.FullMethod, time.Since(start), err)
	} else {
		c.logger.Debugf("gRPC %s completed in %v", info.FullMethod, time.Since(start))
	}
	return resp, err
}
