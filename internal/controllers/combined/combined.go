// Package combined serves the REST API and the gRPC service on a single
// port, routing each connection by its protocol.
package combined

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/soheilhy/cmux"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers"
	grpcctl "github.com/chrissnell/xrdquant/internal/controllers/grpc"
	"github.com/chrissnell/xrdquant/internal/controllers/restserver"
	"github.com/chrissnell/xrdquant/pkg/config"
)

// Controller multiplexes a REST server and a gRPC server over one listener
type Controller struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	addr   string
	rest   *restserver.Controller
	grpc   *grpcctl.Controller
	logger *zap.SugaredLogger
}

// NewController creates the REST and gRPC servers behind one address. TLS is
// not terminated here; use separate rest and grpc controllers for that.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, svc *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if rc.Cert != "" || rc.Key != "" {
		return nil, fmt.Errorf("combined controller does not support TLS")
	}

	rest, err := restserver.NewController(ctx, wg, rc, svc, logger.Named("rest"))
	if err != nil {
		return nil, err
	}
	g, err := grpcctl.NewController(ctx, wg, config.GRPCData{ListenAddr: rc.ListenAddr, Port: rc.Port}, svc, logger.Named("grpc"))
	if err != nil {
		return nil, err
	}

	return &Controller{
		ctx:    ctx,
		wg:     wg,
		addr:   rest.Server.Addr,
		rest:   rest,
		grpc:   g,
		logger: logger,
	}, nil
}

// StartController listens on the configured address and starts serving
func (c *Controller) StartController() error {
	l, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("combined controller could not create listener: %w", err)
	}
	return c.Serve(l)
}

// Serve splits l into gRPC and HTTP connections until the context ends
func (c *Controller) Serve(l net.Listener) error {
	m := cmux.New(l)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	if err := c.grpc.Serve(grpcL); err != nil {
		return err
	}
	if err := c.rest.Serve(httpL); err != nil {
		return err
	}

	c.logger.Infof("serving REST and gRPC on %s", l.Addr())
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Errorf("connection multiplexer stopped: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		l.Close()
	}()

	return nil
}
