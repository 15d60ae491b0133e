package managers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/controllers/combined"
	"github.com/chrissnell/xrdquant/internal/controllers/grpc"
	"github.com/chrissnell/xrdquant/internal/controllers/restserver"
	"github.com/chrissnell/xrdquant/internal/controllers/watcher"
	"github.com/chrissnell/xrdquant/pkg/config"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, cfgs []config.ControllerData, svc *controllers.Services, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		services:    svc,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	// Create controllers based on configuration
	for _, con := range cfgs {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating %s controller: %w", con.Type, err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	services    *controllers.Services
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %w", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		rc := config.RESTServerData{}
		if cc.RESTServer != nil {
			rc = *cc.RESTServer
		}
		return restserver.NewController(cm.ctx, cm.wg, rc, cm.services, cm.logger.Named("rest"))
	case "combined":
		rc := config.RESTServerData{}
		if cc.RESTServer != nil {
			rc = *cc.RESTServer
		}
		return combined.NewController(cm.ctx, cm.wg, rc, cm.services, cm.logger.Named("combined"))
	case "grpc":
		gc := config.GRPCData{}
		if cc.GRPC != nil {
			gc = *cc.GRPC
		}
		return grpc.NewController(cm.ctx, cm.wg, gc, cm.services, cm.logger.Named("grpc"))
	case "watcher":
		if cc.Watcher == nil {
			return nil, fmt.Errorf("watcher controller needs a watcher section")
		}
		return watcher.NewController(cm.ctx, cm.wg, *cc.Watcher, cm.services, cm.logger.Named("watcher"))
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
