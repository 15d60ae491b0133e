// Package restserver serves fits and reference libraries over HTTP.
package restserver

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	services   *controllers.Services
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, svc *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if svc == nil || svc.Fitter == nil || svc.Libraries == nil {
		return nil, fmt.Errorf("REST server needs a fitter and a library source")
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		services:   svc,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = handlers.CompressHandler(ctrl.Router())
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	if c.restConfig.Cert != "" && c.restConfig.Key != "" {
		c.logger.Infof("Starting REST server controller on %s (TLS)...", c.Server.Addr)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}()
		go c.shutdownOnDone()
		return nil
	}

	l, err := net.Listen("tcp", c.Server.Addr)
	if err != nil {
		return fmt.Errorf("REST server could not create listener: %w", err)
	}
	return c.Serve(l)
}

// Serve serves plain HTTP on l until the controller's context ends
func (c *Controller) Serve(l net.Listener) error {
	c.logger.Infof("REST server listening on %s", l.Addr())
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(l); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()
	go c.shutdownOnDone()

	return nil
}

func (c *Controller) shutdownOnDone() {
	<-c.ctx.Done()
	c.logger.Info("Shutting down the REST server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.Server.Shutdown(ctx)
}

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware)
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/libraries", c.handlers.GetLibraries).Methods(http.MethodGet)
	router.HandleFunc("/libraries/{name}", c.handlers.GetLibrary).Methods(http.MethodGet)
	router.HandleFunc("/fits", c.handlers.GetFits).Methods(http.MethodGet)
	router.HandleFunc("/fits/{id}", c.handlers.GetFit).Methods(http.MethodGet)

	fits := router.NewRoute().Subrouter()
	fits.Use(c.authMiddleware)
	fits.HandleFunc("/libraries/{name}/fit", c.handlers.PostFit).Methods(http.MethodPost)
	fits.HandleFunc("/libraries/{name}/afps", c.handlers.PostAutoFit).Methods(http.MethodPost)

	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the bearer token when one is configured
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Bearer " + c.restConfig.AuthToken
		if c.restConfig.AuthToken == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(want)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		c.logger.Debugf("auth failed for %s %s", r.Method, r.URL.Path)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	})
}
