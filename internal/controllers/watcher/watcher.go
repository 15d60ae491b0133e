// Package watcher quantifies diffraction scans as they land in an inbox
// directory.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/config"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

const (
	defaultPattern  = "*.xy"
	defaultDebounce = 2 * time.Second
)

// Controller watches an inbox and auto-fits every matching file written to
// it once the file has been quiet for the debounce interval
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	inbox     string
	library   string
	pattern   string
	debounce  time.Duration
	processed string
	services  *controllers.Services
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

// NewController validates the watcher configuration
func NewController(ctx context.Context, wg *sync.WaitGroup, wc config.WatcherData, svc *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if wc.Inbox == "" {
		return nil, fmt.Errorf("watcher.inbox must be set")
	}
	if wc.Library == "" {
		return nil, fmt.Errorf("watcher.library must be set")
	}
	if svc == nil || svc.Fitter == nil || svc.Libraries == nil {
		return nil, fmt.Errorf("watcher needs a fitter and a library source")
	}
	if _, err := svc.Libraries.Get(wc.Library); err != nil {
		return nil, err
	}

	c := &Controller{
		ctx:       ctx,
		wg:        wg,
		inbox:     wc.Inbox,
		library:   wc.Library,
		pattern:   wc.Pattern,
		debounce:  defaultDebounce,
		processed: wc.Processed,
		services:  svc,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
		ready:     make(chan string),
	}
	if c.pattern == "" {
		c.pattern = defaultPattern
	}
	if _, err := filepath.Match(c.pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid watcher.pattern %q: %w", c.pattern, err)
	}
	if wc.Debounce != "" {
		d, err := time.ParseDuration(wc.Debounce)
		if err != nil {
			return nil, fmt.Errorf("invalid watcher.debounce %q: %w", wc.Debounce, err)
		}
		c.debounce = d
	}
	if c.processed != "" {
		if err := os.MkdirAll(c.processed, 0o755); err != nil {
			return nil, fmt.Errorf("creating processed directory: %w", err)
		}
	}
	return c, nil
}

// StartController begins watching the inbox. When a processed directory is
// configured, files already waiting in the inbox are fitted too.
func (c *Controller) StartController() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	if err := w.Add(c.inbox); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", c.inbox, err)
	}
	c.logger.Infof("watching %s for %s (library %s)", c.inbox, c.pattern, c.library)

	if c.processed != "" {
		existing, err := filepath.Glob(filepath.Join(c.inbox, c.pattern))
		if err != nil {
			w.Close()
			return err
		}
		for _, path := range existing {
			c.schedule(path)
		}
	}

	c.wg.Add(1)
	go c.run(w)
	return nil
}

func (c *Controller) run(w *fsnotify.Watcher) {
	defer c.wg.Done()
	defer w.Close()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if match, _ := filepath.Match(c.pattern, filepath.Base(ev.Name)); match {
				c.schedule(ev.Name)
			}
		case path := <-c.ready:
			c.process(path)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Errorf("inbox watcher error: %v", err)
		case <-c.ctx.Done():
			c.mu.Lock()
			for path, t := range c.pending {
				t.Stop()
				delete(c.pending, path)
			}
			c.mu.Unlock()
			c.logger.Info("cancellation request received. Stopping inbox watcher")
			return
		}
	}
}

// schedule (re)starts the debounce timer for path. Files are fitted one at a
// time on the watcher goroutine.
func (c *Controller) schedule(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.pending[path]; ok {
		t.Reset(c.debounce)
		return
	}
	c.pending[path] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.pending, path)
		c.mu.Unlock()
		select {
		case c.ready <- path:
		case <-c.ctx.Done():
		}
	})
}

func (c *Controller) process(path string) {
	sample, err := xrd.ReadXYFile(path)
	if err != nil {
		c.logger.Errorf("reading %s: %v", path, err)
		return
	}

	if _, err := c.services.AutoFit(c.ctx, c.library, controllers.AutoFitRequest{Sample: sample}, types.SourceWatcher); err != nil {
		c.logger.Errorf("fitting %s: %v", path, err)
		return
	}

	if c.processed != "" {
		dest := filepath.Join(c.processed, filepath.Base(path))
		if err := os.Rename(path, dest); err != nil {
			c.logger.Errorf("moving %s to %s: %v", path, dest, err)
		}
	}
}
