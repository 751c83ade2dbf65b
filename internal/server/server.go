// Package server exposes the template store over HTTP.
//
// Templates are served as JSON with content fingerprints as ETags. A websocket
// feed at /ws announces catalog changes so open playground sessions can
// refresh their template picker or reload the template they are viewing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/anchorplay/internal/config"
	"github.com/conneroisu/anchorplay/internal/logging"
	"github.com/conneroisu/anchorplay/internal/registry"
	"github.com/conneroisu/anchorplay/internal/types"
	"github.com/conneroisu/anchorplay/internal/watcher"
)

// TemplateSource loads and lists templates. *loader.Loader implements it.
type TemplateSource interface {
	LoadTemplate(ctx context.Context, id string) (*types.Template, error)
	ListTemplates(ctx context.Context) ([]string, error)
}

// Server serves templates and the change feed.
type Server struct {
	config       *config.Config
	source       TemplateSource
	catalog      *registry.Catalog
	watcher      *watcher.StoreWatcher
	hub          *Hub
	logger       logging.Logger
	httpServer   *http.Server
	serverMutex  sync.RWMutex
	cancel       context.CancelFunc
	workers      sync.WaitGroup
	shutdownOnce sync.Once
}

// UpdateMessage is pushed to websocket clients.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Event     string    `json:"event"`
	Template  string    `json:"template"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a server over source.
func New(cfg *config.Config, source TemplateSource, logger logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if source == nil {
		return nil, fmt.Errorf("template source is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")

	return &Server{
		config:  cfg,
		source:  source,
		catalog: registry.NewCatalog(source, cfg.Cache.ListTTL),
		hub:     newHub(logger),
		logger:  logger,
	}, nil
}

// Catalog returns the listing cache backing GET /templates.
func (s *Server) Catalog() *registry.Catalog {
	return s.catalog
}

// Start runs the background workers and serves HTTP until Shutdown is
// called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.startWorkers(ctx); err != nil {
		return err
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Server.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Serving templates",
		"address", server.Addr,
		"store", s.config.Store.Root)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /templates", s.handleTemplates)
	mux.HandleFunc("GET /templates/{id}", s.handleTemplate)
	mux.HandleFunc("GET /templates/{id}/explanations", s.handleExplanations)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.addMiddleware(mux)
}

// startWorkers primes the catalog and starts the websocket hub, the catalog
// event forwarder and, when enabled, the store watcher.
func (s *Server) startWorkers(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.serverMutex.Lock()
	s.cancel = cancel
	s.serverMutex.Unlock()

	if _, err := s.catalog.Refresh(ctx); err != nil {
		// The store may come up later; List retries on every request.
		s.logger.Warn(ctx, err, "Initial template scan failed")
	} else {
		s.logger.Info(ctx, "Found templates", "count", s.catalog.Count())
	}

	events := s.catalog.Watch()

	s.workers.Add(2)
	go func() {
		defer s.workers.Done()
		s.hub.run(ctx)
	}()
	go func() {
		defer s.workers.Done()
		s.forwardCatalogEvents(ctx, events)
	}()

	if s.config.Cache.Watch {
		if err := s.setupStoreWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "Store watching disabled")
		}
	}

	return nil
}

func (s *Server) setupStoreWatcher(ctx context.Context) error {
	storeWatcher, err := watcher.NewStoreWatcher(s.config.Store.Root, s.config.Cache.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create store watcher: %w", err)
	}

	storeWatcher.AddFilter(watcher.NoHiddenFilter)
	storeWatcher.AddFilter(watcher.NoTempFilter)
	storeWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		return s.handleStoreChange(ctx, events)
	})

	if err := storeWatcher.Start(ctx); err != nil {
		storeWatcher.Stop()
		return err
	}

	s.serverMutex.Lock()
	s.watcher = storeWatcher
	s.serverMutex.Unlock()
	return nil
}

// handleStoreChange rescans the store, which announces added and removed
// templates, and tells clients which existing templates changed on disk.
func (s *Server) handleStoreChange(ctx context.Context, events []watcher.ChangeEvent) error {
	var known []string
	for _, id := range watcher.TemplateIDs(events) {
		if s.catalog.Contains(id) {
			known = append(known, id)
		}
	}

	if _, err := s.catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}

	// Added and removed ids are announced by the catalog itself.
	for _, id := range known {
		if s.catalog.Contains(id) {
			s.broadcastMessage(UpdateMessage{
				Type:      "template",
				Event:     "changed",
				Template:  id,
				Timestamp: time.Now(),
			})
		}
	}

	return nil
}

func (s *Server) forwardCatalogEvents(ctx context.Context, events <-chan registry.CatalogEvent) {
	defer s.catalog.UnWatch(events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.broadcastMessage(UpdateMessage{
				Type:      "catalog",
				Event:     event.Type.String(),
				Template:  event.TemplateID,
				Timestamp: event.Timestamp,
			})
		}
	}
}

// Shutdown stops the workers, closes websocket clients and drains HTTP
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		storeWatcher := s.watcher
		server := s.httpServer
		cancel := s.cancel
		s.serverMutex.RUnlock()

		if storeWatcher != nil {
			storeWatcher.Stop()
		}

		if cancel != nil {
			cancel()
		}
		s.workers.Wait()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
