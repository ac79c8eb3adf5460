package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/opticore/opticore/internal/assets"
	"github.com/opticore/opticore/internal/config"
	"github.com/opticore/opticore/internal/dependency"
	"github.com/opticore/opticore/internal/fields"
	"github.com/opticore/opticore/internal/metrics"
	"github.com/opticore/opticore/internal/middleware"
	"github.com/opticore/opticore/internal/nonce"
	"github.com/opticore/opticore/internal/optimizer"
	"github.com/opticore/opticore/internal/render"
	"github.com/opticore/opticore/internal/settings"
	"github.com/opticore/opticore/internal/site"
	"github.com/opticore/opticore/internal/storage"
)

// Path prefixes served by the site listener
const (
	CachePrefix  = "/content/cache/"
	StaticPrefix = "/static/"
)

// Server hosts the settings console and the optimized site
type Server struct {
	config         *config.Config
	version        string
	logger         *logrus.Logger
	siteServer     *http.Server
	consoleServer  *http.Server
	store          settings.Store
	cache          storage.Backend
	catalog        *fields.Catalog
	renderer       *render.Renderer
	site           *site.Renderer
	nonces         *nonce.Manager
	fetcher        optimizer.Fetcher
	metricsManager metrics.Manager
	extensions     []namedExtension
	startTime      time.Time
}

// Option customizes a server before its routes are built
type Option func(*Server)

// WithFetcher replaces the stylesheet fetcher
func WithFetcher(f optimizer.Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// WithLogger replaces the standard logger
func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithExtension registers a catalog extension applied before the
// catalog is built
func WithExtension(name string, ext fields.Extension) Option {
	return func(s *Server) {
		s.extensions = append(s.extensions, namedExtension{name: name, ext: ext})
	}
}

type namedExtension struct {
	name string
	ext  fields.Extension
}

// New creates a new OptiCore server
func New(cfg *config.Config, version string, opts ...Option) (*Server, error) {
	s := &Server{
		config:    cfg,
		version:   version,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = optimizer.NewHTTPFetcher(cfg.Fetch.Timeout)
	}

	// Initialize cache backend
	cache, err := storage.NewBackend(cfg.Cache.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache backend: %w", err)
	}
	s.cache = cache

	// Initialize settings store
	store, err := settings.Open(cfg.Settings.Backend, cfg.DataDir, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	s.store = store

	registry := fields.NewRegistry(fields.DefaultSections(s.stylesheetExample()))
	for _, e := range s.extensions {
		registry.Extend(e.name, e.ext)
	}
	catalog, err := registry.Catalog()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build settings catalog: %w", err)
	}
	s.catalog = catalog
	s.renderer = render.NewRenderer(catalog, dependency.NewNormalizer())

	nonces, err := nonce.NewManager(cfg.Security.NonceSecret, cfg.Security.NonceTTL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create nonce manager: %w", err)
	}
	s.nonces = nonces

	s.metricsManager = metrics.NewManager(cfg.Metrics)
	s.site = site.NewRenderer(site.Options{
		Title:       cfg.Site.Title,
		Body:        cfg.Site.Body,
		Home:        cfg.PublicURL,
		Generator:   "OptiCore " + version,
		StaticURL:   cfg.PublicURL + "/static",
		Stylesheets: siteStylesheets(cfg.Site.Stylesheets),
	}, s.logger)

	// Create HTTP servers
	s.siteServer = &http.Server{
		Addr:         cfg.Listen,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.consoleServer = &http.Server{
		Addr:         cfg.ConsoleListen,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Setup routes
	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	return s, nil
}

// SiteHandler returns the handler of the site listener
func (s *Server) SiteHandler() http.Handler {
	return s.siteServer.Handler
}

// ConsoleHandler returns the handler of the settings console listener
func (s *Server) ConsoleHandler() http.Handler {
	return s.consoleServer.Handler
}

// Start serves both listeners until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"site_address":    s.config.Listen,
		"console_address": s.config.ConsoleListen,
		"data_dir":        s.config.DataDir,
		"cache_root":      s.config.Cache.Root,
	}).Info("Starting OptiCore servers")

	// Start site server
	go func() {
		if err := s.listen(s.siteServer); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Site server error")
		}
	}()

	// Start console server
	go func() {
		if err := s.listen(s.consoleServer); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Console server error")
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	return s.shutdown()
}

func (s *Server) listen(srv *http.Server) error {
	s.logger.WithField("address", srv.Addr).Info("Starting listener")

	if s.config.EnableTLS {
		return srv.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
	}
	return srv.ListenAndServe()
}

// Close releases the settings store and cache backend
func (s *Server) Close() error {
	if err := s.cache.Close(); err != nil {
		s.logger.WithError(err).Error("Failed to close cache backend")
	}
	return s.store.Close()
}

func (s *Server) shutdown() error {
	s.logger.Info("Shutting down servers")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.siteServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shutdown site server")
	}
	if err := s.consoleServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shutdown console server")
	}

	return s.Close()
}

func (s *Server) setupRoutes() error {
	static, err := staticHandler()
	if err != nil {
		return err
	}

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(s.logger),
		handlers.PrintRecoveryStack(true),
	)

	siteRouter := mux.NewRouter()
	s.useCommon(siteRouter)
	siteRouter.PathPrefix(CachePrefix).HandlerFunc(s.handleCacheFile).Methods("GET", "HEAD")
	siteRouter.PathPrefix(StaticPrefix).Handler(static).Methods("GET", "HEAD")
	siteRouter.PathPrefix("/").HandlerFunc(s.handlePage)
	s.siteServer.Handler = recovery(siteRouter)

	consoleRouter := mux.NewRouter()
	s.useCommon(consoleRouter)
	s.setupConsoleRoutes(consoleRouter, static)
	s.consoleServer.Handler = recovery(consoleRouter)

	return nil
}

func (s *Server) useCommon(router *mux.Router) {
	router.Use(middleware.Tracing)
	router.Use(middleware.Logging(s.logger, "/health", s.config.Metrics.Path))
	if s.config.Metrics.Enable {
		router.Use(s.metricsManager.Middleware())
	}
}

// stylesheetExample is shown in the exclusion field placeholder
func (s *Server) stylesheetExample() string {
	for _, st := range s.config.Site.Stylesheets {
		if st.Src != "" {
			return st.Src
		}
	}
	return s.config.PublicURL + "/style.css"
}

func siteStylesheets(cfg []config.StylesheetConfig) []assets.Asset {
	out := make([]assets.Asset, 0, len(cfg))
	for _, st := range cfg {
		out = append(out, assets.Asset{
			Handle: st.Handle,
			Src:    st.Src,
			Deps:   st.Deps,
			Ver:    st.Ver,
			Media:  st.Media,
		})
	}
	return out
}
