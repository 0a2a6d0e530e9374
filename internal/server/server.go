package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeblew999/plat-topo/internal/api"
	"github.com/joeblew999/plat-topo/internal/api/viewer"
	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/db"
	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/metrics"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/store"
	"github.com/joeblew999/plat-topo/internal/templates"
	"github.com/joeblew999/plat-topo/web"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string
	WebDir       string // web/ directory on disk; empty serves the embedded copy
	CatalogPath  string // catalog YAML or JSON; empty uses the embedded catalog
	ConfigPath   string // optional YAML tuning file
	PrefsBackend string // file, redis or memory
	RedisURL     string
	SessionTTL   time.Duration
	Logger       logging.Logger
	Registry     *prometheus.Registry // defaults to a fresh registry
}

// Server is the topo HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	viewer   *viewer.Handler
	links    humastar.LinkSet
	metrics  *metrics.Collector
	store    store.Store
	bus      *service.EventBus
	file     FileConfig
	log      logging.Logger

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates a new topo server.
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	ctx := context.Background()

	fileCfg, err := LoadFileConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg.CatalogPath, fileCfg)
	if err != nil {
		return nil, err
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	mc, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	st, err := store.Open(ctx, store.Options{
		Backend:  cfg.PrefsBackend,
		Dir:      filepath.Join(cfg.DataDir, "prefs"),
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("preferences store: %w", err)
	}

	webFS, err := webFiles(cfg.WebDir)
	if err != nil {
		st.Close()
		return nil, err
	}
	renderer, err := templates.New(webFS)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("templates: %w", err)
	}

	bus := service.NewEventBus()
	var prefs *service.PrefsService
	sessions := service.NewSessionManager(cat, fileCfg.ViewportConfig(),
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithSessionBus(bus),
		service.WithSessionLogger(log),
		service.WithSessionMetrics(mc),
		// Expired sessions release their cached preferences.
		service.WithSessionExpiry(func(id string) { prefs.Forget(id) }),
	)
	prefs = service.NewPrefsService(st, func(id string) bool {
		_, ok := sessions.Catalog().Get(id)
		return ok
	}, service.WithPrefsLogger(log), service.WithPrefsMetrics(mc), service.WithPrefsBus(bus))

	mux := http.NewServeMux()
	links := humastar.LinkSet{}

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-topo API", api.Version)
	humaConfig.Info.Description = "Index of Morocco's 1:50,000 topographic map sheets: search, favorites, and a pan/zoom viewer over the index image."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		services: &api.Services{
			Sessions: sessions,
			Prefs:    prefs,
			Viewport: fileCfg.ViewportConfig(),
		},
		renderer: renderer,
		links:    links,
		metrics:  mc,
		store:    st,
		bus:      bus,
		file:     fileCfg,
		log:      log,
	}
	s.viewer = viewer.NewHandler(sessions, prefs, renderer,
		viewer.WithLogger(log), viewer.WithMetrics(mc), viewer.WithBus(bus))

	// Initialize DuckDB connection
	conn, err := db.Get(db.Config{
		DataDir: cfg.DataDir,
		DBName:  "topo",
	})
	if err == nil {
		if err := db.MirrorCatalog(ctx, conn, cat); err != nil {
			log.Warn(ctx, "mirror catalog into duckdb", logging.Err(err))
		}
		s.db = conn
	} else {
		log.Warn(ctx, "duckdb unavailable, /api/v1/query disabled", logging.Err(err))
	}

	s.routes(webFS)
	s.handler = mc.Middleware(s.mux)
	return s, nil
}

func loadCatalog(path string, fc FileConfig) (*catalog.Catalog, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return fc.ApplyImage(cat)
}

// webFiles returns the web directory on disk when it exists, so templates
// and assets can be edited without a rebuild, and the embedded copy
// otherwise.
func webFiles(dir string) (fs.FS, error) {
	if dir == "" {
		return web.FS, nil
	}
	info, err := os.Stat(filepath.Join(dir, "templates"))
	if errors.Is(err, fs.ErrNotExist) {
		return web.FS, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s/templates is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the services shared by the REST and viewer handlers.
func (s *Server) Services() *api.Services {
	return s.services
}

// Start runs the background session sweeper until Close.
func (s *Server) Start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.services.Sessions.Run(ctx, 0)
	}()
}

// ReloadCatalog re-reads the catalog and swaps it into every session.
func (s *Server) ReloadCatalog(ctx context.Context) error {
	cat, err := loadCatalog(s.config.CatalogPath, s.file)
	if err != nil {
		return err
	}
	s.services.Sessions.SetCatalog(cat)
	if s.db != nil {
		if err := db.MirrorCatalog(ctx, s.db, cat); err != nil {
			return fmt.Errorf("mirror catalog: %w", err)
		}
	}
	s.log.Info(ctx, "catalog reloaded", logging.Int("sheets", cat.Len()))
	return nil
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.stop != nil {
		s.stop()
		s.wg.Wait()
	}
	return errors.Join(s.store.Close(), db.Close())
}

func (s *Server) routes(webFS fs.FS) {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services, s.storeBackend()).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	s.viewer.RegisterRoutes(s.humaAPI)

	// Links are generated once every route exists.
	s.links.Build(s.humaAPI, api.SheetRelations...)

	s.mux.Handle("/metrics", s.metrics.Handler())

	if static, err := fs.Sub(webFS, "static"); err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}

	// Page routes
	s.mux.Handle(viewer.PagePath, s.viewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	s.viewer.ServeHTTP(w, r)
}

func (s *Server) storeBackend() string {
	if s.config.PrefsBackend == "" {
		return store.BackendFile
	}
	return s.config.PrefsBackend
}
