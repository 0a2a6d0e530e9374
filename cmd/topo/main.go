package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"

	"github.com/joeblew999/plat-topo/internal/api"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/server"
	"github.com/joeblew999/plat-topo/internal/store"
)

// Options defines all CLI flags and env vars for the topo server.
// Flags: --host, --port, --data-dir, --web-dir, --catalog, --config, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string `doc:"Directory for preferences and the DuckDB mirror" default:".data"`
	WebDir       string `doc:"Path to web/ directory; the embedded copy is used when it has no templates" default:"web"`
	Catalog      string `doc:"Catalog YAML or JSON file; empty uses the embedded catalog"`
	Config       string `doc:"Viewport and image tuning YAML file" default:"topo.yaml"`
	PrefsBackend string `doc:"Preferences store: file, redis or memory" default:"file"`
	RedisURL     string `doc:"Redis URL for the redis preferences store" default:"redis://localhost:6379/0"`
	SessionTTL   int    `doc:"Minutes an idle viewer session is kept" default:"120"`
	LogLevel     string `doc:"Log level: debug, info, warn or error" default:"info"`
	LogFormat    string `doc:"Log format: text or json" default:"text"`
}

func newLogger(opts *Options) logging.Logger {
	return logging.New(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})
}

func newServer(opts *Options, log logging.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		WebDir:       opts.WebDir,
		CatalogPath:  opts.Catalog,
		ConfigPath:   opts.Config,
		PrefsBackend: opts.PrefsBackend,
		RedisURL:     opts.RedisURL,
		SessionTTL:   time.Duration(opts.SessionTTL) * time.Minute,
		Logger:       log,
	})
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := newLogger(opts)
		var httpSrv *http.Server
		var srv *server.Server
		var stopOnce sync.Once
		stop := func() {
			stopOnce.Do(func() { shutdown(httpSrv, srv, log) })
		}

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts, log)
			if err != nil {
				fatal("Startup error: %v", err)
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			srv.Start(ctx)
			go reloadOnHangup(ctx, srv, log)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-topo server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Prefs:   %s\n", backendName(opts.PrefsBackend))
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				stop()
			}()
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if httpSrv != nil {
				stop()
			}
		})
	})

	cli.Root().Use = "topo"
	cli.Root().Short = "Index viewer for Morocco's 1:50,000 topographic map sheets"
	cli.Root().Version = api.Version

	addCommands(cli)

	cli.Run()
}

func shutdown(httpSrv *http.Server, srv *server.Server, log logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn(ctx, "http shutdown", logging.Err(err))
	}
	if err := srv.Close(); err != nil {
		log.Warn(ctx, "close server", logging.Err(err))
	}
}

// reloadOnHangup re-reads the catalog on SIGHUP.
func reloadOnHangup(ctx context.Context, srv *server.Server, log logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := srv.ReloadCatalog(ctx); err != nil {
				log.Error(ctx, "reload catalog", logging.Err(err))
			}
		}
	}
}

func backendName(b string) string {
	if b == "" {
		return store.BackendFile
	}
	return b
}
