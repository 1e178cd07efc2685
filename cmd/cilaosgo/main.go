package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cilaosgo/internal/api"
	"cilaosgo/pkg/auth"
	"cilaosgo/pkg/catalog"
	"cilaosgo/pkg/config"
	"cilaosgo/pkg/db"
	"cilaosgo/pkg/db/maintenance"
	"cilaosgo/pkg/geo"
	"cilaosgo/pkg/logging"
	"cilaosgo/pkg/probe"
	"cilaosgo/pkg/request"
	"cilaosgo/pkg/route"
	"cilaosgo/pkg/routing"
	"cilaosgo/pkg/store"
	"cilaosgo/pkg/tracker"
	"cilaosgo/pkg/version"
)

const defaultConfigPath = "configs/cilaos.yaml"

// maintenanceInterval is how often expired cache rows and sessions are pruned.
const maintenanceInterval = 6 * time.Hour

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the YAML config file")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	// Secrets may come from a local .env; a missing file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("CilaosGo Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	cacheTTL := time.Duration(appCfg.DB.CacheTTL)
	maintenance.Run(ctx, dbConn, cacheTTL)
	go runMaintenance(ctx, dbConn, cacheTTL)

	tr := tracker.New()
	reqClient := request.New(st, tr, request.ClientConfig{
		Retries:   appCfg.Request.Retries,
		Timeout:   time.Duration(appCfg.Request.Timeout),
		BaseDelay: time.Duration(appCfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(appCfg.Request.Backoff.MaxDelay),
	})

	staticDir := appCfg.Server.StaticDir
	probes := []probe.Probe{
		{Name: "Database", Check: dbConn.PingContext, Critical: true},
	}
	if staticDir != "" {
		probes = append(probes, probe.Probe{Name: "Static files", Check: probe.DirCheck(staticDir)})
	}
	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	for _, r := range results {
		if r.Probe.Name == "Static files" && r.Error != nil {
			slog.Warn("Serving the API only, static directory unavailable", "dir", staticDir)
			staticDir = ""
		}
	}

	it := geo.DefaultItinerary()
	segs, source, err := resolveRoute(ctx, appCfg, it, newRoutingProvider(appCfg, reqClient))
	if err != nil {
		return err
	}

	cat, err := catalog.Load(appCfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	gate := auth.New(st, &appCfg.Auth)

	return runServer(ctx, appCfg, it, segs, source, cat, gate, st, tr, staticDir)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func runMaintenance(ctx context.Context, d *db.DB, cacheTTL time.Duration) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			maintenance.Run(ctx, d, cacheTTL)
		}
	}
}

// newRoutingProvider returns nil when routing is disabled.
func newRoutingProvider(appCfg *config.Config, client *request.Client) routing.Provider {
	rc := appCfg.Routing
	if rc.Provider != "osrm" || rc.BaseURL == "" {
		return nil
	}
	return routing.NewOSRM(client, rc.BaseURL, rc.Profile, time.Duration(rc.Timeout))
}

// resolveRoute fetches the road polyline once and splits it into the narrative segments.
func resolveRoute(ctx context.Context, appCfg *config.Config, it *geo.Itinerary, p routing.Provider) ([route.Count]route.Segment, string, error) {
	var segs [route.Count]route.Segment
	bp, err := route.BreakpointsFrom(appCfg.Narrative.Breakpoints)
	if err != nil {
		return segs, "", fmt.Errorf("invalid breakpoints: %w", err)
	}

	res := routing.Resolve(ctx, p, it.Points())
	segs = route.Split(res.Line, bp)
	for _, s := range segs {
		slog.Debug("Route segment", "segment", s.Index, "points", len(s.Points), "length_m", int(s.LengthMeters()))
	}
	slog.Info("Route ready", "source", res.Source, "points", len(res.Line))
	return segs, string(res.Source), nil
}

func runServer(ctx context.Context, appCfg *config.Config, it *geo.Itinerary, segs [route.Count]route.Segment, source string,
	cat *catalog.Catalog, gate *auth.Gate, st store.Store, tr *tracker.Tracker, staticDir string) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	origins := appCfg.Server.AllowedOrigins
	narrH := api.NewNarrativeHandler(it, segs, &appCfg.Narrative, st, nil, origins)
	routeH := api.NewRouteHandler(it, segs, source, &appCfg.Narrative)
	statsH := api.NewStatsHandler(tr, st, narrH)
	catH := api.NewCatalogHandler(cat, appCfg.Catalog.NearbyRadius)
	authH := api.NewAuthHandler(gate, appCfg.Auth.CookieName, appCfg.Auth.SecureCookie)

	shutdown := func() {
		select {
		case quit <- syscall.SIGTERM:
		default:
		}
	}
	srv := api.NewServer(appCfg.Server.Address, narrH, routeH, statsH, catH, authH, staticDir, origins, shutdown)
	srv.RegisterOnShutdown(narrH.CloseAll)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
