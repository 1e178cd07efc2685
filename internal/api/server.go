package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cilaosgo/pkg/logging"
	"cilaosgo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// Optional handlers may be nil; their routes are then not registered.
// staticDir, when set, is served as a single-page app.
func NewServer(addr string, narr *NarrativeHandler, routeH *RouteHandler, stats *StatsHandler, cat *CatalogHandler, authH *AuthHandler, staticDir string, origins []string, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health + version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Live narrative
	if narr != nil {
		mux.Handle("GET /ws/narrative", narr)
	}

	// 3. Route and itinerary
	if routeH != nil {
		mux.HandleFunc("GET /api/route", routeH.HandleRoute)
		mux.HandleFunc("GET /api/itinerary", routeH.HandleItinerary)
		mux.HandleFunc("GET /api/narrative", routeH.HandleNarrative)
	}

	// 4. Catalogs
	if cat != nil {
		mux.HandleFunc("GET /api/catalog/stats", cat.HandleStats)
		mux.HandleFunc("GET /api/catalog/nearby", cat.HandleNearby)
		mux.HandleFunc("GET /api/catalog/{kind}", cat.HandleList)
		mux.HandleFunc("GET /api/catalog/{kind}/{id}", cat.HandleGet)
	}

	// 5. Admin gate. Stats, logs and shutdown need a session when the gate is present.
	admin := func(h http.Handler) http.Handler { return h }
	if authH != nil {
		mux.HandleFunc("POST /api/login", authH.HandleLogin)
		mux.HandleFunc("GET /api/session", authH.HandleSession)
		mux.HandleFunc("POST /api/logout", authH.HandleLogout)
		admin = authH.Require
	}
	if stats != nil {
		mux.Handle("GET /api/stats", admin(stats))
	}
	mux.Handle("GET /api/log/latest", admin(http.HandlerFunc(handleLatestLog)))

	if shutdown != nil {
		mux.Handle("POST /api/shutdown", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})))
	}

	// 6. Static frontend (SPA)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(&spaFileSystem{root: http.Dir(staticDir)}))
	}

	return &http.Server{
		Addr:        addr,
		Handler:     Middleware(mux, origins),
		ReadTimeout: 15 * time.Second,
		// Websocket sessions set their own deadlines after the upgrade.
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Middleware wraps h with tracing, access logging and, when origins are
// configured, CORS. Websocket upgrades are not traced.
func Middleware(h http.Handler, origins []string) http.Handler {
	h = otelhttp.NewHandler(h, "cilaosgo",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/ws/")
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	h = loggingMiddleware(h)
	if len(origins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
