// Package api serves the admin HTTP surface of the pointing engine:
// liveness and readiness probes, Prometheus metrics, the latest status
// snapshot, ad-hoc transit queries, tracker state, the SSE status
// stream, and the embedded dashboard.
package api

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/auth"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
	"github.com/dsa110/dsa110-pointing/internal/health"
	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/monitor"
	"github.com/dsa110/dsa110-pointing/internal/pointing"
	"github.com/dsa110/dsa110-pointing/internal/stream"
	"github.com/dsa110/dsa110-pointing/internal/transit"
)

// Transit query bounds. Three days covers any maintenance window a
// human would inspect by hand; anything longer belongs in a script
// against the transits subcommand.
const (
	defaultTransitHours = 24
	maxTransitHours     = 72
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. ready gates the readiness
// probe; webContent carries the embedded dashboard files.
func NewServer(
	addr string,
	logger *slog.Logger,
	authCfg auth.Config,
	store *monitor.Store,
	tracker *pointing.Tracker,
	cat *catalog.Catalog,
	loc astro.Location,
	ready func() bool,
	streamHandler *stream.Handler,
	webContent fs.FS,
) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/status", statusHandler(store))
	mux.HandleFunc("GET /api/v1/transits", transitsHandler(cat, loc))
	mux.HandleFunc("GET /api/v1/pointing", pointingHandler(tracker))
	mux.HandleFunc("GET /api/v1/stream/status", streamHandler.HandleStatus)
	mux.Handle("GET /", http.FileServerFS(webContent))

	// metrics -> logging -> auth -> mux, so even rejected requests are
	// counted and logged.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server so the caller can
// drive shutdown.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts serving and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// statusHandler serves the latest monitor snapshot. Before the first
// tick there is nothing to serve, which is a 503, not an empty 200:
// health checks must not mistake a cold start for a healthy monitor.
func statusHandler(store *monitor.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := store.Get()
		if st == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "no status snapshot yet",
			})
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// transitsHandler computes the transit schedule over a query-supplied
// horizon. Unlike the snapshot's upcoming list this is not capped at
// five entries and expands repeat transits on multi-day horizons.
func transitsHandler(cat *catalog.Catalog, loc astro.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := defaultTransitHours
		if v := r.URL.Query().Get("hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxTransitHours {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":     "invalid hours parameter",
					"max_hours": maxTransitHours,
				})
				return
			}
			hours = n
		}

		now := time.Now().UTC()
		preds := transit.Schedule(cat, time.Duration(hours)*time.Hour, now, loc)
		writeJSON(w, http.StatusOK, map[string]any{
			"generated_utc": now.Format(time.RFC3339),
			"horizon_hours": hours,
			"count":         len(preds),
			"transits":      preds,
		})
	}
}

// pointingHandler serves the tracker's consistent status view.
func pointingHandler(tracker *pointing.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tracker.Status())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response code for the request log. Flush
// and Unwrap keep http.Flusher and http.ResponseController working for
// the SSE stream underneath the middleware chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// loggingMiddleware emits one log line per request. Probe endpoints log
// at debug so a tight readiness poll does not drown everything else.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "api")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				level = slog.LevelDebug
			}
			log.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
