// Package metrics defines the Prometheus collectors for the pointing engine
// and the HTTP middleware that feeds the request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointing_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pointing_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_precompute_cache_hits_total",
		Help: "Precompute cache lookups served without recomputation.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_precompute_cache_misses_total",
		Help: "Precompute cache lookups that triggered a selector run.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pointing_precompute_cache_entries",
		Help: "Number of declination buckets currently cached.",
	})

	selectorRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_selector_runs_total",
		Help: "Calibrator selector executions (cache misses plus direct calls).",
	})

	pointingChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_changes_total",
		Help: "Significant pointing changes detected.",
	})

	currentDecDegrees = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pointing_current_declination_degrees",
		Help: "Last observed telescope declination.",
	})

	buildsQueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointing_catalog_builds_queued_total",
			Help: "Catalog strip builds submitted to the scheduler.",
		},
		[]string{"resource"},
	)

	buildsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointing_catalog_builds_finished_total",
			Help: "Catalog strip builds finished, by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)

	buildDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pointing_catalog_build_duration_seconds",
		Help:    "Wall time of catalog strip builds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	buildsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pointing_catalog_builds_pending",
		Help: "Catalog strip builds currently queued or running.",
	})

	monitorTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_monitor_ticks_total",
		Help: "Completed monitor loop iterations.",
	})

	monitorHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pointing_monitor_healthy",
		Help: "1 while the monitor loop is running, 0 otherwise.",
	})

	snapshotWriteErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_status_write_errors_total",
		Help: "Status snapshot writes that failed.",
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pointing_streams_active",
		Help: "Currently connected SSE status streams.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointing_stream_connections_total",
			Help: "SSE stream connects and disconnects.",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_stream_messages_total",
		Help: "SSE messages sent across all streams.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pointing_stream_bytes_total",
		Help: "Bytes written to SSE streams, keepalives included.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointing_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)

	watcherEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointing_watcher_events_total",
			Help: "Ingest watcher events by disposition.",
		},
		[]string{"disposition"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEntries,
		selectorRunsTotal,
		pointingChangesTotal,
		currentDecDegrees,
		buildsQueuedTotal,
		buildsFinishedTotal,
		buildDurationSeconds,
		buildsPending,
		monitorTicksTotal,
		monitorHealthy,
		snapshotWriteErrorsTotal,
		streamsActive,
		streamConnectionsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		watcherEventsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncCacheHits increments the precompute cache hit counter.
func IncCacheHits() { cacheHitsTotal.Inc() }

// IncCacheMisses increments the precompute cache miss counter.
func IncCacheMisses() { cacheMissesTotal.Inc() }

// SetCacheEntries publishes the number of cached declination buckets.
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

// IncSelectorRuns counts one calibrator selector execution.
func IncSelectorRuns() { selectorRunsTotal.Inc() }

// IncPointingChanges counts one detected pointing change.
func IncPointingChanges() { pointingChangesTotal.Inc() }

// SetCurrentDec publishes the last observed declination.
func SetCurrentDec(decDeg float64) { currentDecDegrees.Set(decDeg) }

// IncBuildsQueued counts a catalog build submission for a resource.
func IncBuildsQueued(resource string) { buildsQueuedTotal.WithLabelValues(resource).Inc() }

// IncBuildsFinished counts a finished build with outcome "ok" or "error".
func IncBuildsFinished(resource, outcome string) {
	buildsFinishedTotal.WithLabelValues(resource, outcome).Inc()
}

// ObserveBuildDuration records the wall time of one build.
func ObserveBuildDuration(d time.Duration) { buildDurationSeconds.Observe(d.Seconds()) }

// SetBuildsPending publishes the number of in-flight builds.
func SetBuildsPending(n int) { buildsPending.Set(float64(n)) }

// IncMonitorTicks counts one completed monitor iteration.
func IncMonitorTicks() { monitorTicksTotal.Inc() }

// SetMonitorHealthy publishes the monitor running state.
func SetMonitorHealthy(healthy bool) {
	if healthy {
		monitorHealthy.Set(1)
	} else {
		monitorHealthy.Set(0)
	}
}

// IncSnapshotWriteErrors counts a failed status file write.
func IncSnapshotWriteErrors() { snapshotWriteErrorsTotal.Inc() }

// IncStreamsActive increments the active SSE stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active SSE stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamConnections counts a stream lifecycle event ("connect" or
// "disconnect").
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

// IncStreamMessages counts one SSE message sent.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds to the SSE bytes-written counter.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts an SSE error by reason.
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// IncWatcherEvents counts an ingest watcher event by disposition
// ("observed", "skipped", "unreadable").
func IncWatcherEvents(disposition string) { watcherEventsTotal.WithLabelValues(disposition).Inc() }

// knownRoutes are the exact paths the server registers. Everything else is
// collapsed to "other" to keep label cardinality bounded against scanners.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/app.js":               true,
	"/styles.css":           true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/status":        true,
	"/api/v1/transits":      true,
	"/api/v1/pointing":      true,
	"/api/v1/stream/status": true,
}

// normalizeRoute maps a request path to a bounded metric label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
// Flush and Unwrap pass streaming capabilities through to the wrapped
// writer; without them the SSE handler would see a non-Flusher and the
// ResponseController could not adjust write deadlines.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
