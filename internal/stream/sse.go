// Package stream implements Server-Sent Events (SSE) streaming of the
// pointing status. Clients connect via GET /api/v1/stream/status and
// receive the same JSON document the status file carries, pushed
// whenever the monitor produces a new snapshot.
//
// SSE message format:
//
//	data: {"current_lst":...,"active_calibrator":...,...}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval so idle
// connections survive proxies. Reconnecting clients receive the latest
// snapshot immediately on each connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/httputil"
	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/monitor"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 4).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
	TrustProxy         bool          // Trust X-Forwarded-For / X-Real-IP for rate limiting.
}

// Handler manages SSE streaming connections.
type Handler struct {
	store   *monitor.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler reading snapshots from store.
func NewHandler(store *monitor.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 4
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	return &Handler{
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// errorJSON writes a JSON error body with the given status. Only valid
// before the response has switched to text/event-stream.
func errorJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleStatus serves the SSE status stream.
// GET /api/v1/stream/status?interval=5
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// Poll interval in seconds. The monitor refreshes once a minute by
	// default, so anything between 1s and 60s only affects push latency.
	interval := 5
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			errorJSON(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60")
			return
		}
		interval = n
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		errorJSON(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval", interval,
	)

	var c *statusConn
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		attrs := []any{
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		}
		if c != nil {
			attrs = append(attrs, "snapshots_sent", c.snapshots, "bytes_sent", c.bytes)
		}
		h.logger.Info("stream disconnected", attrs...)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		errorJSON(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// SSE connections outlive the server's WriteTimeout; clear the
	// deadline here and re-arm it per write in statusConn.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c = &statusConn{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jitter the client retry interval (3-7s) so a restart does not get
	// every dashboard reconnecting in the same instant.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	// Send the latest snapshot immediately so clients render without
	// waiting a full interval. Before the monitor's first tick there is
	// nothing to send; the loop below picks it up.
	var lastSent time.Time
	if st := h.store.Get(); st != nil {
		if err := c.sendSnapshot(st); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (initial)", "remote_ip", ip, "error", err)
			return
		}
		lastSent = st.LastUpdate
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			st := h.store.Get()
			if st == nil {
				metrics.IncStreamErrors("no_snapshot")
				continue
			}
			// Only push fresh snapshots; keepalives cover quiet stretches.
			if !st.LastUpdate.After(lastSent) {
				continue
			}
			if err := c.sendSnapshot(st); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			lastSent = st.LastUpdate

			// Data just went out; push the next keepalive a full
			// interval away.
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
