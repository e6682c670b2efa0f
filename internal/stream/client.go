package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/monitor"
)

// writeDeadline bounds each individual SSE write so a stalled reader is
// cut loose instead of pinning a goroutine behind a dead TCP peer.
const writeDeadline = 30 * time.Second

// statusConn wraps one subscriber connection and frames pointing status
// snapshots as SSE messages.
type statusConn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	snapshots int64
	bytes     int64
}

// write pushes one raw SSE frame, extending the write deadline first so
// the server's WriteTimeout does not kill a healthy long-lived stream.
func (c *statusConn) write(frame string) (int, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := fmt.Fprint(c.w, frame)
	if err != nil {
		return n, err
	}
	c.flusher.Flush()
	c.bytes += int64(n)
	metrics.AddStreamBytes(int64(n))
	return n, nil
}

// sendSnapshot frames a status document as "data: {json}\n\n".
func (c *statusConn) sendSnapshot(st *monitor.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if _, err := c.write("data: " + string(data) + "\n\n"); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.snapshots++
	metrics.IncStreamMessages()
	return nil
}

// sendKeepalive emits an SSE comment frame (":\n\n") so proxies keep
// the connection open through quiet stretches.
func (c *statusConn) sendKeepalive() error {
	if _, err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	return nil
}
