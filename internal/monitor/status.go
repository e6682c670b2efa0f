package monitor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/transit"
)

// Status is one consistent view of the pointing sky: sidereal clock,
// active and upcoming calibrators, and recently completed transits. The
// monitor writes it to the status file every tick and the admin API
// serves it verbatim.
type Status struct {
	CurrentLST       float64
	CurrentUTC       time.Time
	ActiveCalibrator string // empty when nothing is transiting
	UpcomingTransits []transit.Prediction
	RecentTransits   []transit.Prediction
	MonitorHealthy   bool
	LastUpdate       time.Time
	UptimeSec        float64
}

// MarshalJSON emits the status-file wire format.
func (s Status) MarshalJSON() ([]byte, error) {
	type wire struct {
		CurrentLST       float64              `json:"current_lst"`
		CurrentUTC       string               `json:"current_utc"`
		ActiveCalibrator *string              `json:"active_calibrator"`
		UpcomingTransits []transit.Prediction `json:"upcoming_transits"`
		RecentTransits   []transit.Prediction `json:"recent_transits"`
		MonitorHealthy   bool                 `json:"monitor_healthy"`
		LastUpdate       string               `json:"last_update"`
		UptimeSec        float64              `json:"uptime_sec"`
	}

	w := wire{
		CurrentLST:       roundTo(s.CurrentLST, 4),
		CurrentUTC:       s.CurrentUTC.UTC().Format(time.RFC3339),
		UpcomingTransits: s.UpcomingTransits,
		RecentTransits:   s.RecentTransits,
		MonitorHealthy:   s.MonitorHealthy,
		LastUpdate:       s.LastUpdate.UTC().Format(time.RFC3339),
		UptimeSec:        roundTo(s.UptimeSec, 1),
	}
	if s.ActiveCalibrator != "" {
		w.ActiveCalibrator = &s.ActiveCalibrator
	}
	if w.UpcomingTransits == nil {
		w.UpcomingTransits = []transit.Prediction{}
	}
	if w.RecentTransits == nil {
		w.RecentTransits = []transit.Prediction{}
	}
	return json.Marshal(w)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Sink receives each status snapshot. Write failures are the sink's to
// report; the monitor logs them and keeps ticking.
type Sink interface {
	Write(Status) error
}

// FileSink writes snapshots to a JSON file, replacing it atomically so
// readers never observe a torn document.
type FileSink struct {
	Path string
}

// Write implements Sink.
func (s FileSink) Write(st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}

// Store hands the latest snapshot to HTTP and SSE consumers without
// blocking the monitor loop.
type Store struct {
	latest atomic.Pointer[Status]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the latest snapshot, or nil before the first tick.
func (s *Store) Get() *Status {
	return s.latest.Load()
}

// Set atomically replaces the latest snapshot.
func (s *Store) Set(st *Status) {
	s.latest.Store(st)
}
