// Package monitor runs the pointing status loop: every tick it
// recomputes sidereal time, upcoming and active calibrator transits,
// maintains the recently completed transit list, and publishes the
// snapshot to the status file and the in-memory store.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/transit"
)

const (
	// DefaultInterval is the tick period of the status loop.
	DefaultInterval = 60 * time.Second

	// DefaultHorizon bounds how far ahead upcoming transits are listed.
	DefaultHorizon = 24 * time.Hour

	// DefaultWindow is the active-calibrator observation window around a
	// transit instant.
	DefaultWindow = 5 * time.Minute

	// Completed transits older than this fall off the recent list.
	recentMaxAge = 6 * time.Hour

	// Two sightings of the same calibrator closer than this are one
	// transit, not two.
	recentDedupWindow = 300 * time.Second

	snapshotTransits = 5
)

// Config tunes a Monitor. Zero values select the defaults.
type Config struct {
	Interval time.Duration
	Horizon  time.Duration
	Window   time.Duration
}

// Monitor owns the status loop and the recent-transits bookkeeping.
type Monitor struct {
	cat      *catalog.Catalog
	loc      astro.Location
	interval time.Duration
	horizon  time.Duration
	window   time.Duration
	sink     Sink
	store    *Store
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	recents []transit.Prediction
	started time.Time

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New wires a Monitor to its catalog, location, sink and snapshot store.
func New(cat *catalog.Catalog, loc astro.Location, cfg Config, sink Sink, store *Store, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Monitor{
		cat:      cat,
		loc:      loc,
		interval: cfg.Interval,
		horizon:  cfg.Horizon,
		window:   cfg.Window,
		sink:     sink,
		store:    store,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run executes the status loop until the context is canceled or Stop is
// called. The first snapshot is written immediately, then one per
// interval. A failed status write is logged and the loop keeps going.
func (m *Monitor) Run(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	m.started = m.now().UTC()
	m.mu.Unlock()
	metrics.SetMonitorHealthy(true)
	m.logger.Info("pointing monitor started",
		"interval", m.interval.String(),
		"calibrators", m.cat.Len())

	defer func() {
		m.running.Store(false)
		metrics.SetMonitorHealthy(false)
		close(m.done)
		m.logger.Info("pointing monitor stopped")
	}()

	m.tick()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// Stop signals the loop to exit and waits for it if it is running. Safe
// to call more than once and before Run.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.running.Load() {
		<-m.done
	}
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

func (m *Monitor) tick() {
	st := m.Snapshot()
	if m.store != nil {
		m.store.Set(&st)
	}
	if err := m.sink.Write(st); err != nil {
		metrics.IncSnapshotWriteErrors()
		m.logger.Error("status write failed", "error", err)
	}
	metrics.IncMonitorTicks()

	if st.ActiveCalibrator != "" {
		m.logger.Info("active calibrator", "name", st.ActiveCalibrator)
	}
	for i, p := range st.UpcomingTransits {
		if i >= 2 {
			break
		}
		if p.SecondsToTransit < 3600 {
			m.logger.Info("upcoming transit",
				"calibrator", p.Calibrator,
				"minutes", roundTo(p.SecondsToTransit/60, 1))
		}
	}
}

// Snapshot assembles one consistent status view at the current instant.
// Usable whether or not the loop is running; completed-transit
// bookkeeping advances with each call.
func (m *Monitor) Snapshot() Status {
	now := m.now().UTC()
	lst := astro.LST(now, m.loc.LonDeg)
	upcoming := transit.Upcoming(m.cat, m.horizon, now, m.loc)
	active, _ := transit.Active(m.cat, m.window, now, m.loc)

	m.mu.Lock()
	m.updateRecentsLocked(upcoming, now)
	recents := make([]transit.Prediction, 0, snapshotTransits)
	start := len(m.recents) - snapshotTransits
	if start < 0 {
		start = 0
	}
	recents = append(recents, m.recents[start:]...)
	var uptime float64
	if m.running.Load() && !m.started.IsZero() {
		uptime = now.Sub(m.started).Seconds()
	}
	m.mu.Unlock()

	head := upcoming
	if len(head) > snapshotTransits {
		head = head[:snapshotTransits]
	}

	return Status{
		CurrentLST:       lst,
		CurrentUTC:       now,
		ActiveCalibrator: active,
		UpcomingTransits: head,
		RecentTransits:   recents,
		MonitorHealthy:   m.running.Load(),
		LastUpdate:       now,
		UptimeSec:        uptime,
	}
}

// updateRecentsLocked converts in-progress predictions into completed
// records, deduplicates repeat sightings of the same transit, and drops
// records past the age limit. Caller holds m.mu.
func (m *Monitor) updateRecentsLocked(upcoming []transit.Prediction, now time.Time) {
	for _, p := range upcoming {
		if p.Status != transit.StatusInProgress {
			continue
		}
		dup := false
		for _, r := range m.recents {
			if r.Calibrator == p.Calibrator &&
				math.Abs(r.TransitUTC.Sub(p.TransitUTC).Seconds()) < recentDedupWindow.Seconds() {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		rec := p
		rec.SecondsToTransit = 0
		rec.Status = transit.StatusCompleted
		m.recents = append(m.recents, rec)
	}

	cutoff := now.Add(-recentMaxAge)
	kept := m.recents[:0]
	for _, r := range m.recents {
		if r.TransitUTC.After(cutoff) {
			kept = append(kept, r)
		}
	}
	m.recents = kept
}
