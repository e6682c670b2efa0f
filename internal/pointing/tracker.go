package pointing

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/precompute"
	"github.com/dsa110/dsa110-pointing/internal/scheduler"
	"github.com/dsa110/dsa110-pointing/internal/survey"
)

const (
	// DefaultThresholdDeg is the declination change that counts as a new
	// pointing. Smaller moves are jitter in the reported coordinates.
	DefaultThresholdDeg = 1.0

	// DefaultEnsureTimeout bounds how long EnsureCatalogs waits per strip.
	DefaultEnsureTimeout = 5 * time.Minute

	historyLimit = 100
)

// DeclinationReader extracts a pointing declination from an ingest file.
// Absent pointing metadata is a normal outcome reported through the bool,
// never an error.
type DeclinationReader interface {
	ReadDeclination(path string) (float64, bool)
}

// Config tunes a Tracker. Zero values select the defaults.
type Config struct {
	ThresholdDeg float64
	Resources    []survey.Resource
}

// Tracker holds the last known pointing, decides which observations are
// significant, and owns the change history.
type Tracker struct {
	mu        sync.Mutex
	lastDec   *float64
	lastEvent *ChangeEvent
	history   []ChangeEvent

	threshold float64
	resources []survey.Resource
	cache     *precompute.Cache
	sched     *scheduler.Scheduler
	checker   survey.Checker
	builder   survey.Builder
	logger    *slog.Logger
}

// NewTracker wires a Tracker to its collaborators.
func NewTracker(cache *precompute.Cache, sched *scheduler.Scheduler, checker survey.Checker, builder survey.Builder, cfg Config, logger *slog.Logger) *Tracker {
	threshold := cfg.ThresholdDeg
	if threshold <= 0 {
		threshold = DefaultThresholdDeg
	}
	resources := cfg.Resources
	if len(resources) == 0 {
		resources = survey.DefaultResources()
	}
	return &Tracker{
		threshold: threshold,
		resources: resources,
		cache:     cache,
		sched:     sched,
		checker:   checker,
		builder:   builder,
		logger:    logger,
	}
}

// Observe decides whether the observation is a significant pointing
// change. Significant means no pointing was known yet, the caller forced
// it, or the declination moved by more than the threshold. On a
// significant change it refreshes the calibrator ranking, queues strip
// builds for surveys that cover the new declination and have no strip on
// disk yet, appends to history, and returns the event. Anything below
// the threshold returns nil with no side effects at all.
//
// The whole call is one critical section: racing observers serialize,
// and history order is lock-acquisition order.
func (t *Tracker) Observe(ctx context.Context, obs Observation) *ChangeEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.lastDec
	if !obs.Force && old != nil && math.Abs(obs.DecDeg-*old) <= t.threshold {
		return nil
	}

	ev := &ChangeEvent{
		OldDecDeg:   old,
		NewDecDeg:   obs.DecDeg,
		Timestamp:   obs.At.UTC(),
		SourceFile:  obs.Source,
		TypesQueued: []string{},
	}
	dec := obs.DecDeg
	t.lastDec = &dec

	if old != nil {
		t.logger.Info("pointing change detected",
			"old_dec_deg", *old,
			"new_dec_deg", obs.DecDeg,
			"delta_deg", math.Abs(obs.DecDeg-*old),
			"source", obs.Source)
	} else {
		t.logger.Info("initial pointing observed",
			"new_dec_deg", obs.DecDeg,
			"source", obs.Source)
	}

	// Stale rankings must not survive a pointing change.
	t.cache.Invalidate(obs.DecDeg)
	if best, _ := t.cache.Get(obs.DecDeg, obs.At); best != nil {
		ev.Calibrator = best.Name
		ev.CalibratorTransit = best.TransitUTC
		ev.CalibratorDecDeg = best.DecDeg
		t.logger.Info("precomputed calibrator",
			"name", best.Name,
			"dec_separation_deg", best.DecSeparationDeg,
			"transit_utc", best.TransitUTC.UTC().Format(time.RFC3339))
	}

	ev.TypesQueued = t.queueBuilds(ctx, obs.DecDeg)
	ev.BuildStarted = len(ev.TypesQueued) > 0
	if ev.BuildStarted {
		t.logger.Info("queued catalog builds", "resources", ev.TypesQueued)
	}

	t.lastEvent = ev
	t.history = append(t.history, *ev)
	if len(t.history) > historyLimit {
		t.history = t.history[len(t.history)-historyLimit:]
	}

	metrics.IncPointingChanges()
	metrics.SetCurrentDec(obs.DecDeg)
	return ev
}

// queueBuilds submits one strip build per missing, covered resource and
// returns the resources that were freshly queued. Called with t.mu held;
// Submit never blocks, so the critical section stays short.
func (t *Tracker) queueBuilds(ctx context.Context, decDeg float64) []string {
	queued := []string{}
	for _, r := range t.resources {
		if exists, path := t.checker.Exists(r, decDeg); exists {
			t.logger.Debug("strip already on disk", "resource", r, "path", path)
			continue
		}
		if !survey.Covers(r, decDeg) {
			t.logger.Debug("declination outside survey coverage",
				"resource", r, "dec_deg", decDeg)
			continue
		}

		resource := r
		_, fresh := t.sched.Submit(ctx, scheduler.NewKey(string(r), decDeg), func(ctx context.Context) (string, error) {
			lo, hi := survey.StripRange(decDeg)
			return t.builder.Build(ctx, resource, decDeg, lo, hi)
		})
		if !fresh {
			t.logger.Debug("build already in flight", "resource", r, "dec_deg", decDeg)
			continue
		}
		queued = append(queued, string(r))
	}
	return queued
}

// EnsureCatalogs makes sure a strip exists for every requested resource
// at the declination, submitting builds where needed. With wait it
// blocks up to timeout per strip. The result maps each resource to its
// strip path, or "" when the strip is missing, still building, or the
// build failed. Does not touch tracker state, so it never contends with
// Observe.
func (t *Tracker) EnsureCatalogs(ctx context.Context, decDeg float64, resources []survey.Resource, wait bool, timeout time.Duration) map[survey.Resource]string {
	if len(resources) == 0 {
		resources = t.resources
	}
	if timeout <= 0 {
		timeout = DefaultEnsureTimeout
	}

	results := make(map[survey.Resource]string, len(resources))
	for _, r := range resources {
		if exists, path := t.checker.Exists(r, decDeg); exists {
			results[r] = path
			continue
		}
		if !survey.Covers(r, decDeg) {
			results[r] = ""
			continue
		}

		resource := r
		key := scheduler.NewKey(string(r), decDeg)
		t.sched.Submit(ctx, key, func(ctx context.Context) (string, error) {
			lo, hi := survey.StripRange(decDeg)
			return t.builder.Build(ctx, resource, decDeg, lo, hi)
		})

		if !wait {
			results[r] = ""
			continue
		}
		loc, err := t.sched.Await(ctx, key, timeout)
		if err != nil {
			t.logger.Error("catalog build did not finish",
				"resource", r, "dec_deg", decDeg, "error", err)
			results[r] = ""
			continue
		}
		results[r] = loc
	}
	return results
}

// Status is the tracker view served by the admin API.
type Status struct {
	CurrentDecDeg *float64     `json:"current_dec_deg"`
	LastChange    *ChangeEvent `json:"last_change"`
	ChangeCount   int          `json:"change_count"`
	CachedBuckets int          `json:"cached_buckets"`
	PendingBuilds []string     `json:"pending_catalog_builds"`
}

// Status reports the current pointing, the most recent change, and the
// build backlog as one consistent view.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		ChangeCount:   len(t.history),
		CachedBuckets: t.cache.Len(),
		PendingBuilds: []string{},
	}
	if t.lastDec != nil {
		dec := *t.lastDec
		st.CurrentDecDeg = &dec
	}
	if t.lastEvent != nil {
		ev := *t.lastEvent
		st.LastChange = &ev
	}
	for _, k := range t.sched.Pending() {
		st.PendingBuilds = append(st.PendingBuilds, k.String())
	}
	return st
}

// CurrentDec returns the last observed declination.
func (t *Tracker) CurrentDec() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastDec == nil {
		return 0, false
	}
	return *t.lastDec, true
}

// History returns a copy of the retained change events, oldest first.
func (t *Tracker) History() []ChangeEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ChangeEvent, len(t.history))
	copy(out, t.history)
	return out
}
