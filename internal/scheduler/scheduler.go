// Package scheduler runs catalog strip builds on a bounded worker pool,
// deduplicating submissions so each (resource, declination) strip is
// built at most once at a time no matter how many pointing changes ask
// for it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/metrics"
)

// DefaultWorkers bounds concurrent builds when no pool size is given.
const DefaultWorkers = 2

var (
	// ErrTimeout reports that Await gave up before the task finished.
	ErrTimeout = errors.New("await timed out before the task finished")
	// ErrUnknownTask reports that no task was ever submitted for the key.
	ErrUnknownTask = errors.New("no task submitted for key")
)

// Key identifies one strip build: survey resource plus declination in
// integer tenths of a degree. Keeping the declination integral makes the
// key safe for map equality.
type Key struct {
	Resource  string
	DecTenths int
}

// NewKey buckets a declination to tenths and pairs it with a resource.
func NewKey(resource string, decDeg float64) Key {
	return Key{Resource: resource, DecTenths: int(math.Round(decDeg * 10))}
}

// String renders the key the way it appears in logs, e.g. "nvss_32.0".
func (k Key) String() string {
	return fmt.Sprintf("%s_%.1f", k.Resource, float64(k.DecTenths)/10)
}

// Dec returns the key's declination in degrees.
func (k Key) Dec() float64 {
	return float64(k.DecTenths) / 10
}

// Task performs one build and returns the location of what it produced.
type Task func(ctx context.Context) (string, error)

// Handle tracks one submitted task. Result fields are written exactly
// once before done is closed, so readers that observe the close may read
// them without a lock.
type Handle struct {
	key  Key
	done chan struct{}
	loc  string
	err  error
}

func newHandle(key Key) *Handle {
	return &Handle{key: key, done: make(chan struct{})}
}

func (h *Handle) finish(loc string, err error) {
	h.loc = loc
	h.err = err
	close(h.done)
}

func (h *Handle) completed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done exposes the completion channel for select-based callers.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Scheduler owns the task registry and the worker pool.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[Key]*Handle
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New builds a Scheduler with the given pool size. workers <= 0 selects
// the default of 2.
func New(workers int, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scheduler{
		tasks:  make(map[Key]*Handle),
		sem:    make(chan struct{}, workers),
		logger: logger,
	}
}

// Submit registers a task for the key and starts it on the pool. If a
// task for the same key is still pending, the existing handle is
// returned unchanged and the new task is dropped. A key whose prior task
// completed accepts a fresh submission. Submit never blocks; the
// semaphore wait happens on the task's own goroutine.
func (s *Scheduler) Submit(ctx context.Context, key Key, task Task) (*Handle, bool) {
	s.mu.Lock()
	if h, ok := s.tasks[key]; ok && !h.completed() {
		s.mu.Unlock()
		return h, false
	}
	h := newHandle(key)
	s.tasks[key] = h
	pending := s.pendingLocked()
	s.mu.Unlock()

	metrics.IncBuildsQueued(key.Resource)
	metrics.SetBuildsPending(pending)
	s.logger.Debug("build queued", "key", key.String())

	s.wg.Add(1)
	go s.run(ctx, h, task)
	return h, true
}

func (s *Scheduler) run(ctx context.Context, h *Handle, task Task) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.settle(h, "", ctx.Err(), 0)
		return
	}
	defer func() { <-s.sem }()

	start := time.Now()
	loc, err := task(ctx)
	s.settle(h, loc, err, time.Since(start))
}

func (s *Scheduler) settle(h *Handle, loc string, err error, elapsed time.Duration) {
	h.finish(loc, err)

	s.mu.Lock()
	pending := s.pendingLocked()
	s.mu.Unlock()
	metrics.SetBuildsPending(pending)

	if elapsed > 0 {
		metrics.ObserveBuildDuration(elapsed)
	}
	if err != nil {
		metrics.IncBuildsFinished(h.key.Resource, "error")
		s.logger.Error("build failed", "key", h.key.String(), "error", err)
		return
	}
	metrics.IncBuildsFinished(h.key.Resource, "ok")
	s.logger.Info("build finished", "key", h.key.String(), "location", loc,
		"elapsed_sec", elapsed.Seconds())
}

// Poll reports the task state without blocking: (false, "", nil) while
// running, the result once done, and ErrUnknownTask for a key that was
// never submitted.
func (s *Scheduler) Poll(key Key) (bool, string, error) {
	s.mu.Lock()
	h, ok := s.tasks[key]
	s.mu.Unlock()
	if !ok {
		return false, "", ErrUnknownTask
	}
	if !h.completed() {
		return false, "", nil
	}
	return true, h.loc, h.err
}

// Await blocks until the key's task finishes, the timeout elapses, or
// the context is canceled.
func (s *Scheduler) Await(ctx context.Context, key Key, timeout time.Duration) (string, error) {
	s.mu.Lock()
	h, ok := s.tasks[key]
	s.mu.Unlock()
	if !ok {
		return "", ErrUnknownTask
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.loc, h.err
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Pending returns the keys whose tasks have not finished, sorted for
// stable status output.
func (s *Scheduler) Pending() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	for k, h := range s.tasks {
		if !h.completed() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Resource != keys[j].Resource {
			return keys[i].Resource < keys[j].Resource
		}
		return keys[i].DecTenths < keys[j].DecTenths
	})
	return keys
}

// Wait blocks until every submitted task has settled. Meant for
// shutdown, after the tasks' context has been canceled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) pendingLocked() int {
	n := 0
	for _, h := range s.tasks {
		if !h.completed() {
			n++
		}
	}
	return n
}
