// Package watcher feeds the pointing tracker from the ingest spool:
// every new header sidecar in the watched directory becomes one
// declination observation. Jittery or repeated headers are harmless
// because the tracker's change threshold turns them into no-ops.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/pointing"
)

// Observer receives one observation per readable header. The pointing
// tracker is the production implementation.
type Observer interface {
	Observe(ctx context.Context, obs pointing.Observation) *pointing.ChangeEvent
}

// Watcher tails a spool directory for header sidecars.
type Watcher struct {
	dir      string
	reader   pointing.DeclinationReader
	observer Observer
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	now      func() time.Time
}

// New opens a watch on dir. Failing to watch the spool is a startup
// error; the daemon is useless without its input.
func New(dir string, reader pointing.DeclinationReader, observer Observer, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create ingest watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch ingest directory %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		reader:   reader,
		observer: observer,
		fsw:      fsw,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run seeds the tracker from the newest header already on disk, then
// handles filesystem events until the context is canceled. Watch errors
// are logged and the loop keeps going; only closing the watcher ends it
// early.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.seed(ctx)
	w.logger.Info("watching ingest directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			// A sidecar may be created empty and filled by a second
			// write; handling both ops retries the unreadable case.
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.handle(ctx, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("ingest watch error", "error", err)
		}
	}
}

// seed observes the newest sidecar already in the spool so a daemon
// restart recovers the current pointing without waiting for the next
// ingest. Older sidecars are history, not state; replaying them would
// queue catalog builds for pointings the telescope has left.
func (w *Watcher) seed(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("cannot scan ingest directory", "dir", w.dir, "error", err)
		return
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !IsHeader(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		w.logger.Info("no headers in ingest directory yet", "dir", w.dir)
		return
	}
	w.handle(ctx, filepath.Join(w.dir, newest))
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if !IsHeader(filepath.Base(path)) {
		metrics.IncWatcherEvents("skipped")
		return
	}
	dec, ok := w.reader.ReadDeclination(path)
	if !ok {
		metrics.IncWatcherEvents("unreadable")
		w.logger.Debug("no declination in header", "path", path)
		return
	}

	metrics.IncWatcherEvents("observed")
	w.observer.Observe(ctx, pointing.Observation{
		DecDeg: dec,
		Source: path,
		At:     w.now().UTC(),
	})
}
