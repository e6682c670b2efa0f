package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dsa110/dsa110-pointing/internal/api"
	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/auth"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
	"github.com/dsa110/dsa110-pointing/internal/monitor"
	"github.com/dsa110/dsa110-pointing/internal/pointing"
	"github.com/dsa110/dsa110-pointing/internal/precompute"
	"github.com/dsa110/dsa110-pointing/internal/scheduler"
	"github.com/dsa110/dsa110-pointing/internal/stream"
	"github.com/dsa110/dsa110-pointing/internal/survey"
	"github.com/dsa110/dsa110-pointing/internal/transit"
	"github.com/dsa110/dsa110-pointing/internal/watcher"
	"github.com/dsa110/dsa110-pointing/web"
)

const shutdownTimeout = 5 * time.Second

func init() {
	f := rootCmd.Flags()
	f.String("status-file", "state/pointing_status.json", "path of the status snapshot JSON")
	f.Float64("update-interval", 60, "status update interval in seconds")
	f.String("log-level", "info", "log level (debug|info|warn|error)")
	f.String("log-file", "", "log destination (default: stderr)")
	f.Bool("once", false, "compute one status snapshot, print it, and exit")
	f.String("http-addr", "", "admin API listen address (empty disables)")
	f.String("watch-dir", "", "ingest spool directory to watch (empty disables)")
	f.String("catalog-dir", "state/catalogs", "directory holding survey strip databases")
	f.String("builder-cmd", "dsa110-catalog-build", "external strip builder command")
	f.Int("build-workers", scheduler.DefaultWorkers, "concurrent catalog strip builds")
	f.Float64("dec-threshold", pointing.DefaultThresholdDeg, "declination change threshold in degrees")
	f.Float64("max-separation", precompute.DefaultMaxSeparationDeg, "widest usable calibrator separation in degrees")
	f.Float64("cache-ttl-min", 60, "calibrator ranking cache TTL in minutes")
	f.Bool("trust-proxy", false, "trust X-Forwarded-For for stream client limits")

	for _, name := range []string{
		"status-file", "update-interval", "log-level", "log-file", "once",
		"http-addr", "watch-dir", "catalog-dir", "builder-cmd",
		"build-workers", "dec-threshold", "max-separation", "cache-ttl-min",
		"trust-proxy",
	} {
		if err := viper.BindPFlag(name, f.Lookup(name)); err != nil {
			slog.Error("binding flag", "flag", name, "error", err)
		}
	}

	// POINTINGD_STATUS_FILE and friends override defaults; flags win.
	viper.SetEnvPrefix("POINTINGD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cat := catalog.Default()
	loc := astro.DSA110

	interval := time.Duration(viper.GetFloat64("update-interval") * float64(time.Second))
	if interval <= 0 {
		return fmt.Errorf("update interval must be positive, got %v", viper.GetFloat64("update-interval"))
	}

	statusPath := viper.GetString("status-file")
	store := monitor.NewStore()
	mon := monitor.New(cat, loc, monitor.Config{Interval: interval},
		monitor.FileSink{Path: statusPath}, store, logger.With("component", "monitor"))

	if viper.GetBool("once") {
		data, err := json.MarshalIndent(mon.Snapshot(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	// The monitor only logs write failures once the loop runs; an
	// unwritable status directory must stop the daemon before that.
	if err := os.MkdirAll(filepath.Dir(statusPath), 0o750); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}
	catalogDir := viper.GetString("catalog-dir")
	if err := os.MkdirAll(catalogDir, 0o750); err != nil {
		return fmt.Errorf("create catalogs directory: %w", err)
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return err
	}

	sel := precompute.NewSelector(cat, loc, viper.GetFloat64("max-separation"),
		logger.With("component", "selector"))
	cache := precompute.NewCache(sel, time.Duration(viper.GetFloat64("cache-ttl-min")*float64(time.Minute)))
	sched := scheduler.New(viper.GetInt("build-workers"), logger.With("component", "scheduler"))
	checker := survey.DirChecker{Dir: catalogDir}
	builder := survey.CommandBuilder{Command: viper.GetString("builder-cmd"), Dir: catalogDir}
	tracker := pointing.NewTracker(cache, sched, checker, builder,
		pointing.Config{ThresholdDeg: viper.GetFloat64("dec-threshold")},
		logger.With("component", "tracker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dir := viper.GetString("watch-dir"); dir != "" {
		w, err := watcher.New(dir, watcher.HeaderReader{}, tracker,
			logger.With("component", "watcher"))
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("ingest watcher exited", "error", err)
			}
		}()
	}

	go mon.Run(ctx)

	// Warm the two-day transit schedule so the first API queries and the
	// first pointing change hit computed tables instead of cold math.
	warm := transit.Schedule(cat, 48*time.Hour, time.Now().UTC(), loc)
	logger.Info("transit schedule warmed", "horizon_hours", 48, "transits", len(warm))

	serveErr := make(chan error, 1)
	var srv *api.Server
	if addr := viper.GetString("http-addr"); addr != "" {
		streamHandler := stream.NewHandler(store,
			stream.Config{TrustProxy: viper.GetBool("trust-proxy")},
			logger.With("component", "stream"))
		ready := func() bool { return mon.Running() && store.Get() != nil }
		srv = api.NewServer(addr, logger, authCfg, store, tracker, cat, loc, ready, streamHandler, web.Content)
		go func() {
			logger.Info("admin API listening", "addr", addr, "auth_enabled", authCfg.Enabled)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	logger.Info("pointingd started",
		"status_file", statusPath,
		"interval_sec", interval.Seconds(),
		"calibrators", cat.Len())

	var fatal error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		fatal = fmt.Errorf("admin server: %w", err)
		stop()
	}

	logger.Info("shutting down")
	mon.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}
	// Builds hold the signal context; after stop they settle fast.
	sched.Wait()
	logger.Info("pointingd stopped")
	return fatal
}

// buildLogger constructs the process logger from the log flags. Logs go
// to stderr by default so --once output stays clean on stdout.
func buildLogger() (*slog.Logger, func(), error) {
	level, err := parseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, nil, err
	}

	out := io.Writer(os.Stderr)
	closeLog := func() {}
	if path := viper.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeLog = func() { f.Close() }
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closeLog, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// loadAuthConfig reads the bearer-token settings from the environment
// (POINTINGD_AUTH_ENABLED, POINTINGD_AUTH_TOKEN). Tokens never travel
// through argv.
func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{Enabled: viper.GetBool("auth-enabled")}
	if cfg.Enabled {
		cfg.Token = viper.GetString("auth-token")
		if cfg.Token == "" {
			return cfg, errors.New("POINTINGD_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return cfg, nil
}
