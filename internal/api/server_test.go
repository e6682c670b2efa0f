package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/auth"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
	"github.com/dsa110/dsa110-pointing/internal/monitor"
	"github.com/dsa110/dsa110-pointing/internal/pointing"
	"github.com/dsa110/dsa110-pointing/internal/precompute"
	"github.com/dsa110/dsa110-pointing/internal/scheduler"
	"github.com/dsa110/dsa110-pointing/internal/stream"
	"github.com/dsa110/dsa110-pointing/internal/survey"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type noStrips struct{}

func (noStrips) Exists(survey.Resource, float64) (bool, string) { return false, "" }

type noopBuilder struct{}

func (noopBuilder) Build(_ context.Context, r survey.Resource, decDeg, _, _ float64) (string, error) {
	return "/catalogs/" + survey.StripFile(r, decDeg), nil
}

type testEnv struct {
	handler http.Handler
	store   *monitor.Store
	tracker *pointing.Tracker
	sched   *scheduler.Scheduler
}

func newTestEnv(t *testing.T, authCfg auth.Config, ready func() bool) *testEnv {
	t.Helper()
	logger := testLogger()
	cat := catalog.Default()
	sel := precompute.NewSelector(cat, astro.DSA110, 0, logger)
	cache := precompute.NewCache(sel, time.Hour)
	sched := scheduler.New(2, logger)
	tracker := pointing.NewTracker(cache, sched, noStrips{}, noopBuilder{}, pointing.Config{}, logger)
	store := monitor.NewStore()
	streamHandler := stream.NewHandler(store, stream.Config{}, logger)

	web := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<!doctype html><title>pointing</title>")},
		"app.js":     &fstest.MapFile{Data: []byte("// dashboard")},
		"styles.css": &fstest.MapFile{Data: []byte("body{}")},
	}

	srv := NewServer(":0", logger, authCfg, store, tracker, cat, astro.DSA110, ready, streamHandler, web)
	return &testEnv{
		handler: srv.HTTPServer().Handler,
		store:   store,
		tracker: tracker,
		sched:   sched,
	}
}

func (e *testEnv) get(path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestStatusBeforeFirstSnapshot(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, func() bool { return false })

	w := env.get("/api/v1/status", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Error("503 body carries no error field")
	}
}

func TestStatusServesLatestSnapshot(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, func() bool { return true })
	env.store.Set(&monitor.Status{
		CurrentLST:       13.5183,
		CurrentUTC:       time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
		ActiveCalibrator: "3C286",
		MonitorHealthy:   true,
		LastUpdate:       time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
		UptimeSec:        42.0,
	})

	w := env.get("/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["current_lst"] != 13.5183 {
		t.Errorf("current_lst = %v", got["current_lst"])
	}
	if got["active_calibrator"] != "3C286" {
		t.Errorf("active_calibrator = %v", got["active_calibrator"])
	}
	if got["monitor_healthy"] != true {
		t.Errorf("monitor_healthy = %v", got["monitor_healthy"])
	}
}

func TestTransitsQueryValidation(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, func() bool { return true })

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantMin    int // every calibrator transits once per sidereal day
	}{
		{name: "default horizon", query: "", wantStatus: http.StatusOK, wantMin: 6},
		{name: "one hour", query: "?hours=1", wantStatus: http.StatusOK, wantMin: 0},
		{name: "three days", query: "?hours=72", wantStatus: http.StatusOK, wantMin: 18},
		{name: "zero hours", query: "?hours=0", wantStatus: http.StatusBadRequest},
		{name: "beyond cap", query: "?hours=73", wantStatus: http.StatusBadRequest},
		{name: "not a number", query: "?hours=soon", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.get("/api/v1/transits"+tt.query, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.wantStatus == http.StatusBadRequest {
				if resp["error"] == nil {
					t.Error("expected error field in response")
				}
				if resp["max_hours"] == nil {
					t.Error("expected max_hours field in response")
				}
				return
			}
			transits, ok := resp["transits"].([]any)
			if !ok {
				t.Fatalf("transits = %T, want array", resp["transits"])
			}
			if float64(len(transits)) != resp["count"].(float64) {
				t.Errorf("count = %v, transits has %d entries", resp["count"], len(transits))
			}
			if len(transits) < tt.wantMin {
				t.Errorf("got %d transits over %q, want at least %d", len(transits), tt.query, tt.wantMin)
			}
		})
	}
}

func TestTransitsExpandMultiDayHorizon(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, func() bool { return true })

	oneDay := env.get("/api/v1/transits?hours=24", nil)
	threeDays := env.get("/api/v1/transits?hours=72", nil)

	var day, days map[string]any
	json.NewDecoder(oneDay.Body).Decode(&day)
	json.NewDecoder(threeDays.Body).Decode(&days)

	if days["count"].(float64) <= day["count"].(float64) {
		t.Errorf("72h horizon returned %v transits, 24h returned %v", days["count"], day["count"])
	}
}

func TestPointingReflectsTracker(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, func() bool { return true })

	w := env.get("/api/v1/pointing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var before pointing.Status
	if err := json.NewDecoder(w.Body).Decode(&before); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if before.CurrentDecDeg != nil || before.ChangeCount != 0 {
		t.Errorf("pristine pointing status = %+v", before)
	}

	env.tracker.Observe(context.Background(), pointing.Observation{
		DecDeg: 32.0,
		Source: "f1.hdr.json",
		At:     time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
	})
	env.sched.Wait()

	w = env.get("/api/v1/pointing", nil)
	var after pointing.Status
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.CurrentDecDeg == nil || *after.CurrentDecDeg != 32.0 {
		t.Errorf("current_dec_deg = %v, want 32.0", after.CurrentDecDeg)
	}
	if after.ChangeCount != 1 {
		t.Errorf("change_count = %d, want 1", after.ChangeCount)
	}
}

func TestProbes(t *testing.T) {
	ready := false
	env := newTestEnv(t, auth.Config{}, func() bool { return ready })

	if w := env.get("/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", w.Code)
	}
	if w := env.get("/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first snapshot = %d, want 503", w.Code)
	}
	ready = true
	if w := env.get("/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("readyz after first snapshot = %d, want 200", w.Code)
	}
}

func TestDashboardServed(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, func() bool { return true })

	w := env.get("/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); body == "" {
		t.Error("dashboard body is empty")
	}
	if w := env.get("/app.js", nil); w.Code != http.StatusOK {
		t.Errorf("app.js status = %d, want 200", w.Code)
	}
}

func TestAuthGuardsProtectedSurface(t *testing.T) {
	cfg := auth.Config{Enabled: true, Token: "observatory-secret"}
	env := newTestEnv(t, cfg, func() bool { return true })

	// Probes, metrics, dashboard and the read-only status stay public.
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/"} {
		if w := env.get(path, nil); w.Code == http.StatusUnauthorized {
			t.Errorf("%s returned 401 despite exemption", path)
		}
	}

	if w := env.get("/api/v1/pointing", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("pointing without token = %d, want 401", w.Code)
	}
	if w := env.get("/api/v1/pointing", map[string]string{
		"Authorization": "Bearer wrong",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("pointing with wrong token = %d, want 401", w.Code)
	}
	if w := env.get("/api/v1/pointing", map[string]string{
		"Authorization": "Bearer observatory-secret",
	}); w.Code != http.StatusOK {
		t.Errorf("pointing with token = %d, want 200", w.Code)
	}
}
