package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "WARN", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLevel(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLevel(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOncePrintsSnapshot(t *testing.T) {
	statusFile := filepath.Join(t.TempDir(), "status.json")
	out, err := execute(t, "--once", "--status-file", statusFile)
	if err != nil {
		t.Fatalf("pointingd --once: %v\n%s", err, out)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	for _, key := range []string{
		"current_lst", "current_utc", "active_calibrator",
		"upcoming_transits", "recent_transits",
		"monitor_healthy", "last_update", "uptime_sec",
	} {
		if _, ok := got[key]; !ok {
			t.Errorf("snapshot missing key %q", key)
		}
	}
	if healthy, ok := got["monitor_healthy"].(bool); !ok || healthy {
		t.Errorf("monitor_healthy = %v, want false for a one-shot snapshot", got["monitor_healthy"])
	}
}

func TestOnceRejectsBadInterval(t *testing.T) {
	out, err := execute(t, "--once", "--update-interval", "-5")
	if err == nil {
		t.Fatalf("expected error for negative interval, got output:\n%s", out)
	}
}

func TestOnceRejectsBadLogLevel(t *testing.T) {
	out, err := execute(t, "--once", "--log-level", "chatty")
	if err == nil {
		t.Fatalf("expected error for bad log level, got output:\n%s", out)
	}
}

func TestTransitsPrintsSchedule(t *testing.T) {
	out, err := execute(t, "transits", "--hours", "24")
	if err != nil {
		t.Fatalf("pointingd transits: %v\n%s", err, out)
	}

	if !strings.Contains(out, "CALIBRATOR") {
		t.Errorf("missing table header:\n%s", out)
	}
	// Every calibrator transits at least once per sidereal day.
	for _, name := range []string{"3C286", "3C48", "3C147", "3C138"} {
		if !strings.Contains(out, name) {
			t.Errorf("schedule missing %s:\n%s", name, out)
		}
	}
}

func TestTransitsRejectsBadHours(t *testing.T) {
	for _, hours := range []string{"0", "-3", "400"} {
		if out, err := execute(t, "transits", "--hours", hours); err == nil {
			t.Errorf("hours=%s: expected error, got output:\n%s", hours, out)
		}
	}
}

func TestVersionPrintsBuildInfo(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("pointingd version: %v", err)
	}
	if !strings.Contains(out, "pointingd") {
		t.Errorf("unexpected version output:\n%s", out)
	}
}
