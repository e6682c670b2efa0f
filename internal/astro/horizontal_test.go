package astro

import (
	"math"
	"testing"
	"time"
)

// TestElevationAtMeridian verifies the drift-scan identity: a source on the
// meridian (hour angle zero) sits at elevation 90 - |lat - dec|.
func TestElevationAtMeridian(t *testing.T) {
	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	lst := LST(at, DSA110.LonDeg)
	ra := lst * 15.0 // on the meridian right now

	tests := []struct {
		name   string
		decDeg float64
	}{
		{"at site latitude", DSA110.LatDeg},
		{"north of site", 55.575},
		{"south of site", 16.6394},
		{"celestial equator", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Elevation(ra, tt.decDeg, at, DSA110)
			want := 90.0 - math.Abs(DSA110.LatDeg-tt.decDeg)
			if math.Abs(got-want) > 0.01 {
				t.Errorf("Elevation(ha=0, dec=%.4f) = %.4f, want %.4f", tt.decDeg, got, want)
			}
		})
	}
}

// TestElevationBelowHorizon checks that anti-meridian positions report
// negative elevation rather than clamping at zero.
func TestElevationBelowHorizon(t *testing.T) {
	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	lst := LST(at, DSA110.LonDeg)
	ra := math.Mod(lst*15.0+180.0, 360.0) // lower culmination

	got := Elevation(ra, -40.0, at, DSA110)
	if got >= 0 {
		t.Errorf("Elevation at lower culmination = %.2f, want negative", got)
	}
}

// TestHourAngleNormalization checks the [-180, 180) window.
func TestHourAngleNormalization(t *testing.T) {
	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	for ra := 0.0; ra < 360.0; ra += 30.0 {
		ha := HourAngle(ra, at, DSA110)
		if ha < -180 || ha >= 180 {
			t.Fatalf("HourAngle(ra=%v) = %v, out of [-180,180)", ra, ha)
		}
	}
}

// TestElevationContinuity sweeps a full day in coarse steps and confirms the
// elevation of a fixed source never jumps discontinuously (catches hour-angle
// wrap bugs).
func TestElevationContinuity(t *testing.T) {
	const stepMin = 10
	start := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	prev := Elevation(202.7845, 30.5092, start, DSA110)
	for i := 1; i <= 24*60/stepMin; i++ {
		at := start.Add(time.Duration(i*stepMin) * time.Minute)
		el := Elevation(202.7845, 30.5092, at, DSA110)
		// 10 minutes of Earth rotation moves a source by at most ~2.5 deg of
		// elevation at this latitude.
		if math.Abs(el-prev) > 5.0 {
			t.Fatalf("elevation jumped %.2f -> %.2f at %v", prev, el, at)
		}
		prev = el
	}
}
