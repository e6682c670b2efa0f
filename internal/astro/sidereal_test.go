package astro

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// TestJulianDate pins the conversion against published epoch values.
func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"Unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		{"leap day 2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 2460369.5},
		// Vallado Example 3-15: 2004 April 6, 07:51:28.386 UTC.
		{"Vallado example", time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC), 2453101.827411875},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.at)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("JulianDate(%v) = %.9f, want %.9f", tt.at, got, tt.want)
			}
		})
	}
}

// TestGMST cross-checks our IAU-82 implementation against go-satellite's
// GSTimeFromDate, which implements the same model independently.
func TestGMST(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Vallado example", time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)}, // integer seconds for the library
		{"recent date", time.Date(2026, 8, 25, 4, 1, 0, 0, time.UTC)},
		{"southern summer", time.Date(2025, 12, 21, 18, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := GMST(tt.at)
			// GSTimeFromDate returns GMST in radians too.
			ref := satellite.GSTimeFromDate(
				tt.at.Year(), int(tt.at.Month()), tt.at.Day(),
				tt.at.Hour(), tt.at.Minute(), tt.at.Second(),
			)

			// 1e-8 radians is about 0.06 arcsec, well inside float noise.
			if diff := math.Abs(our - ref); diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", tt.at, our, ref, diff)
			}
		})
	}
}

// TestLSTRange checks that LST stays in [0, 24) across a sweep of instants
// and longitudes, including the far-west and far-east extremes.
func TestLSTRange(t *testing.T) {
	longitudes := []float64{-180, -118.2817, -0.1, 0, 13.5, 179.9}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, lon := range longitudes {
		for i := 0; i < 48; i++ {
			at := start.Add(time.Duration(i) * 7 * time.Hour)
			lst := LST(at, lon)
			if lst < 0 || lst >= 24 {
				t.Fatalf("LST(%v, %v) = %v, out of [0,24)", at, lon, lst)
			}
		}
	}
}

// TestLSTAdvancesFasterThanSolar verifies the sidereal rate: over one solar
// hour LST advances by ~1.0027 sidereal hours.
func TestLSTAdvancesFasterThanSolar(t *testing.T) {
	at := time.Date(2026, 3, 20, 6, 0, 0, 0, time.UTC)
	lst0 := LST(at, DSA110.LonDeg)
	lst1 := LST(at.Add(time.Hour), DSA110.LonDeg)

	delta := math.Mod(lst1-lst0+24, 24)
	want := 1.0 / SiderealToSolar // ≈ 1.0027379
	if math.Abs(delta-want) > 1e-4 {
		t.Errorf("LST advance over 1 solar hour = %.7f sidereal hours, want %.7f", delta, want)
	}
}
