// Package astro provides the time and coordinate math for a fixed-site
// drift-scan telescope: Julian dates, mean sidereal time, and the horizontal
// elevation of equatorial sky positions.
package astro

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// SiderealToSolar converts a sidereal-hour interval to solar hours.
// One sidereal hour is approximately 0.9972696 solar hours.
const SiderealToSolar = 0.9972696

// JulianDate converts a UTC time.Time to Julian Date using the standard
// Gregorian-calendar algorithm.
func JulianDate(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// January and February count as months 13 and 14 of the prior year.
	if m <= 2 {
		y -= 1
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0

	return jd
}

// GMST returns Greenwich Mean Sidereal Time in radians at the given
// instant, using the IAU-82 model (Vallado, "Fundamentals of
// Astrodynamics", Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// with T in Julian centuries of UT1 from J2000.0 and the result in
// seconds of time.
func GMST(t time.Time) float64 {
	tc := (JulianDate(t.UTC()) - j2000) / 36525.0

	// 876600 hours is 3155760000 seconds.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tc +
		0.093104*tc*tc -
		6.2e-6*tc*tc*tc

	// Wrap into [0, 86400) seconds of time, then convert to radians.
	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// LST returns local mean sidereal time in hours for the given UTC instant and
// an east-positive longitude in degrees. The result is in [0, 24).
func LST(t time.Time, lonDeg float64) float64 {
	lst := GMST(t)*12.0/math.Pi + lonDeg/15.0
	lst = math.Mod(lst, 24.0)
	if lst < 0 {
		lst += 24.0
	}
	return lst
}
