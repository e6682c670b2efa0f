package astro

import (
	"math"
	"time"
)

// Location is a fixed observatory site. Longitude is east-positive degrees;
// altitude is meters above sea level (site metadata, not used by the
// plane-trigonometry elevation below).
type Location struct {
	LatDeg float64
	LonDeg float64
	AltM   float64
}

// DSA110 is the DSA-110 site at Owens Valley Radio Observatory.
var DSA110 = Location{LatDeg: 37.2314, LonDeg: -118.2817, AltM: 1222.0}

const degToRad = math.Pi / 180.0

// HourAngle returns the local hour angle of a right ascension at the given
// instant, in degrees normalized to [-180, 180). Zero means the position is
// on the meridian.
func HourAngle(raDeg float64, t time.Time, loc Location) float64 {
	ha := LST(t, loc.LonDeg)*15.0 - raDeg
	ha = math.Mod(ha, 360.0)
	if ha < -180.0 {
		ha += 360.0
	}
	if ha >= 180.0 {
		ha -= 360.0
	}
	return ha
}

// Elevation returns the elevation in degrees of an equatorial position
// (ra/dec in degrees) seen from loc at the given UTC instant. Negative values
// mean the position is below the horizon; callers must not assume positivity.
func Elevation(raDeg, decDeg float64, t time.Time, loc Location) float64 {
	ha := HourAngle(raDeg, t, loc) * degToRad
	dec := decDeg * degToRad
	lat := loc.LatDeg * degToRad

	sinAlt := math.Sin(dec)*math.Sin(lat) + math.Cos(dec)*math.Cos(lat)*math.Cos(ha)

	// Guard against float drift outside Asin's domain.
	if sinAlt > 1.0 {
		sinAlt = 1.0
	} else if sinAlt < -1.0 {
		sinAlt = -1.0
	}

	return math.Asin(sinAlt) / degToRad
}
