// Package survey describes the sky-survey catalogs the engine draws
// calibration sources from: which declinations each survey covers, and
// how per-declination strip databases are located and built on disk.
package survey

import "fmt"

// Resource identifies one sky survey.
type Resource string

const (
	NVSS  Resource = "nvss"
	FIRST Resource = "first"
	VLASS Resource = "vlass"
	RAX   Resource = "rax"
	ATNF  Resource = "atnf"
)

// StripHalfWidthDeg is the half-height of a declination strip database.
const StripHalfWidthDeg = 6.0

type span struct {
	lo, hi float64
}

var coverage = map[Resource]span{
	NVSS:  {-40.0, 90.0},
	FIRST: {-40.0, 90.0},
	VLASS: {-40.0, 90.0},
	RAX:   {-90.0, 49.9},
	ATNF:  {-90.0, 90.0},
}

// Covers reports whether the survey observed the given declination.
// Unknown resources cover nothing.
func Covers(r Resource, decDeg float64) bool {
	s, ok := coverage[r]
	if !ok {
		return false
	}
	return decDeg >= s.lo && decDeg <= s.hi
}

// DefaultResources returns the surveys whose strips are built after a
// pointing change.
func DefaultResources() []Resource {
	return []Resource{NVSS, FIRST, VLASS}
}

// All returns every known survey resource.
func All() []Resource {
	return []Resource{NVSS, FIRST, VLASS, RAX, ATNF}
}

// StripRange returns the declination bounds of a strip centered on decDeg.
func StripRange(decDeg float64) (lo, hi float64) {
	return decDeg - StripHalfWidthDeg, decDeg + StripHalfWidthDeg
}

// StripFile returns the canonical strip database filename for a resource
// and center declination, e.g. "nvss_dec+32.0.sqlite3". The declination
// is rounded to 0.1 degree by the format.
func StripFile(r Resource, decDeg float64) string {
	return fmt.Sprintf("%s_dec%+.1f.sqlite3", r, decDeg)
}
