package survey

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Checker reports whether a strip database already exists for a resource
// and declination, and where it was found.
type Checker interface {
	Exists(r Resource, decDeg float64) (bool, string)
}

// DirChecker looks for strip databases in a single catalogs directory.
// An exact filename match wins; otherwise the nearest strip within
// MaxSkewDeg of the requested declination is accepted, so a pointing at
// 32.04 still finds the strip built for 32.0.
type DirChecker struct {
	Dir        string
	MaxSkewDeg float64 // tolerance for nearest match; <= 0 means 1.0
}

func (c DirChecker) skew() float64 {
	if c.MaxSkewDeg > 0 {
		return c.MaxSkewDeg
	}
	return 1.0
}

// Exists implements Checker.
func (c DirChecker) Exists(r Resource, decDeg float64) (bool, string) {
	exact := filepath.Join(c.Dir, StripFile(r, decDeg))
	if _, err := os.Stat(exact); err == nil {
		return true, exact
	}

	matches, err := filepath.Glob(filepath.Join(c.Dir, string(r)+"_dec*.sqlite3"))
	if err != nil || len(matches) == 0 {
		return false, ""
	}

	prefix := string(r) + "_dec"
	best := ""
	bestDiff := math.Inf(1)
	for _, m := range matches {
		stem := strings.TrimSuffix(filepath.Base(m), ".sqlite3")
		decStr := strings.TrimPrefix(stem, prefix)
		fileDec, err := strconv.ParseFloat(strings.TrimPrefix(decStr, "+"), 64)
		if err != nil {
			continue
		}
		diff := math.Abs(fileDec - decDeg)
		if diff < bestDiff && diff <= c.skew() {
			bestDiff = diff
			best = m
		}
	}
	if best == "" {
		return false, ""
	}
	return true, best
}
