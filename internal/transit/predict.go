// Package transit predicts meridian transits of catalog calibrators for a
// fixed drift-scan site. A transit happens when the local sidereal time equals
// the calibrator's right ascension; the prediction converts the sidereal wait
// into solar time and classifies how imminent the transit is.
package transit

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
)

// Prediction status values. Completed is only ever assigned by the monitor's
// recent-transit bookkeeping, never by Predict.
const (
	StatusScheduled  = "scheduled"
	StatusUpcoming   = "upcoming"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Sidereal-hour thresholds for status classification.
const (
	inProgressHours = 0.1 // ~6 minutes of sidereal time
	upcomingHours   = 1.0
)

// Prediction describes the next meridian transit of one calibrator.
// Instances are created fresh per call and never mutated.
type Prediction struct {
	Calibrator       string
	RADeg            float64
	DecDeg           float64
	TransitUTC       time.Time
	SecondsToTransit float64 // solar seconds, >= 0, < one sidereal day
	LSTAtTransit     float64 // hours; equals RA/15 by construction
	ElevationDeg     float64 // elevation at the transit instant
	Status           string
}

// MarshalJSON emits the status-file wire form: fixed field names, seconds to
// one decimal, LST to four, elevation to two.
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Calibrator         string  `json:"calibrator"`
		RADeg              float64 `json:"ra_deg"`
		DecDeg             float64 `json:"dec_deg"`
		TransitUTC         string  `json:"transit_utc"`
		TimeToTransitSec   float64 `json:"time_to_transit_sec"`
		LSTAtTransit       float64 `json:"lst_at_transit"`
		ElevationAtTransit float64 `json:"elevation_at_transit"`
		Status             string  `json:"status"`
	}{
		Calibrator:         p.Calibrator,
		RADeg:              p.RADeg,
		DecDeg:             p.DecDeg,
		TransitUTC:         p.TransitUTC.UTC().Format(time.RFC3339),
		TimeToTransitSec:   roundTo(p.SecondsToTransit, 1),
		LSTAtTransit:       roundTo(p.LSTAtTransit, 4),
		ElevationAtTransit: roundTo(p.ElevationDeg, 2),
		Status:             p.Status,
	})
}

func roundTo(v float64, places int) float64 {
	k := math.Pow(10, float64(places))
	return math.Round(v*k) / k
}

// Predict computes the next transit of the named calibrator after from.
// Returns (zero, false) only when the name is not in the catalog; all
// astronomical inputs are accepted as-is.
func Predict(cat *catalog.Catalog, name string, from time.Time, loc astro.Location) (Prediction, bool) {
	entry, ok := cat.Lookup(name)
	if !ok {
		return Prediction{}, false
	}
	return predictEntry(entry, from, loc), true
}

// predictEntry is the unconditional core shared by Predict and Upcoming.
func predictEntry(entry catalog.Calibrator, from time.Time, loc astro.Location) Prediction {
	lstHours := astro.LST(from, loc.LonDeg)
	raHours := entry.RADeg / 15.0

	// Sidereal hours until LST next equals the calibrator RA, wrapping into
	// the next cycle if the transit already passed.
	deltaHours := raHours - lstHours
	if deltaHours < 0 {
		deltaHours += 24.0
	}

	solarHours := deltaHours * astro.SiderealToSolar
	transitAt := from.Add(time.Duration(solarHours * float64(time.Hour)))

	status := StatusScheduled
	switch {
	case deltaHours < inProgressHours:
		status = StatusInProgress
	case deltaHours < upcomingHours:
		status = StatusUpcoming
	}

	return Prediction{
		Calibrator:       entry.Name,
		RADeg:            entry.RADeg,
		DecDeg:           entry.DecDeg,
		TransitUTC:       transitAt,
		SecondsToTransit: solarHours * 3600.0,
		LSTAtTransit:     raHours,
		ElevationDeg:     astro.Elevation(entry.RADeg, entry.DecDeg, transitAt, loc),
		Status:           status,
	}
}

// Upcoming predicts every catalog entry's next transit and keeps those that
// fall within from+horizon, sorted ascending by transit instant. The result
// is idempotent for a fixed from.
func Upcoming(cat *catalog.Catalog, horizon time.Duration, from time.Time, loc astro.Location) []Prediction {
	cutoff := from.Add(horizon)

	preds := make([]Prediction, 0, cat.Len())
	for _, entry := range cat.Entries() {
		p := predictEntry(entry, from, loc)
		if !p.TransitUTC.After(cutoff) {
			preds = append(preds, p)
		}
	}

	sort.Slice(preds, func(i, j int) bool {
		return preds[i].TransitUTC.Before(preds[j].TransitUTC)
	})
	return preds
}

// Active returns the calibrator whose transit is within window of from, either
// just ahead or just passed. The just-passed case shows up as a wait of almost
// a full sidereal day, so anything above 23 hours is re-read as time since the
// previous transit.
func Active(cat *catalog.Catalog, window time.Duration, from time.Time, loc astro.Location) (string, bool) {
	windowSec := window.Seconds()

	for _, p := range Upcoming(cat, 24*time.Hour, from, loc) {
		if p.SecondsToTransit < windowSec {
			return p.Calibrator, true
		}
		if p.SecondsToTransit > 23*3600 {
			sinceSec := 24*3600 - p.SecondsToTransit
			if sinceSec < windowSec {
				return p.Calibrator, true
			}
		}
	}
	return "", false
}

// Schedule expands every calibrator's successive transits over the given span,
// sorted ascending. Used for startup warmup and the transits subcommand.
func Schedule(cat *catalog.Catalog, span time.Duration, from time.Time, loc astro.Location) []Prediction {
	cutoff := from.Add(span)

	var preds []Prediction
	for _, entry := range cat.Entries() {
		current := from
		for current.Before(cutoff) {
			p := predictEntry(entry, current, loc)
			if p.TransitUTC.After(cutoff) {
				break
			}
			preds = append(preds, p)
			// Step past this transit before looking for the next one.
			current = p.TransitUTC.Add(10 * time.Minute)
		}
	}

	sort.Slice(preds, func(i, j int) bool {
		return preds[i].TransitUTC.Before(preds[j].TransitUTC)
	})
	return preds
}
