// Package precompute ranks calibrator candidates for a telescope
// declination and caches the ranking so repeat lookups between pointing
// changes cost nothing.
package precompute

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
	"github.com/dsa110/dsa110-pointing/internal/metrics"
	"github.com/dsa110/dsa110-pointing/internal/transit"
)

// DefaultMaxSeparationDeg is the widest declination separation at which a
// calibrator is still considered usable for a pointing.
const DefaultMaxSeparationDeg = 1.5

// Prediction is one ranked calibrator candidate: the transit context for
// the source plus how well it matches the telescope declination.
type Prediction struct {
	Name             string
	RADeg            float64
	DecDeg           float64
	TransitUTC       time.Time
	SecondsToTransit float64
	DecSeparationDeg float64
	ExpectedFluxJy   float64
	Priority         float64
}

// MarshalJSON emits the ranked-candidate wire format.
func (p Prediction) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name             string  `json:"name"`
		RADeg            float64 `json:"ra_deg"`
		DecDeg           float64 `json:"dec_deg"`
		TransitUTC       string  `json:"transit_utc"`
		TimeToTransitSec float64 `json:"time_to_transit_sec"`
		DecSeparationDeg float64 `json:"dec_separation_deg"`
		ExpectedFluxJy   float64 `json:"expected_flux_jy"`
		Priority         float64 `json:"priority_score"`
	}
	return json.Marshal(wire{
		Name:             p.Name,
		RADeg:            p.RADeg,
		DecDeg:           p.DecDeg,
		TransitUTC:       p.TransitUTC.UTC().Format(time.RFC3339),
		TimeToTransitSec: roundTo(p.SecondsToTransit, 1),
		DecSeparationDeg: roundTo(p.DecSeparationDeg, 3),
		ExpectedFluxJy:   p.ExpectedFluxJy,
		Priority:         roundTo(p.Priority, 2),
	})
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Ranker produces ranked calibrator candidates for a declination.
// Selector is the production implementation; tests substitute stubs.
type Ranker interface {
	Rank(targetDecDeg float64, from time.Time) (*Prediction, []Prediction)
}

// Selector ranks the calibrator catalog against a telescope declination.
type Selector struct {
	cat    *catalog.Catalog
	loc    astro.Location
	maxSep float64
	logger *slog.Logger
}

// NewSelector builds a Selector. maxSepDeg <= 0 selects the default limit.
func NewSelector(cat *catalog.Catalog, loc astro.Location, maxSepDeg float64, logger *slog.Logger) *Selector {
	if maxSepDeg <= 0 {
		maxSepDeg = DefaultMaxSeparationDeg
	}
	return &Selector{cat: cat, loc: loc, maxSep: maxSepDeg, logger: logger}
}

// Rank predicts a transit for every catalog entry within the separation
// limit of targetDecDeg and scores each by proximity and imminence:
//
//	priority = (10 - decSeparation) * 10 - hoursToTransit
//
// The result is sorted by descending priority; ties keep catalog order.
// An empty result means no calibrator is close enough, which is an
// expected state for far-south pointings, not an error.
func (s *Selector) Rank(targetDecDeg float64, from time.Time) (*Prediction, []Prediction) {
	metrics.IncSelectorRuns()

	var ranked []Prediction
	for _, c := range s.cat.Entries() {
		sep := math.Abs(c.DecDeg - targetDecDeg)
		if sep > s.maxSep {
			continue
		}
		tp, ok := transit.Predict(s.cat, c.Name, from, s.loc)
		if !ok {
			continue
		}
		hours := tp.SecondsToTransit / 3600.0
		ranked = append(ranked, Prediction{
			Name:             c.Name,
			RADeg:            c.RADeg,
			DecDeg:           c.DecDeg,
			TransitUTC:       tp.TransitUTC,
			SecondsToTransit: tp.SecondsToTransit,
			DecSeparationDeg: sep,
			ExpectedFluxJy:   c.Flux1400Jy,
			Priority:         (10-sep)*10 - hours,
		})
	}

	if len(ranked) == 0 {
		s.logger.Warn("no calibrators near pointing",
			"dec_deg", targetDecDeg,
			"max_separation_deg", s.maxSep)
		return nil, nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})
	return &ranked[0], ranked
}
