// Package pointing detects significant telescope pointing changes and
// fans out the precompute work they demand: refreshing the calibrator
// ranking for the new declination and queuing catalog strip builds.
package pointing

import (
	"encoding/json"
	"time"
)

// Observation is one declination reading handed to the tracker, usually
// taken from the header of a newly ingested visibility file.
type Observation struct {
	DecDeg float64
	Source string
	At     time.Time
	Force  bool
}

// ChangeEvent records one significant pointing change and the precompute
// work it triggered. Callers must treat returned events as read-only.
type ChangeEvent struct {
	OldDecDeg  *float64 // nil on the first observation
	NewDecDeg  float64
	Timestamp  time.Time
	SourceFile string

	// Precompute results. Calibrator is empty when nothing in the
	// catalog sits close enough to the new pointing.
	Calibrator        string
	CalibratorTransit time.Time
	CalibratorDecDeg  float64
	BuildStarted      bool
	TypesQueued       []string
}

// MarshalJSON emits the pointing-change wire format.
func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	type wire struct {
		OldDecDeg         *float64 `json:"old_dec_deg"`
		NewDecDeg         float64  `json:"new_dec_deg"`
		Timestamp         string   `json:"timestamp"`
		SourceFile        string   `json:"source_file"`
		Calibrator        *string  `json:"precomputed_calibrator"`
		CalibratorTransit *string  `json:"calibrator_transit_utc"`
		CalibratorDecDeg  *float64 `json:"calibrator_dec_deg"`
		BuildStarted      bool     `json:"catalog_build_started"`
		TypesQueued       []string `json:"catalog_types_queued"`
	}

	w := wire{
		OldDecDeg:    e.OldDecDeg,
		NewDecDeg:    e.NewDecDeg,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339),
		SourceFile:   e.SourceFile,
		BuildStarted: e.BuildStarted,
		TypesQueued:  e.TypesQueued,
	}
	if e.Calibrator != "" {
		name := e.Calibrator
		transit := e.CalibratorTransit.UTC().Format(time.RFC3339)
		dec := e.CalibratorDecDeg
		w.Calibrator = &name
		w.CalibratorTransit = &transit
		w.CalibratorDecDeg = &dec
	}
	if w.TypesQueued == nil {
		w.TypesQueued = []string{}
	}
	return json.Marshal(w)
}
