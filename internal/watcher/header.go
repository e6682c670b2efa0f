package watcher

import (
	"encoding/json"
	"math"
	"os"
	"strings"
)

// HeaderSuffix marks the sidecar files the watcher reads. Every ingested
// visibility file arrives with a small "<stem>.hdr.json" document so the
// pointing can be read without opening the HDF5 payload.
const HeaderSuffix = ".hdr.json"

// IsHeader reports whether the file name is a header sidecar.
func IsHeader(name string) bool {
	return strings.HasSuffix(name, HeaderSuffix)
}

// HeaderReader extracts the pointing declination from a header sidecar.
// A missing file, malformed JSON, or absent or insane dec_deg all mean
// the same expected outcome: no declination.
type HeaderReader struct{}

type header struct {
	DecDeg *float64 `json:"dec_deg"`
}

// ReadDeclination implements pointing.DeclinationReader.
func (HeaderReader) ReadDeclination(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var h header
	if err := json.Unmarshal(data, &h); err != nil || h.DecDeg == nil {
		return 0, false
	}
	dec := *h.DecDeg
	if math.IsNaN(dec) || dec < -90 || dec > 90 {
		return 0, false
	}
	return dec, true
}
