// Package catalog holds the static flux-calibrator table used by the pointing
// engine. The table is loaded once at process start and never mutated.
package catalog

// Calibrator is one entry in the calibrator table. RA/Dec are J2000 degrees;
// Flux1400Jy is the reference flux density at 1.4 GHz in Jansky (0 = unknown).
type Calibrator struct {
	Name       string
	RADeg      float64
	DecDeg     float64
	Flux1400Jy float64
}

// Catalog is a read-only calibrator table supporting lookup by name and
// deterministic iteration in insertion order. Names are expected to be unique.
type Catalog struct {
	entries []Calibrator
	byName  map[string]int
}

// New builds a catalog from the given entries, preserving their order.
func New(entries []Calibrator) *Catalog {
	c := &Catalog{
		entries: make([]Calibrator, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)
	for i, e := range c.entries {
		c.byName[e.Name] = i
	}
	return c
}

// Default returns the standard DSA-110 calibrator table.
func Default() *Catalog {
	return New([]Calibrator{
		{Name: "3C286", RADeg: 202.7845, DecDeg: 30.5092, Flux1400Jy: 14.65},
		{Name: "3C48", RADeg: 24.4220, DecDeg: 33.1597, Flux1400Jy: 15.67},
		{Name: "3C147", RADeg: 85.6505, DecDeg: 49.8520, Flux1400Jy: 21.64},
		{Name: "3C138", RADeg: 80.2912, DecDeg: 16.6394, Flux1400Jy: 8.23},
		{Name: "J0834+555", RADeg: 128.5813, DecDeg: 55.5750, Flux1400Jy: 5.0},
		{Name: "J1331+3030", RADeg: 202.7845, DecDeg: 30.5092, Flux1400Jy: 14.65},
	})
}

// Lookup returns the entry for the given name.
func (c *Catalog) Lookup(name string) (Calibrator, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Calibrator{}, false
	}
	return c.entries[i], true
}

// Entries returns the table in insertion order. Callers must not modify the
// returned slice.
func (c *Catalog) Entries() []Calibrator {
	return c.entries
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
