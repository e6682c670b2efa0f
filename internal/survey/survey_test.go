package survey

import "testing"

func TestCovers(t *testing.T) {
	tests := []struct {
		name     string
		resource Resource
		decDeg   float64
		want     bool
	}{
		{"nvss mid-range", NVSS, 32.0, true},
		{"nvss south limit", NVSS, -40.0, true},
		{"nvss below south limit", NVSS, -40.1, false},
		{"first pole", FIRST, 90.0, true},
		{"vlass deep south", VLASS, -60.0, false},
		{"rax north limit", RAX, 49.9, true},
		{"rax above north limit", RAX, 50.0, false},
		{"rax south pole", RAX, -90.0, true},
		{"atnf south pole", ATNF, -90.0, true},
		{"atnf north pole", ATNF, 90.0, true},
		{"unknown resource", Resource("wenss"), 32.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Covers(tt.resource, tt.decDeg); got != tt.want {
				t.Errorf("Covers(%s, %.1f) = %v, want %v", tt.resource, tt.decDeg, got, tt.want)
			}
		})
	}
}

func TestDefaultResources(t *testing.T) {
	got := DefaultResources()
	want := []Resource{NVSS, FIRST, VLASS}
	if len(got) != len(want) {
		t.Fatalf("DefaultResources() returned %d resources, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DefaultResources()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStripFile(t *testing.T) {
	tests := []struct {
		resource Resource
		decDeg   float64
		want     string
	}{
		{NVSS, 32.0, "nvss_dec+32.0.sqlite3"},
		{NVSS, 32.04, "nvss_dec+32.0.sqlite3"},
		{FIRST, -5.3, "first_dec-5.3.sqlite3"},
		{VLASS, 0.0, "vlass_dec+0.0.sqlite3"},
		{RAX, -89.95, "rax_dec-90.0.sqlite3"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := StripFile(tt.resource, tt.decDeg); got != tt.want {
				t.Errorf("StripFile(%s, %v) = %q, want %q", tt.resource, tt.decDeg, got, tt.want)
			}
		})
	}
}

func TestStripRange(t *testing.T) {
	lo, hi := StripRange(32.0)
	if lo != 26.0 || hi != 38.0 {
		t.Errorf("StripRange(32.0) = (%.1f, %.1f), want (26.0, 38.0)", lo, hi)
	}
}
