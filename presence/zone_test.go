package presence

import "testing"

func TestZone_ObservationFor(t *testing.T) {
	zone := Zone{Room: "Bedroom", Target: "M5"}

	tests := []struct {
		name      string
		sightings []Sighting
		expected  Observation
	}{
		{"No sightings", nil, Missed()},
		{"Other devices only", []Sighting{{Name: "Pixel", RSSI: -40}}, Missed()},
		{"Unnamed device skipped", []Sighting{{Name: "", RSSI: -30}}, Missed()},
		{"Single match", []Sighting{{Name: "M5Capsule", RSSI: -70}}, Seen(-70)},
		{
			"Strongest match wins",
			[]Sighting{{Name: "M5Capsule", RSSI: -85}, {Name: "Pixel", RSSI: -20}, {Name: "M5Capsule", RSSI: -62}},
			Seen(-62),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := zone.ObservationFor(tt.sightings)
			if got != tt.expected {
				t.Errorf("ObservationFor() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestZone_TrackerConfig(t *testing.T) {
	off := false
	zone := Zone{Room: "Kitchen", Target: "M5", Threshold: -70, MissRecovery: &off}
	cfg := zone.TrackerConfig()

	if cfg.Threshold != -70 {
		t.Errorf("Threshold = %d, expected -70", cfg.Threshold)
	}
	if cfg.Cap != 3 || cfg.MissLimit != 3 {
		t.Errorf("expected default cap and miss limit, got %d and %d", cfg.Cap, cfg.MissLimit)
	}
	if cfg.MissRecovery {
		t.Error("MissRecovery should be disabled")
	}

	if !(Zone{Target: "M5"}).TrackerConfig().MissRecovery {
		t.Error("MissRecovery should default to enabled")
	}
}

func TestZone_Matches(t *testing.T) {
	if (Zone{Target: ""}).Matches("M5") {
		t.Error("empty target should match nothing")
	}
	if !(Zone{Target: "M5"}).Matches("M5Capsule") {
		t.Error("substring should match")
	}
}
