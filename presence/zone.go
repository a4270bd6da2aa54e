package presence

import (
	"strings"
	"time"
)

// Zone binds a room to the BLE name of the device whose proximity marks it
// occupied.
type Zone struct {
	Room         string `mapstructure:"room"`
	Target       string `mapstructure:"target"`
	Threshold    int    `mapstructure:"threshold"`
	Cap          int    `mapstructure:"cap"`
	MissLimit    int    `mapstructure:"miss_limit"`
	MissRecovery *bool  `mapstructure:"miss_recovery"`
}

// TrackerConfig fills unset zone fields from defaults.
func (z Zone) TrackerConfig() Config {
	cfg := DefaultConfig()
	if z.Threshold != 0 {
		cfg.Threshold = z.Threshold
	}
	if z.Cap > 0 {
		cfg.Cap = z.Cap
	}
	if z.MissLimit > 0 {
		cfg.MissLimit = z.MissLimit
	}
	if z.MissRecovery != nil {
		cfg.MissRecovery = *z.MissRecovery
	}
	return cfg
}

// Matches reports whether an advertised name belongs to the zone's target.
// Empty names never match.
func (z Zone) Matches(name string) bool {
	if name == "" || z.Target == "" {
		return false
	}
	return strings.Contains(name, z.Target)
}

// Sighting is a single advertisement seen during a scan cycle.
type Sighting struct {
	Address string
	Name    string
	RSSI    int
	SeenAt  time.Time
}

// ObservationFor picks the strongest sighting of the zone's target in a
// cycle, or Missed when the target was not heard.
func (z Zone) ObservationFor(sightings []Sighting) Observation {
	obs := Missed()
	for _, s := range sightings {
		if !z.Matches(s.Name) {
			continue
		}
		if !obs.Observed || s.RSSI > obs.RSSI {
			obs = Seen(s.RSSI)
		}
	}
	return obs
}
