package util

import (
	"reflect"
	"testing"

	"github.com/elijahnyp/roomsense/presence"
)

func setZones(t *testing.T, zones []map[string]interface{}) {
	t.Helper()
	Config.Set("presence.zones", zones)
	Config.Set("topics", map[string]interface{}{
		"imu":     "ton/server/m5",
		"devices": "ton/server/devices",
		"post":    "ton/server/post",
		"get":     "ton/server/get",
		"online":  "ton/server/online",
	})
	t.Cleanup(func() {
		Config.Set("presence.zones", nil)
		Config.Set("topics", nil)
	})
}

func TestModel_BuildModel(t *testing.T) {
	tests := []struct {
		name      string
		zones     []map[string]interface{}
		expectErr bool
		rooms     []string
	}{
		{
			name: "two zones",
			zones: []map[string]interface{}{
				{"room": "kitchen", "target": "Mi Smart Band 5"},
				{"room": "bedroom", "target": "M5", "threshold": -70},
			},
			rooms: []string{"kitchen", "bedroom"},
		},
		{
			name:      "missing target",
			zones:     []map[string]interface{}{{"room": "kitchen"}},
			expectErr: true,
		},
		{
			name: "duplicate room",
			zones: []map[string]interface{}{
				{"room": "kitchen", "target": "a"},
				{"room": "kitchen", "target": "b"},
			},
			expectErr: true,
		},
		{
			name:  "no zones",
			zones: []map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setZones(t, tt.zones)
			var m Model
			err := m.BuildModel()
			if (err != nil) != tt.expectErr {
				t.Fatalf("BuildModel() error = %v, expectErr %v", err, tt.expectErr)
			}
			if tt.expectErr {
				return
			}
			if !reflect.DeepEqual(m.Rooms(), tt.rooms) {
				t.Errorf("Rooms() = %v, expected %v", m.Rooms(), tt.rooms)
			}
			if m.Topics.Devices != "ton/server/devices" || m.Topics.IMU != "ton/server/m5" {
				t.Errorf("unexpected topics: %+v", m.Topics)
			}
		})
	}
}

func TestModel_ZoneOverrides(t *testing.T) {
	setZones(t, []map[string]interface{}{
		{"room": "bedroom", "target": "M5", "threshold": -70, "miss_recovery": false},
	})
	var m Model
	if err := m.BuildModel(); err != nil {
		t.Fatalf("BuildModel() error: %v", err)
	}
	z, ok := m.FindZone("bedroom")
	if !ok {
		t.Fatal("bedroom not found")
	}
	cfg := z.TrackerConfig()
	if cfg.Threshold != -70 || cfg.MissRecovery {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Cap != presence.DefaultConfig().Cap {
		t.Errorf("Cap = %d, expected default", cfg.Cap)
	}
}

func TestModel_FindZone(t *testing.T) {
	m := Model{Zones: []presence.Zone{{Room: "kitchen", Target: "band"}}}

	if z, ok := m.FindZone("kitchen"); !ok || z.Target != "band" {
		t.Errorf("FindZone(kitchen) = %+v, %v", z, ok)
	}
	if _, ok := m.FindZone("attic"); ok {
		t.Error("FindZone(attic) should not match")
	}
}

func TestModel_SubscribeTopics(t *testing.T) {
	tests := []struct {
		name     string
		topics   Topics
		expected []string
	}{
		{"get topic set", Topics{Get: "ton/server/get"}, []string{"ton/server/get"}},
		{"no get topic", Topics{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Model{Topics: tt.topics}
			if got := m.SubscribeTopics(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SubscribeTopics() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
