package util

import (
	"fmt"

	"github.com/elijahnyp/roomsense/presence"
)

type Topics struct {
	IMU     string `mapstructure:"imu"`
	Devices string `mapstructure:"devices"`
	Post    string `mapstructure:"post"`
	Get     string `mapstructure:"get"`
	Online  string `mapstructure:"online"`
}

// Model is the static layout of the deployment: where things are published
// and which rooms are tracked.
type Model struct {
	Topics Topics          `mapstructure:"topics"`
	Zones  []presence.Zone `mapstructure:"zones"`
}

func (m *Model) BuildModel() error {
	var topics Topics
	if err := Config.UnmarshalKey("topics", &topics); err != nil {
		Logger.Error().Msgf("error unmarshaling topics: %v", err)
		return fmt.Errorf("unmarshal topics: %w", err)
	}
	var zones []presence.Zone
	if err := Config.UnmarshalKey("presence.zones", &zones); err != nil {
		Logger.Error().Msgf("error unmarshaling zones: %v", err)
		return fmt.Errorf("unmarshal zones: %w", err)
	}
	seen := make(map[string]bool)
	for i, z := range zones {
		if z.Room == "" || z.Target == "" {
			return fmt.Errorf("zone %d: room and target are required", i)
		}
		if seen[z.Room] {
			return fmt.Errorf("zone %d: duplicate room %q", i, z.Room)
		}
		seen[z.Room] = true
	}
	m.Topics = topics
	m.Zones = zones
	return nil
}

func (m Model) FindZone(room string) (presence.Zone, bool) {
	for _, z := range m.Zones {
		if z.Room == room {
			return z, true
		}
	}
	return presence.Zone{}, false
}

func (m Model) Rooms() []string {
	var rooms []string
	for _, z := range m.Zones {
		rooms = append(rooms, z.Room)
	}
	return rooms
}

func (m Model) SubscribeTopics() []string {
	if m.Topics.Get == "" {
		return nil
	}
	return []string{m.Topics.Get}
}
