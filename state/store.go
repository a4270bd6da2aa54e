package state

import (
	"sort"
	"sync"
	"time"
)

// ZoneStatus is the last known occupancy of one room.
type ZoneStatus struct {
	Room       string    `json:"room"`
	State      string    `json:"state"`
	LastRSSI   int       `json:"last_rssi"`
	Heard      bool      `json:"heard"`
	LastChange time.Time `json:"last_change"`
	LastCycle  time.Time `json:"last_cycle"`
}

// IMUStatus describes the local IMU telemetry session.
type IMUStatus struct {
	Running     bool      `json:"running"`
	Batches     int       `json:"batches"`
	LastPayload string    `json:"last_payload,omitempty"`
	LastBatch   time.Time `json:"last_batch"`
}

// WheelchairStatus describes the BLE wheelchair session.
type WheelchairStatus struct {
	Running      bool      `json:"running"`
	Linked       bool      `json:"linked"`
	Device       string    `json:"device,omitempty"`
	FallStreak   int       `json:"fall_streak"`
	Alerts       int       `json:"alerts"`
	Dropped      int       `json:"dropped"`
	Batches      int       `json:"batches"`
	LastAlert    time.Time `json:"last_alert"`
	LastSampleAt time.Time `json:"last_sample_at"`
}

type Snapshot struct {
	Zones      []ZoneStatus     `json:"zones"`
	IMU        IMUStatus        `json:"imu"`
	Wheelchair WheelchairStatus `json:"wheelchair"`
	Broker     bool             `json:"broker_connected"`
}

// Store is the only state shared between sessions and the monitor server.
type Store struct {
	mu         sync.RWMutex
	zones      map[string]ZoneStatus
	imu        IMUStatus
	wheelchair WheelchairStatus
	broker     bool
}

func NewStore() *Store {
	return &Store{zones: make(map[string]ZoneStatus)}
}

func (s *Store) UpdateZone(room string, fn func(*ZoneStatus)) ZoneStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[room]
	if !ok {
		z = ZoneStatus{Room: room, State: "unknown"}
	}
	fn(&z)
	s.zones[room] = z
	return z
}

func (s *Store) Zone(room string) (ZoneStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[room]
	return z, ok
}

func (s *Store) UpdateIMU(fn func(*IMUStatus)) IMUStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.imu)
	return s.imu
}

func (s *Store) UpdateWheelchair(fn func(*WheelchairStatus)) WheelchairStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.wheelchair)
	return s.wheelchair
}

func (s *Store) SetBroker(connected bool) {
	s.mu.Lock()
	s.broker = connected
	s.mu.Unlock()
}

// Snapshot copies everything, zones sorted by room.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Zones:      make([]ZoneStatus, 0, len(s.zones)),
		IMU:        s.imu,
		Wheelchair: s.wheelchair,
		Broker:     s.broker,
	}
	for _, z := range s.zones {
		snap.Zones = append(snap.Zones, z)
	}
	sort.Slice(snap.Zones, func(i, j int) bool { return snap.Zones[i].Room < snap.Zones[j].Room })
	return snap
}
