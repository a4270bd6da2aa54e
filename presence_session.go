package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elijahnyp/roomsense/presence"
	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
)

// Scanner runs one bounded BLE scan.
type Scanner interface {
	Cycle(ctx context.Context, window time.Duration) ([]presence.Sighting, error)
}

type PresenceConfig struct {
	ScanTime     int `mapstructure:"scan_time"`
	CycleDelayMs int `mapstructure:"cycle_delay_ms"`
}

type zoneTracker struct {
	zone    presence.Zone
	tracker *presence.Tracker
}

// occupancyMessage field order is the wire order.
type occupancyMessage struct {
	Room   string `json:"room"`
	Status string `json:"status"`
}

// PresenceSession scans once per cycle and feeds every zone's tracker.
type PresenceSession struct {
	sessionDeps
	scanner Scanner
	zones   []zoneTracker
	topic   string
	window  time.Duration
	delay   time.Duration
	inbound chan string
}

func NewPresenceSession(cfg PresenceConfig, m Model, scanner Scanner, deps sessionDeps) *PresenceSession {
	s := &PresenceSession{
		sessionDeps: deps,
		scanner:     scanner,
		topic:       m.Topics.Devices,
		window:      time.Duration(cfg.ScanTime) * time.Second,
		delay:       time.Duration(cfg.CycleDelayMs) * time.Millisecond,
		inbound:     make(chan string, 8),
	}
	if s.window <= 0 {
		s.window = 2 * time.Second
	}
	for _, z := range m.Zones {
		s.zones = append(s.zones, zoneTracker{zone: z, tracker: presence.NewTracker(z.TrackerConfig())})
		s.store.UpdateZone(z.Room, func(*state.ZoneStatus) {})
	}
	return s
}

func (s *PresenceSession) Run(ctx context.Context) error {
	Logger.Info().Msgf("presence session tracking %d zones on %s", len(s.zones), s.topic)
	for {
		if err := s.tick(ctx); err != nil {
			return err
		}
		if err := sleepCtx(ctx, s.delay); err != nil {
			return err
		}
	}
}

func (s *PresenceSession) tick(ctx context.Context) error {
	reconnected, err := s.conn.Ensure(ctx)
	if err != nil {
		return err
	}
	if reconnected {
		s.resetStreaks()
	}
	drainLogged("presence", s.inbound)
	s.Cycle(ctx)
	return nil
}

// resetStreaks runs after a broker outage. Published state survives so a
// room that was "in" is not announced again.
func (s *PresenceSession) resetStreaks() {
	Logger.Debug().Msg("broker was lost, resetting presence streaks")
	for _, zt := range s.zones {
		zt.tracker.ResetStreaks()
	}
}

// Cycle scans once and steps every tracker. A failed scan is skipped rather
// than counted as a miss.
func (s *PresenceSession) Cycle(ctx context.Context) {
	sightings, err := s.scanner.Cycle(ctx, s.window)
	if err != nil {
		if ctx.Err() == nil {
			Logger.Warn().Msgf("presence scan failed: %v", err)
		}
		return
	}
	now := s.clock()
	for _, zt := range s.zones {
		obs := zt.zone.ObservationFor(sightings)
		tr := zt.tracker.Step(obs)
		if obs.Observed {
			Logger.Trace().Msgf("%s: %s rssi %d", zt.zone.Room, zt.zone.Target, obs.RSSI)
		}
		s.record(zt, obs, tr, now)
		if tr != presence.None {
			s.announce(ctx, zt.zone.Room, tr, obs, now)
		}
	}
}

func (s *PresenceSession) record(zt zoneTracker, obs presence.Observation, tr presence.Transition, now time.Time) {
	s.store.UpdateZone(zt.zone.Room, func(z *state.ZoneStatus) {
		z.State = zt.tracker.State().String()
		z.Heard = obs.Observed
		if obs.Observed {
			z.LastRSSI = obs.RSSI
		}
		z.LastCycle = now
		if tr != presence.None {
			z.LastChange = now
		}
	})
}

func (s *PresenceSession) announce(ctx context.Context, room string, tr presence.Transition, obs presence.Observation, now time.Time) {
	payload, err := json.Marshal(occupancyMessage{Room: room, Status: tr.String()})
	if err != nil {
		Logger.Error().Msgf("Error marshalling occupancy: %v", err)
		return
	}
	if err := s.publish(s.topic, string(payload)); err != nil {
		Logger.Warn().Msgf("publish %s %s failed: %v", room, tr, err)
	} else {
		Logger.Info().Msgf("%s: %s", room, tr)
	}
	s.sink.Occupancy(ctx, room, tr.String(), obs.RSSI, now)
	s.hub.BroadcastUpdate("occupancy", occupancyMessage{Room: room, Status: tr.String()})
}
