package main

import (
	"context"
	"time"

	"github.com/elijahnyp/roomsense/ble"
	"github.com/elijahnyp/roomsense/imu"
	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
)

type WheelchairConfig struct {
	Target        string  `mapstructure:"target"`
	ScanTime      int     `mapstructure:"scan_time"`
	IntervalMs    int     `mapstructure:"interval_ms"`
	LinkTimeout   int     `mapstructure:"link_timeout"`
	BatchSize     int     `mapstructure:"batch_size"`
	Suffix        string  `mapstructure:"suffix"`
	FallThreshold float64 `mapstructure:"fall_threshold"`
	FallCount     int     `mapstructure:"fall_count"`
	AlertMessage  string  `mapstructure:"alert_message"`
	ForwardRaw    bool    `mapstructure:"forward_raw"`
}

// wheelchairLink finds the wheelchair unit and streams its notifications.
type wheelchairLink interface {
	Open(ctx context.Context, out chan<- []byte) (device string, err error)
	Close()
}

// uartLink adapts ble.UARTClient to wheelchairLink.
type uartLink struct {
	client *ble.UARTClient
}

func (l *uartLink) Open(ctx context.Context, out chan<- []byte) (string, error) {
	result, err := l.client.Find(ctx)
	if err != nil {
		return "", err
	}
	if err := l.client.Connect(result, out); err != nil {
		return "", err
	}
	return result.LocalName(), nil
}

func (l *uartLink) Close() { l.client.Disconnect() }

// WheelchairSession consumes IMU notifications from a BLE unit, watches for
// falls and batches telemetry onto the post topic.
type WheelchairSession struct {
	sessionDeps
	cfg           WheelchairConfig
	link          wheelchairLink
	alerts        alerter
	batch         *imu.Batch
	detector      *imu.FallDetector
	topic         string
	interval      time.Duration
	linkTimeout   time.Duration
	linked        bool
	lastHeard     time.Time
	notifications chan []byte
	inbound       chan string
}

func NewWheelchairSession(cfg WheelchairConfig, m Model, link wheelchairLink, alerts alerter, deps sessionDeps) *WheelchairSession {
	if cfg.AlertMessage == "" {
		cfg.AlertMessage = "Alert Wheelchair has Fallen"
	}
	s := &WheelchairSession{
		sessionDeps:   deps,
		cfg:           cfg,
		link:          link,
		alerts:        alerts,
		batch:         imu.NewBatch(cfg.BatchSize),
		detector:      imu.NewFallDetector(cfg.FallThreshold, cfg.FallCount),
		topic:         m.Topics.Post,
		interval:      time.Duration(cfg.IntervalMs) * time.Millisecond,
		linkTimeout:   time.Duration(cfg.LinkTimeout) * time.Second,
		notifications: make(chan []byte, 64),
		inbound:       make(chan string, 8),
	}
	if s.interval <= 0 {
		s.interval = 100 * time.Millisecond
	}
	return s
}

func (s *WheelchairSession) Run(ctx context.Context) error {
	Logger.Info().Msgf("wheelchair session watching %q", s.cfg.Target)
	s.store.UpdateWheelchair(func(st *state.WheelchairStatus) { st.Running = true })
	defer func() {
		s.unlink("shutdown")
		s.store.UpdateWheelchair(func(st *state.WheelchairStatus) { st.Running = false })
	}()
	for {
		if err := s.tick(ctx); err != nil {
			return err
		}
		if err := sleepCtx(ctx, s.interval); err != nil {
			return err
		}
	}
}

func (s *WheelchairSession) tick(ctx context.Context) error {
	if _, err := s.conn.Ensure(ctx); err != nil {
		return err
	}
	s.relayInbound()
	if !s.linked {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			Logger.Warn().Msgf("wheelchair link failed: %v", err)
			return nil
		}
	}
	s.drainNotifications(ctx)
	if s.linkTimeout > 0 && s.clock().Sub(s.lastHeard) > s.linkTimeout {
		s.unlink("no notifications for " + s.linkTimeout.String())
	}
	return nil
}

func (s *WheelchairSession) connect(ctx context.Context) error {
	device, err := s.link.Open(ctx, s.notifications)
	if err != nil {
		return err
	}
	s.linked = true
	s.lastHeard = s.clock()
	s.store.UpdateWheelchair(func(st *state.WheelchairStatus) {
		st.Linked = true
		st.Device = device
	})
	s.hub.BroadcastUpdate("wheelchair_link", map[string]interface{}{"linked": true, "device": device})
	return nil
}

func (s *WheelchairSession) unlink(reason string) {
	if !s.linked {
		return
	}
	Logger.Info().Msgf("wheelchair link dropped: %s", reason)
	s.link.Close()
	s.linked = false
	s.store.UpdateWheelchair(func(st *state.WheelchairStatus) { st.Linked = false })
	s.hub.BroadcastUpdate("wheelchair_link", map[string]interface{}{"linked": false})
}

func (s *WheelchairSession) relayInbound() {
	for {
		select {
		case msg := <-s.inbound:
			if !s.alerts.Enqueue(msg) {
				Logger.Warn().Msg("relay dropped, notifier queue full")
			}
		default:
			return
		}
	}
}

func (s *WheelchairSession) drainNotifications(ctx context.Context) {
	for {
		select {
		case payload := <-s.notifications:
			s.lastHeard = s.clock()
			s.HandleNotification(ctx, payload)
		default:
			return
		}
	}
}

// HandleNotification processes one BLE payload. Malformed JSON is forwarded
// raw (if enabled) but leaves the batch and fall detector untouched.
func (s *WheelchairSession) HandleNotification(ctx context.Context, payload []byte) {
	if s.cfg.ForwardRaw {
		if err := s.publish(s.topic, payload); err != nil {
			Logger.Debug().Msgf("raw forward failed: %v", err)
		}
	}

	sample, err := imu.ParseNotification(payload)
	if err != nil {
		Logger.Warn().Msgf("deserialize failed: %v", err)
		s.store.UpdateWheelchair(func(st *state.WheelchairStatus) { st.Dropped++ })
		return
	}
	now := s.clock()

	if s.detector.Check(sample.Az) {
		s.alert(now)
	}

	if s.batch.Push(sample) {
		s.flush(ctx, now)
	}
	s.store.UpdateWheelchair(func(st *state.WheelchairStatus) {
		st.FallStreak = s.detector.Streak()
		st.LastSampleAt = now
	})
}

func (s *WheelchairSession) alert(now time.Time) {
	Logger.Warn().Msgf("fall detected after %d samples", s.detector.Streak())
	s.alerts.Enqueue(s.cfg.AlertMessage)
	s.store.UpdateWheelchair(func(st *state.WheelchairStatus) {
		st.Alerts++
		st.LastAlert = now
	})
	s.hub.BroadcastUpdate("fall_alert", s.cfg.AlertMessage)
}

func (s *WheelchairSession) flush(ctx context.Context, now time.Time) {
	samples := s.batch.Drain()
	payload := imu.FormatBatch(samples, s.cfg.Suffix)
	if err := s.publish(s.topic, payload); err != nil {
		Logger.Warn().Msgf("batch publish failed: %v", err)
		return
	}
	s.store.UpdateWheelchair(func(st *state.WheelchairStatus) { st.Batches++ })
	s.sink.IMU(ctx, "wheelchair", samples, now, s.interval)
	s.hub.BroadcastUpdate("wheelchair_batch", payload)
}
