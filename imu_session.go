package main

import (
	"context"
	"time"

	"github.com/elijahnyp/roomsense/imu"
	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
)

type IMUConfig struct {
	I2CBus        string `mapstructure:"i2c_bus"`
	Address       uint16 `mapstructure:"address"`
	IntervalMs    int    `mapstructure:"interval_ms"`
	BatchSize     int    `mapstructure:"batch_size"`
	Suffix        string `mapstructure:"suffix"`
	AdvertiseName string `mapstructure:"advertise_name"`
}

// IMUSession polls a local IMU and publishes fixed-size batches.
type IMUSession struct {
	sessionDeps
	source   imu.Source
	batch    *imu.Batch
	suffix   string
	topic    string
	interval time.Duration
	inbound  chan string
}

func NewIMUSession(cfg IMUConfig, m Model, source imu.Source, deps sessionDeps) *IMUSession {
	s := &IMUSession{
		sessionDeps: deps,
		source:      source,
		batch:       imu.NewBatch(cfg.BatchSize),
		suffix:      cfg.Suffix,
		topic:       m.Topics.IMU,
		interval:    time.Duration(cfg.IntervalMs) * time.Millisecond,
		inbound:     make(chan string, 8),
	}
	if s.interval <= 0 {
		s.interval = 100 * time.Millisecond
	}
	return s
}

func (s *IMUSession) Run(ctx context.Context) error {
	Logger.Info().Msgf("imu session publishing batches of %d to %s", s.batch.Cap(), s.topic)
	s.store.UpdateIMU(func(st *state.IMUStatus) { st.Running = true })
	defer s.store.UpdateIMU(func(st *state.IMUStatus) { st.Running = false })
	for {
		if err := s.tick(ctx); err != nil {
			return err
		}
		if err := sleepCtx(ctx, s.interval); err != nil {
			return err
		}
	}
}

func (s *IMUSession) tick(ctx context.Context) error {
	if _, err := s.conn.Ensure(ctx); err != nil {
		return err
	}
	drainLogged("imu", s.inbound)
	s.Poll(ctx)
	return nil
}

// Poll reads one sample and publishes when it completes a batch.
func (s *IMUSession) Poll(ctx context.Context) {
	sample, err := s.source.Read()
	if err != nil {
		Logger.Warn().Msgf("imu read failed: %v", err)
		return
	}
	Logger.Trace().Msgf("ax: %.2f, ay: %.2f, az: %.2f, gx: %.2f, gy: %.2f, gz: %.2f",
		sample.Ax, sample.Ay, sample.Az, sample.Gx, sample.Gy, sample.Gz)
	if s.batch.Push(sample) {
		s.flush(ctx)
	}
}

// flush drains first so a failed publish still starts a fresh batch.
func (s *IMUSession) flush(ctx context.Context) {
	samples := s.batch.Drain()
	payload := imu.FormatBatch(samples, s.suffix)
	if err := s.publish(s.topic, payload); err != nil {
		Logger.Warn().Msgf("Publish failed: %v", err)
		return
	}
	Logger.Debug().Msgf("Publish success: %s", payload)
	now := s.clock()
	s.store.UpdateIMU(func(st *state.IMUStatus) {
		st.Batches++
		st.LastPayload = payload
		st.LastBatch = now
	})
	s.sink.IMU(ctx, "imu", samples, now, s.interval)
	s.hub.BroadcastUpdate("imu_batch", payload)
}
