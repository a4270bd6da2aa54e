package util

import (
	"context"
	"fmt"
	"time"

	"github.com/elijahnyp/roomsense/imu"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// PointWriter is the slice of the influx write API the sink needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Sink records occupancy transitions and IMU samples as time series. A nil
// *Sink is valid and drops everything.
type Sink struct {
	client influxdb2.Client
	writer PointWriter
}

// NewInfluxSink returns nil when no url is configured.
func NewInfluxSink() (*Sink, error) {
	var cfg InfluxConfig
	if err := Config.UnmarshalKey("influx", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal influx config: %w", err)
	}
	if cfg.URL == "" {
		return nil, nil
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	var w api.WriteAPIBlocking = client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	Logger.Info().Msgf("writing time series to %s bucket %s", cfg.URL, cfg.Bucket)
	return &Sink{client: client, writer: w}, nil
}

func NewSinkWithWriter(w PointWriter) *Sink {
	return &Sink{writer: w}
}

func (s *Sink) Occupancy(ctx context.Context, room, status string, rssi int, at time.Time) {
	if s == nil {
		return
	}
	p := influxdb2.NewPoint("occupancy",
		map[string]string{"room": room},
		map[string]interface{}{"status": status, "rssi": rssi},
		at)
	s.write(ctx, p)
}

// IMU writes one point per sample, spaced by interval ending at "at".
func (s *Sink) IMU(ctx context.Context, source string, samples []imu.Sample, at time.Time, interval time.Duration) {
	if s == nil || len(samples) == 0 {
		return
	}
	points := make([]*write.Point, 0, len(samples))
	for i, smp := range samples {
		ts := at.Add(-time.Duration(len(samples)-1-i) * interval)
		points = append(points, influxdb2.NewPoint("imu",
			map[string]string{"source": source},
			map[string]interface{}{
				"ax": smp.Ax, "ay": smp.Ay, "az": smp.Az,
				"gx": smp.Gx, "gy": smp.Gy, "gz": smp.Gz,
			},
			ts))
	}
	s.write(ctx, points...)
}

func (s *Sink) write(ctx context.Context, points ...*write.Point) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		Logger.Warn().Msgf("influx write failed: %v", err)
	}
}

func (s *Sink) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Close()
}
