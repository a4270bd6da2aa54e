package util

import (
	"context"
	"time"
)

// Reconnector blocks a polling loop until a dependency is reachable again,
// retrying at a fixed interval. Each polling loop owns its own Reconnector.
type Reconnector struct {
	Name      string
	Interval  time.Duration
	Connected func() bool
	Connect   func() error
	// Generation counts successful connects across all callers. When set,
	// a reconnect made by another loop is reported too.
	Generation func() uint64

	seen uint64
}

func NewMQTTReconnector() *Reconnector {
	interval := time.Duration(Config.GetInt("reconnect_interval")) * time.Second
	return &Reconnector{
		Name:       "mqtt",
		Interval:   interval,
		Connected:  MQTTConnected,
		Connect:    MQTTConnect,
		Generation: ConnectionCount,
		seen:       ConnectionCount(),
	}
}

// Ensure reports whether the dependency was reconnected since the previous
// call. It retries until connected or ctx ends.
func (r *Reconnector) Ensure(ctx context.Context) (reconnected bool, err error) {
	if r.Connected() {
		return r.catchUp(false), nil
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for attempt := 1; ; attempt++ {
		Logger.Info().Msgf("attempting %s connection (attempt %d)", r.Name, attempt)
		err := r.Connect()
		if err == nil && r.Connected() {
			Logger.Info().Msgf("%s connected", r.Name)
			return r.catchUp(true), nil
		}
		Logger.Warn().Msgf("%s connection failed: %v, try again in %v", r.Name, err, interval)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (r *Reconnector) catchUp(connectedHere bool) bool {
	if r.Generation == nil {
		return connectedHere
	}
	g := r.Generation()
	changed := g != r.seen
	r.seen = g
	return changed
}
