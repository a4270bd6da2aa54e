package main

import (
	"context"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
)

// inbound payloads are cut to what the firmware's receive buffer held
const inboundLimit = 255

type publishFunc func(topic string, payload interface{}) error

// connectivity blocks until the broker is reachable. reconnected is true
// when the link had been lost.
type connectivity interface {
	Ensure(ctx context.Context) (reconnected bool, err error)
}

// alerter queues a human-readable alert without blocking.
type alerter interface {
	Enqueue(message string) bool
}

// sessionDeps is what every session shares with the rest of the process.
type sessionDeps struct {
	conn    connectivity
	publish publishFunc
	store   *state.Store
	sink    *Sink
	hub     *WSHub
	now     func() time.Time
}

func (d *sessionDeps) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncateInbound(payload []byte) string {
	if len(payload) > inboundLimit {
		payload = payload[:inboundLimit]
	}
	return string(payload)
}

// inboundRouter hands every message on the get topic to each session's
// loop. A full session queue drops the message for that session only.
type inboundRouter struct {
	queues []chan string
}

func (r *inboundRouter) add(q chan string) {
	r.queues = append(r.queues, q)
}

func (r *inboundRouter) handler(client MQTT.Client, message MQTT.Message) {
	text := truncateInbound(message.Payload())
	Logger.Info().Msgf("Received on %s: %s", message.Topic(), text)
	for _, q := range r.queues {
		select {
		case q <- text:
		default:
			Logger.Warn().Msg("inbound queue full, dropping")
		}
	}
}

// drainLogged empties a queue for sessions that only report inbound messages.
func drainLogged(session string, q chan string) {
	for {
		select {
		case msg := <-q:
			Logger.Debug().Msgf("%s session ignoring inbound %q", session, msg)
		default:
			return
		}
	}
}
