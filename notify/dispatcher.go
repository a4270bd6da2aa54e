package notify

import (
	"context"
	"time"

	. "github.com/elijahnyp/roomsense/util"
)

// Dispatcher queues alerts for a small pool of workers so a polling loop
// never waits on an outside service.
type Dispatcher struct {
	notifier Notifier
	queue    chan string
	workers  int
	timeout  time.Duration
}

func NewDispatcher(n Notifier, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		notifier: n,
		queue:    make(chan string, workers*4),
		workers:  workers,
		timeout:  30 * time.Second,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx)
	}
}

// Enqueue returns false when the queue is full and the alert was dropped.
func (d *Dispatcher) Enqueue(message string) bool {
	select {
	case d.queue <- message:
		return true
	default:
		Logger.Warn().Msgf("notification queue full, dropping %q", message)
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg string) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	Logger.Info().Msgf("try to notify via %s", d.notifier.Name())
	if err := d.notifier.Notify(ctx, msg); err != nil {
		Logger.Warn().Msgf("notify failed: %v", err)
		return
	}
	Logger.Debug().Msgf("notified %q", msg)
}
