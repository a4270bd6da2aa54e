package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elijahnyp/roomsense/presence"
	. "github.com/elijahnyp/roomsense/util"
	"tinygo.org/x/bluetooth"
)

var (
	enableOnce sync.Once
	enableErr  error
)

// enable powers the default adapter once per process.
func enable(adapter *bluetooth.Adapter) error {
	enableOnce.Do(func() {
		enableErr = adapter.Enable()
	})
	if enableErr != nil {
		return fmt.Errorf("ble enable: %w", enableErr)
	}
	return nil
}

type scanAdapter interface {
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// Scanner runs bounded scan windows and collects named advertisements.
type Scanner struct {
	adapter scanAdapter
	enable  func() error
}

func NewScanner() *Scanner {
	return &Scanner{
		adapter: bluetooth.DefaultAdapter,
		enable:  func() error { return enable(bluetooth.DefaultAdapter) },
	}
}

// Cycle scans for window (or until ctx ends) and returns what was heard.
// adapter.Scan blocks until StopScan, so a timer stops it.
func (s *Scanner) Cycle(ctx context.Context, window time.Duration) ([]presence.Sighting, error) {
	if s.enable != nil {
		if err := s.enable(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		sightings []presence.Sighting
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-time.After(window):
		case <-ctx.Done():
		case <-stop:
			return
		}
		// Scan may not have started yet, so keep stopping until it returns
		retry := time.NewTicker(100 * time.Millisecond)
		defer retry.Stop()
		for {
			if err := s.adapter.StopScan(); err != nil {
				Logger.Debug().Msgf("ble stop scan: %v", err)
			}
			select {
			case <-stop:
				return
			case <-retry.C:
			}
		}
	}()

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		name := r.LocalName()
		if name == "" {
			return
		}
		mu.Lock()
		sightings = append(sightings, presence.Sighting{
			Address: r.Address.String(),
			Name:    name,
			RSSI:    int(r.RSSI),
			SeenAt:  time.Now(),
		})
		mu.Unlock()
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	Logger.Trace().Msgf("scan cycle heard %d named devices", len(sightings))
	return sightings, nil
}
