package ble

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/elijahnyp/roomsense/util"
	"tinygo.org/x/bluetooth"
)

// Nordic UART service, as used by the wheelchair IMU units.
const (
	UARTServiceUUID = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	UARTRxUUID      = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"
	UARTTxUUID      = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E"
)

var (
	ErrServiceNotFound        = fmt.Errorf("uart service %s not found", UARTServiceUUID)
	ErrCharacteristicNotFound = fmt.Errorf("uart tx characteristic %s not found", UARTTxUUID)
)

// UARTClient finds a device by name, connects, and streams notifications from
// the UART TX characteristic.
type UARTClient struct {
	adapter    *bluetooth.Adapter
	target     string
	scanWindow time.Duration
	device     bluetooth.Device
	connected  bool
}

func NewUARTClient(target string, scanWindow time.Duration) *UARTClient {
	if scanWindow <= 0 {
		scanWindow = 5 * time.Second
	}
	return &UARTClient{
		adapter:    bluetooth.DefaultAdapter,
		target:     target,
		scanWindow: scanWindow,
	}
}

// Find repeats scan windows until a device whose name contains the target is
// advertising, or ctx ends.
func (c *UARTClient) Find(ctx context.Context) (bluetooth.ScanResult, error) {
	if err := enable(c.adapter); err != nil {
		return bluetooth.ScanResult{}, err
	}
	for {
		Logger.Debug().Msgf("scanning for %q", c.target)
		found := make(chan bluetooth.ScanResult, 1)
		timer := time.AfterFunc(c.scanWindow, func() { _ = c.adapter.StopScan() })
		err := c.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if !NameMatches(r.LocalName(), c.target) {
				return
			}
			if stopErr := a.StopScan(); stopErr != nil {
				Logger.Debug().Msgf("ble stop scan: %v", stopErr)
			}
			select {
			case found <- r:
			default:
			}
		})
		timer.Stop()
		if err != nil {
			return bluetooth.ScanResult{}, fmt.Errorf("ble scan: %w", err)
		}

		select {
		case r := <-found:
			Logger.Info().Msgf("advertised device %s %s rssi %d", r.LocalName(), r.Address.String(), r.RSSI)
			return r, nil
		case <-ctx.Done():
			return bluetooth.ScanResult{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Connect links to a found device and forwards a copy of every notification
// to out. A full channel drops the notification.
func (c *UARTClient) Connect(result bluetooth.ScanResult, out chan<- []byte) error {
	serviceUUID, err := bluetooth.ParseUUID(UARTServiceUUID)
	if err != nil {
		return err
	}
	txUUID, err := bluetooth.ParseUUID(UARTTxUUID)
	if err != nil {
		return err
	}

	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", result.Address.String(), err)
	}
	c.device = device
	c.connected = true
	Logger.Info().Msgf("connected to %s", result.Address.String())

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		c.Disconnect()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrServiceNotFound, err)
		}
		return ErrServiceNotFound
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{txUUID})
	if err != nil || len(chars) == 0 {
		c.Disconnect()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCharacteristicNotFound, err)
		}
		return ErrCharacteristicNotFound
	}

	err = chars[0].EnableNotifications(func(buf []byte) {
		payload := append([]byte(nil), buf...)
		select {
		case out <- payload:
		default:
			Logger.Warn().Msg("notification buffer full, dropping")
		}
	})
	if err != nil {
		c.Disconnect()
		return fmt.Errorf("enable notifications: %w", err)
	}
	return nil
}

func (c *UARTClient) Connected() bool { return c.connected }

func (c *UARTClient) Disconnect() {
	if !c.connected {
		return
	}
	c.connected = false
	if err := c.device.Disconnect(); err != nil {
		Logger.Debug().Msgf("ble disconnect: %v", err)
	}
	Logger.Info().Msg("ble link closed")
}

// NameMatches reports whether an advertised name contains the target. Empty
// names never match.
func NameMatches(name, target string) bool {
	return name != "" && target != "" && strings.Contains(name, target)
}
