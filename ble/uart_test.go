package ble

import (
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestNameMatches(t *testing.T) {
	tests := []struct {
		name     string
		adv      string
		target   string
		expected bool
	}{
		{"Exact", "M5", "M5", true},
		{"Substring", "M5Capsule", "M5", true},
		{"Other device", "T-SIMCAM", "M5", false},
		{"Empty name", "", "M5", false},
		{"Empty target", "M5Capsule", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameMatches(tt.adv, tt.target); got != tt.expected {
				t.Errorf("NameMatches(%q, %q) = %v, expected %v", tt.adv, tt.target, got, tt.expected)
			}
		})
	}
}

func TestUARTUUIDsParse(t *testing.T) {
	for _, s := range []string{UARTServiceUUID, UARTRxUUID, UARTTxUUID} {
		if _, err := bluetooth.ParseUUID(s); err != nil {
			t.Errorf("ParseUUID(%s) error: %v", s, err)
		}
	}
}
