package imu

import (
	"encoding/json"
	"fmt"
)

// Sample is one accelerometer (g) and gyroscope (dps) reading.
type Sample struct {
	Ax float64 `json:"ax"`
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`
	Gx float64 `json:"gx"`
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// ParseNotification decodes the JSON object a wheelchair unit sends per BLE
// notification. Absent or non-numeric fields read as zero; only a payload
// that is not a JSON object is rejected.
func ParseNotification(payload []byte) (Sample, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Sample{}, fmt.Errorf("parse imu notification: %w", err)
	}
	if fields == nil {
		return Sample{}, fmt.Errorf("parse imu notification: not an object")
	}
	return Sample{
		Ax: number(fields["ax"]),
		Ay: number(fields["ay"]),
		Az: number(fields["az"]),
		Gx: number(fields["gx"]),
		Gy: number(fields["gy"]),
		Gz: number(fields["gz"]),
	}, nil
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}
