package imu

import "math"

const (
	DefaultFallThreshold = 0.7
	DefaultFallCount     = 5
)

// FallDetector counts consecutive samples whose single-axis acceleration
// exceeds a magnitude threshold.
type FallDetector struct {
	threshold float64
	count     int
	streak    int
}

func NewFallDetector(threshold float64, count int) *FallDetector {
	if threshold <= 0 {
		threshold = DefaultFallThreshold
	}
	if count <= 0 {
		count = DefaultFallCount
	}
	return &FallDetector{threshold: threshold, count: count}
}

// Check feeds one reading and returns true exactly once per run, on the
// sample that brings the streak to the trigger count.
func (f *FallDetector) Check(a float64) bool {
	if math.Abs(a) > f.threshold {
		f.streak++
		return f.streak == f.count
	}
	f.streak = 0
	return false
}

func (f *FallDetector) Streak() int { return f.streak }

// Falling reports whether the last sample qualified.
func (f *FallDetector) Falling() bool { return f.streak > 0 }
