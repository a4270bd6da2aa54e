package imu

import (
	"strconv"
	"strings"
)

const DefaultBatchSize = 5

// Batch is a fixed-capacity ring of samples. It is filled by one loop and
// drained by the same loop once full.
type Batch struct {
	buf   []Sample
	start int
	count int
}

func NewBatch(size int) *Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batch{buf: make([]Sample, size)}
}

// Push appends a sample and reports whether the batch is now full. Pushing
// into a full batch overwrites the oldest sample.
func (b *Batch) Push(s Sample) bool {
	idx := (b.start + b.count) % len(b.buf)
	b.buf[idx] = s
	if b.count < len(b.buf) {
		b.count++
	} else {
		b.start = (b.start + 1) % len(b.buf)
	}
	return b.IsFull()
}

func (b *Batch) IsFull() bool { return b.count == len(b.buf) }

func (b *Batch) Len() int { return b.count }

func (b *Batch) Cap() int { return len(b.buf) }

// Drain returns the buffered samples oldest first and empties the batch.
func (b *Batch) Drain() []Sample {
	out := make([]Sample, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.buf[(b.start+i)%len(b.buf)]
	}
	for i := range b.buf {
		b.buf[i] = Sample{}
	}
	b.start = 0
	b.count = 0
	return out
}

// FormatBatch renders samples as the fixed-schema telemetry message, one
// array per axis, two decimals per value. suffix is appended to every key
// ("m" gives axm..gzm, "1" gives ax1..gz1).
func FormatBatch(samples []Sample, suffix string) string {
	axes := []struct {
		key string
		get func(Sample) float64
	}{
		{"ax", func(s Sample) float64 { return s.Ax }},
		{"ay", func(s Sample) float64 { return s.Ay }},
		{"az", func(s Sample) float64 { return s.Az }},
		{"gx", func(s Sample) float64 { return s.Gx }},
		{"gy", func(s Sample) float64 { return s.Gy }},
		{"gz", func(s Sample) float64 { return s.Gz }},
	}

	var sb strings.Builder
	sb.WriteByte('{')
	for i, axis := range axes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(axis.key)
		sb.WriteString(suffix)
		sb.WriteString(`":[`)
		for j, s := range samples {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatFloat(axis.get(s), 'f', 2, 64))
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('}')
	return sb.String()
}
