// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration estimates per-axis zero offsets of a sensor that is
// stationary and level. The sensor's Z axis is assumed vertical: exactly 1 g
// is removed from the Z mean regardless of how the sensor is mounted.
package calibration

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/accel_paddle/internal/accel"
	"github.com/relabs-tech/accel_paddle/internal/adc"
)

const (
	DefaultSamples = 200
	DefaultDelay   = 5 * time.Millisecond

	gravity = 1.0 // g carried by the vertical axis

	// Stillness heuristics on the mean per-axis standard deviation (g).
	stillStdGood = 0.01
	stillStdBad  = 0.05
	confFloor    = 0.05
)

// Options controls sampling. Zero values fall back to the defaults; a
// negative Delay takes samples back to back.
type Options struct {
	Samples int
	Delay   time.Duration
	Sleep   func(time.Duration) // time.Sleep when nil
}

// Result is the outcome of calibrating one sensor.
type Result struct {
	Sensor      string       `json:"sensor"`
	Offset      accel.Triple `json:"offset"` // subtract from readings
	Mean        accel.Triple `json:"mean"`
	StdDev      accel.Triple `json:"stddev"`
	Samples     int          `json:"samples"`
	DurationSec float64      `json:"duration_sec"`
	Confidence  float64      `json:"confidence"`
	At          string       `json:"calibrated_at"` // RFC3339
}

type Calibrator struct {
	reader adc.Reader
	opts   Options
}

func New(r adc.Reader, opts Options) *Calibrator {
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	} else if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Calibrator{reader: r, opts: opts}
}

// Calibrate blocks while it takes Samples triples spaced by Delay, then
// returns their per-axis mean with gravity removed from Z. It cannot be
// interrupted; a read error aborts it.
func (c *Calibrator) Calibrate(s accel.SensorChannels) (Result, error) {
	n := c.opts.Samples
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	zs := make([]float64, 0, n)
	var sum accel.Triple

	start := time.Now()
	for i := 0; i < n; i++ {
		t, err := accel.ReadTriple(c.reader, s)
		if err != nil {
			return Result{}, fmt.Errorf("calibration sample %d/%d: %w", i+1, n, err)
		}
		sum.X += t.X
		sum.Y += t.Y
		sum.Z += t.Z
		xs = append(xs, t.X)
		ys = append(ys, t.Y)
		zs = append(zs, t.Z)
		c.opts.Sleep(c.opts.Delay)
	}

	mean := accel.Triple{X: sum.X / float64(n), Y: sum.Y / float64(n), Z: sum.Z / float64(n)}
	res := Result{
		Sensor: s.Name,
		Offset: accel.Triple{X: mean.X, Y: mean.Y, Z: mean.Z - gravity},
		Mean:   mean,
		StdDev: accel.Triple{
			X: stdDev(xs),
			Y: stdDev(ys),
			Z: stdDev(zs),
		},
		Samples:     n,
		DurationSec: time.Since(start).Seconds(),
		At:          start.Format(time.RFC3339),
	}
	res.Confidence = stillnessConfidence(res.StdDev)
	return res, nil
}

// Still reports whether the sensor looked stationary while sampling.
func (r Result) Still() bool {
	return r.Confidence >= 0.5
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func stillnessConfidence(std accel.Triple) float64 {
	s := (std.X + std.Y + std.Z) / 3
	switch {
	case s <= stillStdGood:
		return 1.0
	case s >= stillStdBad:
		return confFloor
	default:
		t := (s - stillStdGood) / (stillStdBad - stillStdGood)
		return 1.0 - (1.0-confFloor)*t
	}
}
