// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler runs the read → calibrate → filter → emit loop for the
// two bar-end sensors.
//
// The loop starts in StateCalibrating, calibrates sensor 1 then sensor 2,
// and moves to StateSteady for good. In steady state a tick emits one
// record when at least Interval has passed since the previous record.
// Late ticks are never caught up and the schedule is never re-aligned: the
// next record simply carries the time at which it was taken.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/relabs-tech/accel_paddle/internal/accel"
	"github.com/relabs-tech/accel_paddle/internal/adc"
	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/filter"
	"github.com/relabs-tech/accel_paddle/internal/output"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

const DefaultInterval = 10 * time.Millisecond

// Status lines emitted around calibration, ahead of the header.
const (
	StatusCalibrating = "Calibrating sensors (keep still)..."
	StatusCalibrated  = "Calibration complete!"
)

var ErrNotCalibrated = errors.New("sampler: sensors not calibrated")

type State int

const (
	StateCalibrating State = iota
	StateSteady
)

func (s State) String() string {
	switch s {
	case StateCalibrating:
		return "calibrating"
	case StateSteady:
		return "steady"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options tunes the loop. Zero values fall back to the defaults.
type Options struct {
	Alpha       float64
	Interval    time.Duration
	Calibration calibration.Options

	// BusyPoll makes Run check the clock back to back instead of sleeping
	// until the next record is due.
	BusyPoll bool

	// Elapsed returns the time since process start; a monotonic clock
	// started by New when nil.
	Elapsed func() time.Duration
}

// sensor holds everything the loop owns for one physical sensor.
type sensor struct {
	channels accel.SensorChannels
	offset   accel.Triple
	state    accel.Triple // filter output
}

type Sampler struct {
	reader     adc.Reader
	calibrator *calibration.Calibrator
	filter     filter.LowPass
	sink       output.Sink
	sensors    [2]*sensor

	interval   uint64 // ms
	busyPoll   bool
	elapsed    func() time.Duration
	sleep      func(time.Duration)
	state      State
	lastSample uint64 // ms
}

// New builds a sampler for two sensors. Their channels must be disjoint.
func New(r adc.Reader, sensors [2]accel.SensorChannels, sink output.Sink, opts Options) (*Sampler, error) {
	if !sensors[0].Disjoint(sensors[1]) {
		return nil, fmt.Errorf("sampler: sensors %q and %q share a channel", sensors[0].Name, sensors[1].Name)
	}
	if opts.Alpha == 0 {
		opts.Alpha = filter.DefaultAlpha
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, fmt.Errorf("sampler: alpha %v outside (0, 1]", opts.Alpha)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Interval < time.Millisecond {
		return nil, fmt.Errorf("sampler: interval %s below 1ms", opts.Interval)
	}
	if opts.Elapsed == nil {
		start := time.Now()
		opts.Elapsed = func() time.Duration { return time.Since(start) }
	}

	return &Sampler{
		reader:     r,
		calibrator: calibration.New(r, opts.Calibration),
		filter:     filter.LowPass{Alpha: opts.Alpha},
		sink:       sink,
		sensors: [2]*sensor{
			{channels: sensors[0]},
			{channels: sensors[1]},
		},
		interval: uint64(opts.Interval / time.Millisecond),
		busyPoll: opts.BusyPoll,
		elapsed:  opts.Elapsed,
		sleep:    time.Sleep,
		state:    StateCalibrating,
	}, nil
}

func (s *Sampler) State() State {
	return s.state
}

// Offsets returns the calibration offsets of both sensors.
func (s *Sampler) Offsets() [2]accel.Triple {
	return [2]accel.Triple{s.sensors[0].offset, s.sensors[1].offset}
}

// Calibrate runs the blocking calibration of sensor 1 then sensor 2, seeds
// each filter with the negated offset and emits the header. On error the
// sampler stays in StateCalibrating.
func (s *Sampler) Calibrate() ([2]calibration.Result, error) {
	var results [2]calibration.Result
	if s.state != StateCalibrating {
		return results, fmt.Errorf("sampler: already in %s state", s.state)
	}

	s.status(StatusCalibrating)
	for i, sn := range s.sensors {
		res, err := s.calibrator.Calibrate(sn.channels)
		if err != nil {
			return results, fmt.Errorf("%s sensor: %w", sn.channels.Name, err)
		}
		results[i] = res
		log.Printf("%s sensor: offset x=%.4f y=%.4f z=%.4f | std x=%.4f y=%.4f z=%.4f | confidence=%.2f",
			sn.channels.Name, res.Offset.X, res.Offset.Y, res.Offset.Z,
			res.StdDev.X, res.StdDev.Y, res.StdDev.Z, res.Confidence)
		if !res.Still() {
			log.Printf("%s sensor: WARNING: moved during calibration, offsets may be biased", sn.channels.Name)
		}
		if err := s.sink.Calibrated(res); err != nil {
			log.Printf("sampler: calibration publish error: %v", err)
		}
	}

	for i, sn := range s.sensors {
		sn.offset = results[i].Offset
		sn.state = sn.offset.Neg()
	}
	s.state = StateSteady

	s.status(StatusCalibrated)
	if err := s.sink.Header(record.Fields); err != nil {
		log.Printf("sampler: header write error: %v", err)
	}
	return results, nil
}

// Tick emits a record if Interval has elapsed since the last one. It
// returns false without reading anything when not yet due. A failed read
// emits nothing and leaves filter state untouched; the tick still counts,
// so the next attempt waits a full interval.
func (s *Sampler) Tick() (record.Record, bool, error) {
	if s.state != StateSteady {
		return record.Record{}, false, ErrNotCalibrated
	}

	now := uint64(s.elapsed() / time.Millisecond)
	if now-s.lastSample < s.interval {
		return record.Record{}, false, nil
	}
	s.lastSample = now

	var calibrated [2]accel.Triple
	for i, sn := range s.sensors {
		t, err := accel.ReadTriple(s.reader, sn.channels)
		if err != nil {
			return record.Record{}, false, err
		}
		calibrated[i] = t.Sub(sn.offset)
	}

	for i, sn := range s.sensors {
		s.filter.Apply(calibrated[i], &sn.state)
	}

	rec := record.Record{
		TimeMS:  now,
		Sensor1: s.sensors[0].state,
		Sensor2: s.sensors[1].state,
	}
	if err := s.sink.Write(rec); err != nil {
		log.Printf("sampler: record write error: %v", err)
	}
	return rec, true, nil
}

// Run calibrates if needed and then ticks until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	if s.state == StateCalibrating {
		if _, err := s.Calibrate(); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, emitted, err := s.Tick()
		if err != nil {
			log.Printf("sampler: tick error: %v", err)
		}
		if emitted || err != nil {
			continue
		}

		if s.busyPoll {
			runtime.Gosched()
			continue
		}
		s.waitNext()
	}
}

// waitNext sleeps until the next record is due on the monotonic clock.
func (s *Sampler) waitNext() {
	due := time.Duration(s.lastSample+s.interval) * time.Millisecond
	if d := due - s.elapsed(); d > 0 {
		s.sleep(d)
	}
}

func (s *Sampler) status(msg string) {
	log.Println(msg)
	if err := s.sink.Status(msg); err != nil {
		log.Printf("sampler: status write error: %v", err)
	}
}
