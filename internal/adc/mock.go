// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adc

import (
	"math"
	"time"
)

// MockReader returns fixed raw values per channel. Channels that were
// never set read Default.
type MockReader struct {
	Default RawSample

	values map[Channel]RawSample
	errs   map[Channel]error
	reads  []Channel
}

// NewMockReader creates a mock whose channels read 0 g until set.
func NewMockReader() *MockReader {
	return &MockReader{
		Default: FromAccelG(0),
		values:  map[Channel]RawSample{},
		errs:    map[Channel]error{},
	}
}

// Set fixes the raw value returned for ch.
func (m *MockReader) Set(ch Channel, raw RawSample) {
	m.values[ch] = raw
}

// SetG fixes the value returned for ch to the count closest to g.
func (m *MockReader) SetG(ch Channel, g float64) {
	m.values[ch] = FromAccelG(g)
}

// SetError makes reads of ch fail with err; nil clears it.
func (m *MockReader) SetError(ch Channel, err error) {
	if err == nil {
		delete(m.errs, ch)
		return
	}
	m.errs[ch] = err
}

func (m *MockReader) ReadChannel(ch Channel) (RawSample, error) {
	m.reads = append(m.reads, ch)
	if err, ok := m.errs[ch]; ok {
		return 0, err
	}
	if v, ok := m.values[ch]; ok {
		return v, nil
	}
	return m.Default, nil
}

// Reads returns every channel read so far, in order.
func (m *MockReader) Reads() []Channel {
	return m.reads
}

// TiltSimulator stands in for two level sensors at rest: vertical channels
// read +1 g and all others 0 g. Once settle has elapsed the tilt channel, if
// any, swings between -1 g and +1 g with the given period.
type TiltSimulator struct {
	vertical map[Channel]bool
	tilt     *Channel
	period   time.Duration
	settle   time.Duration
	start    time.Time
	now      func() time.Time
}

func NewTiltSimulator(vertical []Channel, tilt *Channel, period, settle time.Duration) *TiltSimulator {
	v := make(map[Channel]bool, len(vertical))
	for _, ch := range vertical {
		v[ch] = true
	}
	return &TiltSimulator{
		vertical: v,
		tilt:     tilt,
		period:   period,
		settle:   settle,
		start:    time.Now(),
		now:      time.Now,
	}
}

func (s *TiltSimulator) ReadChannel(ch Channel) (RawSample, error) {
	g := 0.0
	if s.vertical[ch] {
		g = 1.0
	}
	if s.tilt != nil && *s.tilt == ch && s.period > 0 {
		if elapsed := s.now().Sub(s.start) - s.settle; elapsed > 0 {
			g += math.Sin(2 * math.Pi * elapsed.Seconds() / s.period.Seconds())
		}
	}
	return FromAccelG(g), nil
}
