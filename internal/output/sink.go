// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package output delivers status lines, calibration results and records to
// the transports a host consumes: text lines (stdout, serial) and MQTT.
package output

import (
	"errors"

	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

// Sink receives, in order: status lines, one Calibrated call per sensor,
// the header once, then one Write per sampling tick.
type Sink interface {
	Status(msg string) error
	Calibrated(res calibration.Result) error
	Header(fields []string) error
	Write(r record.Record) error
	Close() error
}

// Multi fans out to every sink. A failing sink does not stop the others;
// their errors are joined.
type Multi []Sink

func (m Multi) Status(msg string) error {
	return m.each(func(s Sink) error { return s.Status(msg) })
}

func (m Multi) Calibrated(res calibration.Result) error {
	return m.each(func(s Sink) error { return s.Calibrated(res) })
}

func (m Multi) Header(fields []string) error {
	return m.each(func(s Sink) error { return s.Header(fields) })
}

func (m Multi) Write(r record.Record) error {
	return m.each(func(s Sink) error { return s.Write(r) })
}

func (m Multi) Close() error {
	return m.each(func(s Sink) error { return s.Close() })
}

func (m Multi) each(f func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := f(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
