// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package adc reads single analog channels of the KXR94-2050 accelerometers
// and converts raw 12-bit counts to acceleration in g.
package adc

import (
	"fmt"
	"math"
)

// KXR94-2050 analog output on a 3.3 V supply.
const (
	ADCMax        = 4095 // 12-bit full scale
	SupplyVoltage = 3.3  // V
	ZeroGOffset   = SupplyVoltage / 2
	Sensitivity   = 0.66 // V/g
)

// RawSample is one unconverted reading in [0, ADCMax].
type RawSample uint16

// Channel identifies one physical analog line: an input on the converter
// found at Addr. It is comparable and used as a map key.
type Channel struct {
	Addr  uint16 `json:"addr"`  // I²C address of the converter
	Input int    `json:"input"` // single-ended input, 0-3
}

func (c Channel) String() string {
	return fmt.Sprintf("0x%02X/A%d", c.Addr, c.Input)
}

// Reader triggers a conversion on a channel and returns the raw count.
type Reader interface {
	ReadChannel(ch Channel) (RawSample, error)
}

// ToAccelG converts a raw count to acceleration in g:
//
//	voltage = raw * SupplyVoltage / ADCMax
//	g       = (voltage - ZeroGOffset) / Sensitivity
func ToAccelG(raw RawSample) float64 {
	voltage := float64(raw) * SupplyVoltage / ADCMax
	return (voltage - ZeroGOffset) / Sensitivity
}

// FromAccelG is the inverse of ToAccelG, rounded to the nearest count and
// clamped to the converter range.
func FromAccelG(g float64) RawSample {
	voltage := g*Sensitivity + ZeroGOffset
	return countsFromVolts(voltage)
}

// countsFromVolts maps a voltage on the 0..SupplyVoltage scale to counts.
func countsFromVolts(v float64) RawSample {
	c := math.Round(v * ADCMax / SupplyVoltage)
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	if c > ADCMax {
		return ADCMax
	}
	return RawSample(c)
}
