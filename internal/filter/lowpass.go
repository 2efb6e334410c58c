// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

import "github.com/relabs-tech/accel_paddle/internal/accel"

// DefaultAlpha weights new input against the previous output.
const DefaultAlpha = 0.6

// LowPass is a single-pole exponential filter applied per axis:
//
//	state = alpha*in + (1-alpha)*state
type LowPass struct {
	Alpha float64
}

// Apply updates state in place and returns the new value.
func (f LowPass) Apply(in accel.Triple, state *accel.Triple) accel.Triple {
	a := f.Alpha
	state.X = a*in.X + (1-a)*state.X
	state.Y = a*in.Y + (1-a)*state.Y
	state.Z = a*in.Z + (1-a)*state.Z
	return *state
}
