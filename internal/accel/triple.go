package accel

import (
	"fmt"

	"github.com/relabs-tech/accel_paddle/internal/adc"
)

// Triple is one sensor's acceleration on X, Y and Z, in g.
type Triple struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns t - o component-wise.
func (t Triple) Sub(o Triple) Triple {
	return Triple{X: t.X - o.X, Y: t.Y - o.Y, Z: t.Z - o.Z}
}

// Neg returns -t.
func (t Triple) Neg() Triple {
	return Triple{X: -t.X, Y: -t.Y, Z: -t.Z}
}

// SensorChannels maps one physical sensor's axes to analog channels.
type SensorChannels struct {
	Name string // "left" or "right" for logging
	X    adc.Channel
	Y    adc.Channel
	Z    adc.Channel
}

// Channels returns the axis channels in read order.
func (s SensorChannels) Channels() []adc.Channel {
	return []adc.Channel{s.X, s.Y, s.Z}
}

// Disjoint reports whether no channel is used twice across s and o,
// including within either set.
func (s SensorChannels) Disjoint(o SensorChannels) bool {
	seen := map[adc.Channel]bool{}
	for _, ch := range append(s.Channels(), o.Channels()...) {
		if seen[ch] {
			return false
		}
		seen[ch] = true
	}
	return true
}

// ReadTriple reads X, Y and Z, always in that order, and converts each to g.
func ReadTriple(r adc.Reader, s SensorChannels) (Triple, error) {
	var out [3]float64
	for i, ch := range s.Channels() {
		raw, err := r.ReadChannel(ch)
		if err != nil {
			return Triple{}, fmt.Errorf("%s sensor axis %c: %w", s.Name, "XYZ"[i], err)
		}
		out[i] = adc.ToAccelG(raw)
	}
	return Triple{X: out[0], Y: out[1], Z: out[2]}, nil
}
