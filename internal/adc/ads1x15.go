// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adc

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// fullScale is the programmable gain setting; ±4.096 V covers the 0-3.3 V
// accelerometer output without clipping.
const fullScale = 4096 * physic.MilliVolt

var inputs = [4]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ADS1015Reader reads accelerometer channels through one or more ADS1015
// converters sharing an I²C bus.
type ADS1015Reader struct {
	bus  i2c.BusCloser
	devs map[uint16]*ads1x15.Dev
	pins map[Channel]ads1x15.PinADC
}

// OpenADS1015 initializes the periph host, opens busName ("" picks the
// first bus) and prepares a pin for every channel. Converters are created
// once per distinct address.
func OpenADS1015(busName string, channels []Channel, dataRate physic.Frequency) (*ADS1015Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("ADC I2C open (%q): %w", busName, err)
	}

	r := &ADS1015Reader{
		bus:  bus,
		devs: map[uint16]*ads1x15.Dev{},
		pins: map[Channel]ads1x15.PinADC{},
	}

	for _, ch := range channels {
		if ch.Input < 0 || ch.Input >= len(inputs) {
			r.Close()
			return nil, fmt.Errorf("ADC channel %s: input out of range", ch)
		}

		dev, ok := r.devs[ch.Addr]
		if !ok {
			dev, err = ads1x15.NewADS1015(bus, &ads1x15.Opts{I2cAddress: ch.Addr})
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("ADS1015 at 0x%02X: %w", ch.Addr, err)
			}
			r.devs[ch.Addr] = dev
			log.Printf("adc: ADS1015 initialized at 0x%02X", ch.Addr)
		}

		pin, err := dev.PinForChannel(inputs[ch.Input], fullScale, dataRate, ads1x15.BestQuality)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("ADC channel %s: %w", ch, err)
		}
		r.pins[ch] = pin
	}

	log.Printf("adc: %d channels ready on %d converter(s), data rate %s", len(r.pins), len(r.devs), dataRate)
	return r, nil
}

// ReadChannel performs one single-shot conversion and rescales the measured
// voltage to the 12-bit 0..SupplyVoltage range the conversion constants use.
func (r *ADS1015Reader) ReadChannel(ch Channel) (RawSample, error) {
	pin, ok := r.pins[ch]
	if !ok {
		return 0, fmt.Errorf("ADC channel %s: not configured", ch)
	}
	s, err := pin.Read()
	if err != nil {
		return 0, fmt.Errorf("ADC channel %s: %w", ch, err)
	}
	return countsFromVolts(float64(s.V) / float64(physic.Volt)), nil
}

// Close halts all pins and releases the bus.
func (r *ADS1015Reader) Close() error {
	for ch, pin := range r.pins {
		if err := pin.Halt(); err != nil {
			log.Printf("adc: halt %s: %v", ch, err)
		}
	}
	if r.bus == nil {
		return nil
	}
	return r.bus.Close()
}
