// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/accel_paddle/internal/accel"
	"github.com/relabs-tech/accel_paddle/internal/adc"
	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/sampler"
)

// channelsOf maps a configured sensor to its ADS1015 inputs.
func channelsOf(s config.SensorConfig) accel.SensorChannels {
	return accel.SensorChannels{
		Name: s.Name,
		X:    adc.Channel{Addr: s.I2CAddr, Input: s.XChannel},
		Y:    adc.Channel{Addr: s.I2CAddr, Input: s.YChannel},
		Z:    adc.Channel{Addr: s.I2CAddr, Input: s.ZChannel},
	}
}

func sensorChannels(cfg *config.Config) [2]accel.SensorChannels {
	return [2]accel.SensorChannels{channelsOf(cfg.Sensor1), channelsOf(cfg.Sensor2)}
}

func calibrationOptions(cfg *config.Config) calibration.Options {
	delay := time.Duration(cfg.CalibrationDelay) * time.Millisecond
	if delay == 0 {
		delay = -1 // back to back
	}
	return calibration.Options{Samples: cfg.CalibrationSamples, Delay: delay}
}

func samplerOptions(cfg *config.Config) sampler.Options {
	return sampler.Options{
		Alpha:       cfg.LPFAlpha,
		Interval:    time.Duration(cfg.SampleInterval) * time.Millisecond,
		Calibration: calibrationOptions(cfg),
		BusyPoll:    cfg.PollMode == "busy",
	}
}

// openReader returns the configured ADC backend and a function releasing it.
func openReader(cfg *config.Config) (adc.Reader, func() error, error) {
	sensors := sensorChannels(cfg)

	switch cfg.ADCSource {
	case "mock":
		log.Println("using simulated ADC (sensors level and at rest)")
		return mockReader(cfg, sensors), func() error { return nil }, nil

	case "ads1015":
		var channels []adc.Channel
		for _, s := range sensors {
			channels = append(channels, s.Channels()...)
		}
		r, err := adc.OpenADS1015(cfg.ADCI2CBus, channels, physic.Frequency(cfg.ADCDataRateHz)*physic.Hertz)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown ADC source %q", cfg.ADCSource)
	}
}

// mockReader simulates the bar lying still; with MOCK_TILT_SENSOR set, that
// sensor starts rocking on X once calibration has had time to finish.
func mockReader(cfg *config.Config, sensors [2]accel.SensorChannels) *adc.TiltSimulator {
	var tilt *adc.Channel
	if cfg.MockTiltSensor > 0 {
		ch := sensors[cfg.MockTiltSensor-1].X
		tilt = &ch
		log.Printf("simulated ADC: %s sensor tilts on X every %dms", sensors[cfg.MockTiltSensor-1].Name, cfg.MockTiltPeriod)
	}
	perSensor := time.Duration(cfg.CalibrationSamples) * time.Duration(cfg.CalibrationDelay) * time.Millisecond
	settle := 2*perSensor + time.Second

	return adc.NewTiltSimulator(
		[]adc.Channel{sensors[0].Z, sensors[1].Z},
		tilt,
		time.Duration(cfg.MockTiltPeriod)*time.Millisecond,
		settle,
	)
}
