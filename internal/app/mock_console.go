// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"os"
	"os/signal"

	"github.com/relabs-tech/accel_paddle/internal/config"
	"github.com/relabs-tech/accel_paddle/internal/output"
	"github.com/relabs-tech/accel_paddle/internal/sampler"
)

// RunMockConsole runs the full pipeline on the simulated ADC and prints the
// stream to stdout. No config file or hardware is needed.
func RunMockConsole(tiltSensor int) error {
	cfg := config.Default()
	cfg.ADCSource = "mock"
	cfg.MockTiltSensor = tiltSensor
	if err := cfg.Validate(); err != nil {
		return err
	}

	sensors := sensorChannels(cfg)
	smp, err := sampler.New(mockReader(cfg, sensors), sensors, output.NewStdoutSink(), samplerOptions(cfg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return smp.Run(ctx)
}
