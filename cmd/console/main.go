// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/accel_paddle/internal/app"
)

func main() {
	tilt := flag.Int("tilt", 1, "sensor whose X axis rocks after calibration (0 = none)")
	flag.Parse()

	log.Println("starting accel-paddle (mock console)")

	if err := app.RunMockConsole(*tilt); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
