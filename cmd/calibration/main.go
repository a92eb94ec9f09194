// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided calibration for the MPU9250. Prompts on the console through three
// phases (gyro static bias, accelerometer 6-point, magnetometer min/max) and
// writes the result as JSON in raw counts, ready for imu.calibration_file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/app"
	"github.com/relabs-tech/edl_robot/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file (empty for defaults)")
	out := flag.String("out", "", "output file (default imu.calibration_file or calibration.json)")
	magDur := flag.Duration("mag-duration", app.DefaultCalibrationTimings().Mag, "maximum magnetometer capture time")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	cfg.ApplyLogLevel()

	path := *out
	if path == "" {
		path = cfg.IMU.CalibrationFile
	}
	if path == "" {
		path = "calibration.json"
	}

	src, err := app.OpenRawSource(cfg.IMU)
	if err != nil {
		log.Fatalf("IMU init failed: %v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timings := app.DefaultCalibrationTimings()
	timings.Mag = *magDur
	c := &app.Calibrator{
		Src:     src,
		IMU:     cfg.IMU.Name,
		In:      bufio.NewReader(os.Stdin),
		Out:     os.Stdout,
		Timings: timings,
		SkipMag: !cfg.IMU.EnableMag,
	}
	fmt.Println("=== Guided calibration (gyro + accel + mag) ===")
	cal, err := c.Run(ctx)
	if err != nil {
		src.Close()
		log.Fatalf("calibration failed: %v", err)
	}
	if err := cal.Save(path); err != nil {
		src.Close()
		log.Fatalf("%v", err)
	}
	fmt.Printf("\nOverall confidence: %.2f\nSaved to %s\n", cal.Confidence.Overall, path)
}
