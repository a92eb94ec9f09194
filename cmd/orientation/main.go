// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/app"
	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/sensors"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file (empty for defaults)")
	mock := flag.Bool("mock", false, "use the synthetic sample source instead of hardware")
	dump := flag.Bool("dump-registers", false, "print the IMU configuration registers and exit")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	cfg.ApplyLogLevel()

	if *dump {
		if err := dumpRegisters(cfg.IMU); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	log.Println("starting orientation producer")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunOrientationProducer(ctx, cfg, *mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func dumpRegisters(cfg config.IMUConfig) error {
	src, err := app.OpenRawSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	d, ok := src.(interface {
		DumpRegisters() ([]sensors.RegisterValue, error)
	})
	if !ok {
		return fmt.Errorf("transport %q cannot dump registers", cfg.Transport)
	}
	regs, err := d.DumpRegisters()
	if err != nil {
		return err
	}
	for _, r := range regs {
		fmt.Println(r)
	}
	return nil
}
