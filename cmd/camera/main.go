// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/app"
	"github.com/relabs-tech/edl_robot/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file (empty for defaults)")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	cfg.ApplyLogLevel()

	log.Println("starting camera capture")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunCamera(ctx, cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
