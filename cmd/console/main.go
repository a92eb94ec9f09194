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
	mock := flag.Bool("mock", false, "run the estimator on the synthetic source and print locally")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	cfg.ApplyLogLevel()

	log.Println("starting console")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runConsole(ctx, cfg, *mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func runConsole(ctx context.Context, cfg *config.Config, mock bool) error {
	if mock {
		return app.RunMockConsole(ctx, cfg, os.Stdout)
	}
	return app.RunConsole(ctx, cfg, os.Stdout)
}
