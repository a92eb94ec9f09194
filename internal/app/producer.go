// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/livegraph"
	"github.com/relabs-tech/edl_robot/internal/orientation"
)

// RunOrientationProducer reads the IMU, runs the configured filter and
// publishes pose and raw readings over MQTT until ctx is done. When
// graph.png_path is set the chosen series is also plotted to that file.
func RunOrientationProducer(ctx context.Context, cfg *config.Config, mock bool) error {
	filter, err := orientation.New(cfg.Filter.Kind, cfg.Filter.Params)
	if err != nil {
		return err
	}

	src, err := OpenSource(cfg.IMU, mock)
	if err != nil {
		return fmt.Errorf("open imu: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnf("imu: close: %v", err)
		}
	}()

	client, err := ConnectMQTT(cfg.MQTT, cfg.MQTT.ClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	var graph *livegraph.Graph
	if cfg.Graph.PNGPath != "" {
		graph, err = livegraph.New(livegraph.Options{
			Title:          cfg.Graph.Series,
			Capacity:       cfg.Graph.Capacity,
			UpdateInterval: cfg.Graph.UpdateInterval,
		}, &livegraph.PNGSink{
			Path:     cfg.Graph.PNGPath,
			Renderer: livegraph.NewImageRenderer(cfg.Graph.Width, cfg.Graph.Height),
		})
		if err != nil {
			return err
		}
		if err := graph.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := graph.Stop(); err != nil {
				log.Warnf("graph: stop: %v", err)
			}
		}()
		log.Printf("graph: plotting %s to %s", cfg.Graph.Series, cfg.Graph.PNGPath)
	}

	source := cfg.IMU.Name
	if mock || cfg.IMU.Transport == "mock" {
		source = "mock"
	}
	loop := NewOrientationLoop(src.Samples, filter, NewMQTTPublisher(client), graph, LoopOptions{
		Interval:   cfg.IMU.SampleInterval,
		PoseTopic:  cfg.Topics.Pose,
		RawTopic:   cfg.Topics.Raw,
		Source:     source,
		FilterKind: cfg.Filter.Kind,
		Series:     cfg.Graph.Series,
	})
	return loop.Run(ctx)
}
