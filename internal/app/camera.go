// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/camera"
	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/livegraph"
)

// FrameSaver writes the stream's newest frame to Path whenever a new one
// has arrived since the last save.
type FrameSaver struct {
	Stream *camera.Stream
	Path   string

	lastSeq uint64
	saved   uint64
}

// SaveLatest writes the current frame if it is new. It reports whether a
// file was written.
func (f *FrameSaver) SaveLatest() (bool, error) {
	r := f.Stream.Snapshot()
	if !r.OK || r.Seq == f.lastSeq {
		return false, nil
	}
	if err := livegraph.WritePNG(f.Path, r.Value); err != nil {
		return false, err
	}
	f.lastSeq = r.Seq
	f.saved++
	return true, nil
}

// RunCamera captures frames in the background and saves the latest one
// every camera.interval until ctx is done or the camera fails.
func RunCamera(ctx context.Context, cfg *config.Config) error {
	dev := camera.NewStillCommand(cfg.Camera.Width, cfg.Camera.Height)
	dev.Command = cfg.Camera.Command

	stream := camera.NewStream(dev, camera.StreamOptions{
		Warmup:   cfg.Camera.Warmup,
		Interval: cfg.Camera.Interval,
		SwapRB:   cfg.Camera.SwapRB,
	})
	defer func() {
		if err := stream.Stop(); err != nil {
			log.Warnf("camera: stop: %v", err)
		}
	}()
	if err := stream.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	saver := &FrameSaver{Stream: stream, Path: cfg.Camera.OutputPath}
	ticker := time.NewTicker(cfg.Camera.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.WithField("saved", saver.saved).Info("camera: shutting down")
			return nil
		case <-ticker.C:
		}
		if err := stream.Err(); err != nil {
			return err
		}
		if ok, err := saver.SaveLatest(); err != nil {
			log.Warnf("camera: %v", err)
		} else if ok {
			log.WithField("path", saver.Path).Debug("camera: frame saved")
		}
	}
}
