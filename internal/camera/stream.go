// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package camera

import (
	"context"
	"image"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/buffer"
)

// DefaultWarmup matches the sensor settle time before the first usable frame.
const DefaultWarmup = 2 * time.Second

type StreamOptions struct {
	// Warmup delays Start's return so the sensor can settle.
	Warmup time.Duration
	// Interval is the pause between captures.
	Interval time.Duration
	// StopTimeout bounds Stop's wait for an in-flight capture.
	StopTimeout time.Duration
	// SwapRB stores frames with red and blue exchanged (BGR consumers).
	SwapRB bool
}

// Stream owns a Device and keeps the most recent frame.
type Stream struct {
	dev    Device
	opts   StreamOptions
	frames *buffer.Latest[image.Image]
}

// NewStream wraps dev. The stream takes ownership: Stop closes the device.
func NewStream(dev Device, opts StreamOptions) *Stream {
	s := &Stream{dev: dev, opts: opts}
	s.frames = buffer.NewLatest(s.capture, buffer.LatestOptions{
		Name:        "camera",
		Interval:    opts.Interval,
		StopTimeout: opts.StopTimeout,
		Release:     dev.Close,
	})
	return s
}

func (s *Stream) capture(ctx context.Context) (image.Image, error) {
	img, err := s.dev.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if s.opts.SwapRB {
		return SwapRB(img), nil
	}
	return img, nil
}

// Start launches the capture loop and waits out the warm-up. Cancelling ctx
// during warm-up returns ctx.Err() with the loop still running; call Stop.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.frames.Start(ctx); err != nil {
		return err
	}
	log.Printf("camera: capture loop started (warmup %s)", s.opts.Warmup)
	if s.opts.Warmup <= 0 {
		return nil
	}
	t := time.NewTimer(s.opts.Warmup)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Frame returns the latest frame without waiting for the producer.
func (s *Stream) Frame() (image.Image, bool) {
	return s.frames.Read()
}

// Snapshot returns the latest frame with its sequence number.
func (s *Stream) Snapshot() buffer.Reading[image.Image] {
	return s.frames.Snapshot()
}

// Err returns the capture failure that ended the loop, as *buffer.DeviceError.
func (s *Stream) Err() error { return s.frames.Err() }

// Running reports whether the capture loop is active.
func (s *Stream) Running() bool { return s.frames.Running() }

// Stop joins the capture loop, then closes the device.
func (s *Stream) Stop() error {
	err := s.frames.Stop()
	log.Printf("camera: stopped")
	return err
}
