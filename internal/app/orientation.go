// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/buffer"
	"github.com/relabs-tech/edl_robot/internal/imu"
	"github.com/relabs-tech/edl_robot/internal/livegraph"
	"github.com/relabs-tech/edl_robot/internal/orientation"
)

// PoseMessage is the payload published on the pose topic.
type PoseMessage struct {
	orientation.Pose
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
	Filter string    `json:"filter"`
	// Reference is the single-sample accel/mag pose, when one exists.
	Reference *orientation.Pose `json:"reference,omitempty"`
	// HasHeading is false when Reference.Yaw is not backed by the magnetometer.
	HasHeading bool `json:"has_heading"`
}

// rawReporter is implemented by sources that can expose the raw reading
// behind the last sample.
type rawReporter interface {
	LastRaw() (imu.Raw, bool)
}

type LoopOptions struct {
	Interval   time.Duration
	PoseTopic  string
	RawTopic   string
	Source     string
	FilterKind string
	// Series picks the pose angle fed to the graph ("roll", "pitch", "yaw").
	Series string
}

// OrientationLoop polls a sample source, drives the filter and publishes
// every estimate. The loop owns the filter.
type OrientationLoop struct {
	src    orientation.SampleSource
	filter orientation.Filter
	pub    Publisher
	graph  *livegraph.Graph
	opts   LoopOptions
	now    func() time.Time

	mu     sync.RWMutex
	pose   orientation.Pose
	seeded bool
	last   time.Time
	steps  uint64
}

// NewOrientationLoop wires a loop. pub and graph may be nil.
func NewOrientationLoop(src orientation.SampleSource, f orientation.Filter, pub Publisher, graph *livegraph.Graph, opts LoopOptions) *OrientationLoop {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.Series == "" {
		opts.Series = "yaw"
	}
	return &OrientationLoop{
		src:    src,
		filter: f,
		pub:    pub,
		graph:  graph,
		opts:   opts,
		now:    time.Now,
	}
}

// Pose returns the latest estimate and whether the filter has been seeded.
func (l *OrientationLoop) Pose() (orientation.Pose, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pose, l.seeded
}

// Steps counts successful filter updates, including the seed.
func (l *OrientationLoop) Steps() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.steps
}

// Step reads one sample and advances the filter. The first usable sample
// seeds the filter; after that dt is measured on the wall clock.
func (l *OrientationLoop) Step() (orientation.Pose, error) {
	s, err := l.src.ReadSample()
	if err != nil {
		return orientation.Pose{}, &buffer.DeviceError{Op: l.opts.Source, Err: err}
	}
	now := l.now()

	l.mu.Lock()
	seeded, last := l.seeded, l.last
	l.mu.Unlock()

	var pose orientation.Pose
	if !seeded {
		if err := l.filter.InitializeFromSample(s); err != nil {
			return orientation.Pose{}, fmt.Errorf("seed filter: %w", err)
		}
		pose = l.filter.Pose()
	} else {
		s.DT = now.Sub(last).Seconds()
		pose, err = l.filter.Update(s)
		if err != nil {
			return orientation.Pose{}, err
		}
	}

	l.mu.Lock()
	l.pose, l.seeded, l.last = pose, true, now
	l.steps++
	l.mu.Unlock()

	l.emit(pose, s, now)
	return pose, nil
}

func (l *OrientationLoop) emit(pose orientation.Pose, s orientation.Sample, now time.Time) {
	msg := PoseMessage{
		Pose:   pose,
		Time:   now,
		Source: l.opts.Source,
		Filter: l.opts.FilterKind,
	}
	ref, haveTilt, haveHeading := orientation.ReferencePose(s)
	if haveTilt {
		msg.Reference = &ref
		msg.HasHeading = haveHeading
	}

	if l.graph != nil {
		v := SeriesValue(pose, l.opts.Series)
		var secondary *float64
		if haveTilt && (l.opts.Series != "yaw" || haveHeading) {
			r := SeriesValue(ref, l.opts.Series)
			secondary = &r
		}
		l.graph.AddDataPoint(v, secondary, true)
	}

	if l.pub == nil {
		return
	}
	if err := l.pub.Publish(l.opts.PoseTopic, msg); err != nil {
		log.Warnf("orientation: %v", err)
	}
	if rr, ok := l.src.(rawReporter); ok && l.opts.RawTopic != "" {
		if raw, ok := rr.LastRaw(); ok {
			if err := l.pub.Publish(l.opts.RawTopic, raw); err != nil {
				log.Warnf("orientation: %v", err)
			}
		}
	}
}

// Run steps the loop every Interval until ctx is done. Read and update
// failures are logged and the loop keeps polling.
func (l *OrientationLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{
		"source":   l.opts.Source,
		"filter":   l.opts.FilterKind,
		"interval": l.opts.Interval,
	}).Info("orientation: loop started")

	failures := 0
	for {
		select {
		case <-ctx.Done():
			log.WithField("steps", l.Steps()).Info("orientation: loop stopped")
			return nil
		case <-ticker.C:
		}

		pose, err := l.Step()
		if err != nil {
			failures++
			entry := log.WithField("consecutive", failures)
			var devErr *buffer.DeviceError
			switch {
			case errors.As(err, &devErr):
				entry.Warnf("orientation: %v", err)
			case errors.Is(err, orientation.ErrInvalidInterval):
				entry.Debugf("orientation: skipped sample: %v", err)
			default:
				entry.Warnf("orientation: update failed: %v", err)
			}
			continue
		}
		failures = 0
		log.WithFields(log.Fields{
			"roll":  fmt.Sprintf("%.2f", pose.Roll),
			"pitch": fmt.Sprintf("%.2f", pose.Pitch),
			"yaw":   fmt.Sprintf("%.2f", pose.Yaw),
		}).Debug("orientation: tick")
	}
}

// SeriesValue returns the named angle of p; unknown names select yaw.
func SeriesValue(p orientation.Pose, series string) float64 {
	switch series {
	case "roll":
		return p.Roll
	case "pitch":
		return p.Pitch
	default:
		return p.Yaw
	}
}
