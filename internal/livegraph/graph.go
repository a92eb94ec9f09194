// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package livegraph renders a time-series ring on a fixed cadence. Producers
// append points from any goroutine; the render loop snapshots the ring and
// hands the copy to its sinks without holding the ring lock.
package livegraph

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/buffer"
)

const (
	DefaultCapacity       = 200
	DefaultUpdateInterval = time.Second
)

// Snapshot is an immutable copy of the ring handed to sinks.
type Snapshot struct {
	Title   string         `json:"title"`
	Points  []buffer.Point `json:"points"`
	TakenAt time.Time      `json:"taken_at"`
}

// Last returns the newest point, if any.
func (s Snapshot) Last() (buffer.Point, bool) {
	if len(s.Points) == 0 {
		return buffer.Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Sink consumes snapshots. Render is never called concurrently for one Graph.
type Sink interface {
	Render(Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot) error

func (f SinkFunc) Render(s Snapshot) error { return f(s) }

// Options configures a Graph.
type Options struct {
	Title          string
	Capacity       int
	UpdateInterval time.Duration
	StopTimeout    time.Duration
}

// Graph is a ring of points plus a render loop.
type Graph struct {
	opts   Options
	ring   *buffer.Ring
	worker *buffer.Worker
	sinks  []Sink

	mu      sync.Mutex
	renders uint64
	lastErr error
}

// New builds a stopped graph. Zero options fall back to the defaults.
func New(opts Options, sinks ...Sink) (*Graph, error) {
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}
	ring, err := buffer.NewRing(opts.Capacity)
	if err != nil {
		return nil, err
	}
	return &Graph{
		opts:   opts,
		ring:   ring,
		worker: buffer.NewWorker(opts.StopTimeout),
		sinks:  sinks,
	}, nil
}

// AddDataPoint appends one point. secondary may be nil.
func (g *Graph) AddDataPoint(value float64, secondary *float64, valid bool) {
	g.ring.AddDataPoint(value, secondary, valid)
}

// Snapshot copies the current ring contents.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{
		Title:   g.opts.Title,
		Points:  g.ring.Snapshot(),
		TakenAt: time.Now(),
	}
}

// Start runs the render loop until Stop or ctx is done.
func (g *Graph) Start(ctx context.Context) error {
	return g.worker.Start(ctx, g.loop)
}

func (g *Graph) loop(ctx context.Context) {
	ticker := time.NewTicker(g.opts.UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.RenderOnce(); err != nil {
				log.WithField("graph", g.opts.Title).Warnf("livegraph: render error: %v", err)
			}
		}
	}
}

// RenderOnce snapshots the ring and renders it to every sink. Sink errors
// are joined; a failing sink does not stop the others.
func (g *Graph) RenderOnce() error {
	snap := g.Snapshot()
	var errs []error
	for _, s := range g.sinks {
		if err := s.Render(snap); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	g.mu.Lock()
	g.renders++
	g.lastErr = err
	g.mu.Unlock()
	return err
}

// Renders returns how many render passes have run.
func (g *Graph) Renders() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renders
}

// Err returns the error of the last render pass.
func (g *Graph) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Running reports whether the render loop is active.
func (g *Graph) Running() bool { return g.worker.Running() }

// Stop ends the render loop and waits for it. Idempotent.
func (g *Graph) Stop() error { return g.worker.Stop() }
