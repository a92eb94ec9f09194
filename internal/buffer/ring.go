// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidCapacity = errors.New("buffer: capacity must be positive")

// Point is one time-series entry. Time is seconds since the ring's epoch.
type Point struct {
	Time         float64 `json:"t"`
	Value        float64 `json:"v"`
	Secondary    float64 `json:"s,omitempty"`
	HasSecondary bool    `json:"has_s,omitempty"`
	Valid        bool    `json:"valid"`
}

// Ring is a fixed-capacity FIFO of points. Adding past capacity evicts the
// oldest entry. All methods are safe for concurrent use.
type Ring struct {
	epoch time.Time
	now   func() time.Time

	mu     sync.Mutex
	points []Point
	head   int // index of the oldest point
	n      int
}

// NewRing returns an empty ring holding at most capacity points.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Ring{
		epoch:  time.Now(),
		now:    time.Now,
		points: make([]Point, capacity),
	}, nil
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.points) }

// Len returns the number of stored points.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Add appends p, evicting the oldest point when full.
func (r *Ring) Add(p Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(p)
}

func (r *Ring) addLocked(p Point) {
	if r.n < len(r.points) {
		r.points[(r.head+r.n)%len(r.points)] = p
		r.n++
		return
	}
	r.points[r.head] = p
	r.head = (r.head + 1) % len(r.points)
}

// AddDataPoint appends a value stamped with the time since the ring was
// created. secondary may be nil.
func (r *Ring) AddDataPoint(value float64, secondary *float64, valid bool) {
	p := Point{Value: value, Valid: valid}
	if secondary != nil {
		p.Secondary = *secondary
		p.HasSecondary = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Time = r.now().Sub(r.epoch).Seconds()
	r.addLocked(p)
}

// Snapshot copies the points out, oldest first.
func (r *Ring) Snapshot() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Point, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.points[(r.head+i)%len(r.points)]
	}
	return out
}

// Reset drops every point and restarts the clock.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.n = 0
	r.epoch = r.now()
}
