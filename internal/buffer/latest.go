// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package buffer

import (
	"context"
	"sync"
	"time"
)

// ProduceFunc produces the next value. It may block on hardware; it must
// not touch the Latest it feeds.
type ProduceFunc[T any] func(ctx context.Context) (T, error)

// LatestOptions configures a Latest.
type LatestOptions struct {
	// Name prefixes DeviceError ops, e.g. "camera".
	Name string
	// Interval is the pause between producer iterations. Zero means back-to-back.
	Interval time.Duration
	// StopTimeout bounds Stop's wait for the producer.
	StopTimeout time.Duration
	// Release frees the hardware handle. Called exactly once, from Stop.
	Release func() error
}

// Reading is a consistent copy of the slot.
type Reading[T any] struct {
	Value     T
	OK        bool
	Seq       uint64
	UpdatedAt time.Time
	Err       error
}

// Latest is a single-slot, last-write-wins buffer fed by a background
// producer. Readers never block on the producer and may skip values.
// One producer and any number of readers per instance.
type Latest[T any] struct {
	opts    LatestOptions
	produce ProduceFunc[T]
	worker  *Worker

	releaseOnce sync.Once
	releaseErr  error

	mu        sync.Mutex
	value     T
	have      bool
	seq       uint64
	updatedAt time.Time
	lastErr   error
	stopped   bool
}

// NewLatest returns a stopped buffer around produce.
func NewLatest[T any](produce ProduceFunc[T], opts LatestOptions) *Latest[T] {
	if opts.Name == "" {
		opts.Name = "producer"
	}
	return &Latest[T]{
		opts:    opts,
		produce: produce,
		worker:  NewWorker(opts.StopTimeout),
	}
}

// Start begins the producer loop. A second Start while running returns
// ErrAlreadyRunning.
func (l *Latest[T]) Start(ctx context.Context) error {
	return l.worker.Start(ctx, l.run)
}

// Running reports whether the producer loop is active.
func (l *Latest[T]) Running() bool {
	return l.worker.Running()
}

func (l *Latest[T]) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		v, err := l.produce(ctx)
		if err != nil {
			// Devices report cancellation their own way (a killed process
			// is an ExitError), so any failure after cancel is a stop.
			if ctx.Err() != nil {
				return
			}
			l.mu.Lock()
			l.lastErr = &DeviceError{Op: l.opts.Name, Err: err}
			l.mu.Unlock()
			return
		}

		l.mu.Lock()
		if l.stopped {
			// Stop timed out on us; the slot is no longer ours to write.
			l.mu.Unlock()
			return
		}
		l.value = v
		l.have = true
		l.seq++
		l.updatedAt = time.Now()
		l.mu.Unlock()

		if !sleepCtx(ctx, l.opts.Interval) {
			return
		}
	}
}

// Read returns the most recent value, or ok=false if nothing has been produced.
func (l *Latest[T]) Read() (v T, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.have
}

// Snapshot returns the slot together with its sequence number and last error.
func (l *Latest[T]) Snapshot() Reading[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Reading[T]{
		Value:     l.value,
		OK:        l.have,
		Seq:       l.seq,
		UpdatedAt: l.updatedAt,
		Err:       l.lastErr,
	}
}

// Err returns the error that ended the producer loop, if any.
func (l *Latest[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Stop signals the producer, waits for it (bounded), clears the slot and
// releases the hardware. Safe to call without Start and more than once.
func (l *Latest[T]) Stop() error {
	stopErr := l.worker.Stop()

	l.mu.Lock()
	var zero T
	l.stopped = true
	l.value = zero
	l.have = false
	l.mu.Unlock()

	// Release even after a timeout: closing the device may unblock a stuck capture.
	l.releaseOnce.Do(func() {
		if l.opts.Release != nil {
			l.releaseErr = l.opts.Release()
		}
	})
	if stopErr != nil {
		return stopErr
	}
	return l.releaseErr
}
