// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package buffer decouples a background producer from a consumer running at
// its own cadence: a single-slot latest value (camera frames) and a
// fixed-capacity time-series ring (live graphs).
package buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultStopTimeout bounds how long Stop waits for the goroutine to exit.
const DefaultStopTimeout = 3 * time.Second

var (
	ErrAlreadyRunning  = errors.New("buffer: already running")
	ErrShutdownTimeout = errors.New("buffer: background task did not stop in time")
	ErrClosed          = errors.New("buffer: stopped")
)

// DeviceError reports a hardware capture/read failure seen by a producer.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device error: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Worker runs one background goroutine with an explicit start/stop
// lifecycle. Stop is terminal: a stopped Worker cannot be restarted.
type Worker struct {
	stopTimeout time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker returns a worker whose Stop waits at most stopTimeout
// (DefaultStopTimeout when zero or negative).
func NewWorker(stopTimeout time.Duration) *Worker {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Worker{stopTimeout: stopTimeout}
}

// Start launches fn on its own goroutine. The context passed to fn is
// cancelled by Stop or when ctx is done.
func (w *Worker) Start(ctx context.Context, fn func(ctx context.Context)) error {
	if ctx == nil {
		return fmt.Errorf("buffer: ctx is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.running = true

	go func() {
		defer close(done)
		defer func() {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
		}()
		fn(runCtx)
	}()
	return nil
}

// Running reports whether the goroutine is still executing.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stop cancels the goroutine and waits for it to return. It is safe to
// call before Start and more than once.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(w.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w (waited %s)", ErrShutdownTimeout, w.stopTimeout)
	}
}

// sleepCtx waits for d or until ctx is done; it reports false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
