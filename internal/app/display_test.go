// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/edl_robot/internal/livegraph"
	"github.com/relabs-tech/edl_robot/internal/orientation"
)

type fakeScreen struct {
	mu     sync.Mutex
	frames []image.Image
	err    error
}

func (s *fakeScreen) Bounds() image.Rectangle { return image.Rect(0, 0, oledWidth, oledHeight) }

func (s *fakeScreen) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, src)
	return s.err
}

func (s *fakeScreen) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestPoseFrame(t *testing.T) {
	waiting := PoseFrame(orientation.Pose{}, false)
	if litPixels(waiting) == 0 {
		t.Fatalf("waiting frame is blank")
	}
	pose := PoseFrame(orientation.Pose{Roll: 10, Pitch: -5, Yaw: 170}, true)
	if litPixels(pose) == 0 {
		t.Fatalf("pose frame is blank")
	}
	if b := pose.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Fatalf("bounds=%v", b)
	}
}

func TestScreenSink_DrawsGraph(t *testing.T) {
	scr := &fakeScreen{}
	g, err := livegraph.New(livegraph.Options{Capacity: oledWidth}, &ScreenSink{Screen: scr, Renderer: NewOLEDRenderer()})
	if err != nil {
		t.Fatalf("livegraph.New: %v", err)
	}
	for i := 0; i < 20; i++ {
		g.AddDataPoint(float64(i%7), nil, true)
	}
	if err := g.RenderOnce(); err != nil {
		t.Fatalf("RenderOnce: %v", err)
	}
	if scr.count() != 1 {
		t.Fatalf("frames=%d want 1", scr.count())
	}
	frame := scr.frames[0].(*image1bit.VerticalLSB)
	if litPixels(frame) == 0 {
		t.Fatalf("graph frame is blank")
	}

	scr.err = errors.New("i2c nack")
	if err := g.RenderOnce(); !errors.Is(err, scr.err) {
		t.Fatalf("err=%v want %v", err, scr.err)
	}
}

func TestRunPoseScreen(t *testing.T) {
	scr := &fakeScreen{}
	state := &poseDisplay{}
	state.set(orientation.Pose{Yaw: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runPoseScreen(ctx, scr, state, time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for scr.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("no redraws")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("runPoseScreen: %v", err)
	}
}
