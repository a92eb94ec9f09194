// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/relabs-tech/edl_robot/internal/buffer"
)

type fakeDevice struct {
	mu       sync.Mutex
	captures int
	closes   int
	fail     error
}

func (f *fakeDevice) Capture(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.captures++
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 200, G: 10, B: 20, A: 255})
	return img, nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func waitFrame(t *testing.T, s *Stream) image.Image {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if img, ok := s.Frame(); ok {
			return img
		}
		if time.Now().After(deadline) {
			t.Fatalf("no frame after 2s (err=%v)", s.Err())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStream_LatestFrameAndStop(t *testing.T) {
	dev := &fakeDevice{}
	s := NewStream(dev, StreamOptions{Interval: time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	img := waitFrame(t, s)
	if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 200 {
		t.Fatalf("red=%d want 200", r>>8)
	}
	if err := s.Start(context.Background()); !errors.Is(err, buffer.ErrAlreadyRunning) {
		t.Fatalf("second Start err=%v", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if _, ok := s.Frame(); ok {
		t.Fatalf("frame still readable after Stop")
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closes != 1 {
		t.Fatalf("device closed %d times want 1", dev.closes)
	}
}

func TestStream_SwapRB(t *testing.T) {
	s := NewStream(&fakeDevice{}, StreamOptions{SwapRB: true})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	r, _, b, _ := waitFrame(t, s).At(0, 0).RGBA()
	if r>>8 != 20 || b>>8 != 200 {
		t.Fatalf("r=%d b=%d want swapped", r>>8, b>>8)
	}
}

// blockingDevice holds each capture until cancelled, then fails the way a
// killed capture process does.
type blockingDevice struct {
	started chan struct{}
	once    sync.Once
}

func (d *blockingDevice) Capture(ctx context.Context) (image.Image, error) {
	d.once.Do(func() { close(d.started) })
	<-ctx.Done()
	return nil, errors.New("rpicam-still: signal: killed")
}

func (d *blockingDevice) Close() error { return nil }

func TestStream_StopDuringCaptureIsClean(t *testing.T) {
	dev := &blockingDevice{started: make(chan struct{})}
	s := NewStream(dev, StreamOptions{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-dev.started
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("err=%v want nil after Stop", err)
	}
}

func TestStream_CaptureFailureIsDeviceError(t *testing.T) {
	boom := errors.New("mmal timeout")
	s := NewStream(&fakeDevice{fail: boom}, StreamOptions{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for s.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("no error recorded")
		}
		time.Sleep(2 * time.Millisecond)
	}
	var de *buffer.DeviceError
	if !errors.As(s.Err(), &de) || !errors.Is(de, boom) || de.Op != "camera" {
		t.Fatalf("err=%v", s.Err())
	}
}

func TestStream_WarmupHonoursContext(t *testing.T) {
	s := NewStream(&fakeDevice{}, StreamOptions{Warmup: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStillCommand_DecodesBMP(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	path := filepath.Join(t.TempDir(), "frame.bmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bmp.Encode(f, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	dev := &StillCommand{Command: "cat", Args: []string{path}}
	img, err := dev.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("bounds=%v", img.Bounds())
	}
	r, g, b, _ := img.At(1, 2).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Fatalf("pixel=(%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestStillCommand_CommandFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	dev := &StillCommand{Command: "false"}
	if _, err := dev.Capture(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewStillCommand_Args(t *testing.T) {
	dev := NewStillCommand(320, 240)
	if dev.Command != DefaultStillCommand {
		t.Fatalf("command=%q", dev.Command)
	}
	want := "-n -t 1 --width 320 --height 240 -e bmp -o -"
	got := ""
	for i, a := range dev.Args {
		if i > 0 {
			got += " "
		}
		got += a
	}
	if got != want {
		t.Fatalf("args=%q want %q", got, want)
	}
}
