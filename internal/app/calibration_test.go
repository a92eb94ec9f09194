// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/edl_robot/internal/imu"
)

// operator answers a fixed number of prompts, one line per Read, and moves
// the simulated device into the next pose each time.
type operator struct {
	mu    sync.Mutex
	lines int
	limit int
	reads int
}

func (o *operator) Read(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lines >= o.limit {
		return 0, io.EOF
	}
	o.lines++
	p[0] = '\n'
	return 1, nil
}

func (o *operator) step() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reads++
	return o.lines, o.reads
}

// ReadRaw plays a device with gyro bias (5,-3,2), accel bias 100 counts on
// every axis and a magnetometer sphere of radius 300 around (200,-100,50).
func (o *operator) ReadRaw() (imu.Raw, error) {
	line, n := o.step()
	r := imu.Raw{Source: "test", Gx: 5, Gy: -3, Gz: 2, Ax: 100, Ay: 100, Az: 100 + 16384}
	switch {
	case line >= 2 && line <= 7:
		r.Ax, r.Ay, r.Az = 100, 100, 100
		v := int16(16384)
		if (line-2)%2 == 1 {
			v = -16384
		}
		switch (line - 2) / 2 {
		case 0:
			r.Ax += v
		case 1:
			r.Ay += v
		case 2:
			r.Az += v
		}
	case line >= 8:
		axes := [][3]int16{{300, 0, 0}, {-300, 0, 0}, {0, 300, 0}, {0, -300, 0}, {0, 0, 300}, {0, 0, -300}}
		a := axes[n%len(axes)]
		r.Mx, r.My, r.Mz = 200+a[0], -100+a[1], 50+a[2]
	}
	return r, nil
}

func fastTimings() CalibrationTimings {
	return CalibrationTimings{
		GyroStatic: 20 * time.Millisecond,
		AccelPose:  20 * time.Millisecond,
		Mag:        200 * time.Millisecond,
		Period:     time.Millisecond,
	}
}

func TestCalibrator_Run(t *testing.T) {
	op := &operator{limit: 8}
	var out strings.Builder
	c := &Calibrator{
		Src:     op,
		IMU:     "test",
		In:      bufio.NewReader(op),
		Out:     &out,
		Timings: fastTimings(),
	}
	cal, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	near := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-6 {
			t.Fatalf("%s: got=%v want=%v", name, got, want)
		}
	}
	near("gyro x", cal.GyroBiasFinal.X, 5)
	near("gyro y", cal.GyroBiasFinal.Y, -3)
	near("gyro z", cal.GyroBiasFinal.Z, 2)
	near("accel bias x", cal.AccelBias.X, 100)
	near("accel bias z", cal.AccelBias.Z, 100)
	near("accel scale y", cal.AccelScale.Y, 16384)
	near("mag offset x", cal.MagOffset.X, 200)
	near("mag offset y", cal.MagOffset.Y, -100)
	near("mag offset z", cal.MagOffset.Z, 50)
	near("mag scale x", cal.MagScale.X, 300)

	if len(cal.AccelPoseStats) != 6 {
		t.Fatalf("pose stats=%d want 6", len(cal.AccelPoseStats))
	}
	if cal.Confidence.GyroStatic != 1 || cal.Confidence.Overall <= 0.5 {
		t.Fatalf("confidence=%+v", cal.Confidence)
	}
	if err := cal.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.Contains(out.String(), "Pose -Z UP") {
		t.Fatalf("prompts missing:\n%s", out.String())
	}
}

func TestCalibrator_SkipMag(t *testing.T) {
	op := &operator{limit: 7}
	c := &Calibrator{
		Src:     op,
		In:      bufio.NewReader(op),
		Out:     io.Discard,
		Timings: fastTimings(),
		SkipMag: true,
	}
	cal, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cal.MagScale != (imu.Vec3{X: 1, Y: 1, Z: 1}) || cal.Confidence.Mag != 0 {
		t.Fatalf("mag=%+v conf=%v", cal.MagScale, cal.Confidence.Mag)
	}
}

func TestCalibrator_Cancelled(t *testing.T) {
	op := &operator{limit: 8}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Calibrator{Src: op, In: bufio.NewReader(op), Out: io.Discard, Timings: fastTimings()}
	if _, err := c.Run(ctx); err == nil {
		t.Fatalf("Run succeeded with a cancelled context")
	}
}
