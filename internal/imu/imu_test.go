// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/edl_robot/internal/orientation"
)

func near(a, b r3.Vector, tol float64) bool {
	return a.Sub(b).Norm() <= tol
}

func TestScaleForRanges(t *testing.T) {
	sc, err := ScaleForRanges(1, 2)
	if err != nil {
		t.Fatalf("ScaleForRanges: %v", err)
	}
	if sc.AccelLSBPerG != 8192 || sc.GyroLSBPerDPS != 32.8 {
		t.Fatalf("scale=%+v", sc)
	}
	if _, err := ScaleForRanges(4, 0); err == nil {
		t.Fatalf("expected accel range error")
	}
	if _, err := ScaleForRanges(0, 9); err == nil {
		t.Fatalf("expected gyro range error")
	}
	if got := RangeLabel(1, 2); got != "±4g, ±1000°/s" {
		t.Fatalf("label=%q", got)
	}
}

func TestParseFrame(t *testing.T) {
	if f, err := ParseFrame(""); err != nil || f != FrameNED {
		t.Fatalf("default frame=%q err=%v", f, err)
	}
	if f, err := ParseFrame("sensor"); err != nil || f != FrameSensor {
		t.Fatalf("frame=%q err=%v", f, err)
	}
	if _, err := ParseFrame("enu"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConverter_LevelDeviceReadsLevel(t *testing.T) {
	sc, _ := ScaleForRanges(0, 0)
	c := Converter{Scale: sc, Frame: FrameNED}
	s := c.Sample(Raw{Az: 16384, Mx: 200, MagValid: true}, 0.01)
	if !near(s.Accel, r3.Vector{Z: 1}, 1e-12) {
		t.Fatalf("accel=%v want (0,0,1)", s.Accel)
	}
	if s.DT != 0.01 {
		t.Fatalf("dt=%v", s.DT)
	}
	if !near(s.Mag, r3.Vector{X: 30}, 1e-9) {
		t.Fatalf("mag=%v want (30,0,0) µT", s.Mag)
	}
	p := orientation.AccelToPose(s.Accel.X, s.Accel.Y, s.Accel.Z)
	if math.Abs(p.Roll) > 1e-9 || math.Abs(p.Pitch) > 1e-9 {
		t.Fatalf("pose=%+v want level", p)
	}
}

func TestFrameNED_YawRateSign(t *testing.T) {
	// Turning clockwise seen from above spins about the chip's -Z axis.
	_, g := FrameNED.Remap(r3.Vector{}, r3.Vector{X: 1, Y: 2, Z: -10})
	if !near(g, r3.Vector{X: 2, Y: 1, Z: 10}, 1e-12) {
		t.Fatalf("gyro=%v", g)
	}
	a, _ := FrameSensor.Remap(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{})
	if !near(a, r3.Vector{X: 1, Y: 2, Z: 3}, 0) {
		t.Fatalf("sensor frame changed accel: %v", a)
	}
}

func TestConverter_InvalidMagIsZero(t *testing.T) {
	sc, _ := ScaleForRanges(0, 0)
	s := Converter{Scale: sc}.Sample(Raw{Az: 16384, Mx: 500}, 0.1)
	if s.Mag != (r3.Vector{}) {
		t.Fatalf("mag=%v want zero", s.Mag)
	}
}

func TestConverter_AppliesCalibration(t *testing.T) {
	sc, _ := ScaleForRanges(0, 0)
	cal := &Calibration{
		SchemaVersion: CalibrationSchema,
		GyroBiasFinal: Vec3{X: 10, Y: -5, Z: 2},
		AccelBias:     Vec3{X: 100, Y: 0, Z: -200},
		AccelScale:    Vec3{X: 16000, Y: 0, Z: 16200},
		MagOffset:     Vec3{X: 50, Y: 50, Z: 50},
		MagScale:      Vec3{X: 100, Y: 200, Z: 400},
	}
	c := Converter{Scale: sc, Frame: FrameSensor, Calib: cal}
	a, g, m := c.Physical(Raw{
		Ax: 16100, Ay: 16384, Az: 16000,
		Gx: 141, Gy: -5, Gz: 2,
		Mx: 150, My: 250, Mz: 50,
		MagValid: true,
	})
	if !near(a, r3.Vector{X: 1, Y: 1, Z: 1}, 1e-12) {
		t.Fatalf("accel=%v want (1,1,1)", a)
	}
	if !near(g, r3.Vector{X: 1}, 1e-12) {
		t.Fatalf("gyro=%v want (1,0,0)", g)
	}
	if !near(m, r3.Vector{X: 1, Y: 1, Z: 0}, 1e-12) {
		t.Fatalf("mag=%v want (1,1,0)", m)
	}
}

func TestCalibration_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.json")
	want := &Calibration{
		SchemaVersion: CalibrationSchema,
		IMU:           "primary",
		GyroBiasFinal: Vec3{X: 1.5},
		AccelScale:    Vec3{X: 16384, Y: 16384, Z: 16384},
		MagScale:      Vec3{X: 1, Y: 1, Z: 1},
		Notes:         []string{"bench"},
	}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if got.IMU != "primary" || got.GyroBiasFinal != want.GyroBiasFinal || got.AccelScale != want.AccelScale {
		t.Fatalf("got=%+v", got)
	}
}

func TestLoadCalibration_Rejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"schema.json": `{"schema_version": 7}`,
		"scale.json":  `{"schema_version": 1, "accel_scale": {"x": -1}}`,
		"broken.json": `{"schema_version": `,
	}
	for name, body := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadCalibration(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	p := filepath.Join(dir, "schema.json")
	if _, err := LoadCalibration(p); !errors.Is(err, ErrBadCalibration) {
		t.Fatalf("err=%v want ErrBadCalibration", err)
	}
	if _, err := LoadCalibration(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want ErrNotExist", err)
	}
}

func TestAccel6Point(t *testing.T) {
	means := map[string]Vec3{
		"+X": {X: 16484}, "-X": {X: -16284},
		"+Y": {Y: 16000}, "-Y": {Y: -16000},
		"+Z": {Z: 16584}, "-Z": {Z: -16184},
	}
	bias, scale, err := Accel6Point(means)
	if err != nil {
		t.Fatalf("Accel6Point: %v", err)
	}
	if bias != (Vec3{X: 100, Y: 0, Z: 200}) {
		t.Fatalf("bias=%+v", bias)
	}
	if scale != (Vec3{X: 16384, Y: 16000, Z: 16384}) {
		t.Fatalf("scale=%+v", scale)
	}
	if c := GravityConsistency(scale); c < 0.9 {
		t.Fatalf("consistency=%v want high", c)
	}

	delete(means, "-Z")
	if _, _, err := Accel6Point(means); err == nil {
		t.Fatalf("expected error for missing pose")
	}
	flat := map[string]Vec3{}
	for _, p := range Accel6Poses {
		flat[p] = Vec3{}
	}
	if _, _, err := Accel6Point(flat); err == nil {
		t.Fatalf("expected error for no gravity separation")
	}
}

func TestMagMinMax_Sphere(t *testing.T) {
	var samples []Vec3
	off := Vec3{X: 40, Y: -20, Z: 5}
	for i := 0; i < 36; i++ {
		for j := 1; j < 18; j++ {
			th := float64(i) * 10 * math.Pi / 180
			ph := float64(j) * 10 * math.Pi / 180
			samples = append(samples, Vec3{
				X: off.X + 300*math.Sin(ph)*math.Cos(th),
				Y: off.Y + 300*math.Sin(ph)*math.Sin(th),
				Z: off.Z + 300*math.Cos(ph),
			})
		}
	}
	samples = append(samples, Vec3{X: off.X, Y: off.Y, Z: off.Z + 300}, Vec3{X: off.X, Y: off.Y, Z: off.Z - 300})

	offset, half, conf, notes := MagMinMax(samples)
	if math.Abs(offset.X-off.X) > 1 || math.Abs(offset.Y-off.Y) > 1 || math.Abs(offset.Z-off.Z) > 1e-9 {
		t.Fatalf("offset=%+v want ~%+v", offset, off)
	}
	if math.Abs(half.X-300) > 1 || math.Abs(half.Z-300) > 1e-9 {
		t.Fatalf("half range=%+v", half)
	}
	if conf < 0.8 || len(notes) != 0 {
		t.Fatalf("conf=%v notes=%v", conf, notes)
	}

	_, half, conf, notes = MagMinMax([]Vec3{{X: 1}, {X: 1.2}})
	if half != (Vec3{X: 1, Y: 1, Z: 1}) || conf != confFloor || len(notes) != 1 {
		t.Fatalf("degenerate: half=%+v conf=%v notes=%v", half, conf, notes)
	}
}

func TestComputeStatsAndStillness(t *testing.T) {
	st := ComputeStats([]Vec3{{X: 1, Y: 10}, {X: 3, Y: 10}}, time.Second)
	if st.Samples != 2 || st.Mean != (Vec3{X: 2, Y: 10}) || st.StdDev != (Vec3{X: 1}) {
		t.Fatalf("stats=%+v", st)
	}
	if c := StillnessConfidence(Vec3{X: 1}); c != 1 {
		t.Fatalf("still=%v want 1", c)
	}
	if c := StillnessConfidence(Vec3{Z: 50}); c != confFloor {
		t.Fatalf("moving=%v want %v", c, confFloor)
	}
}

type countingSource struct {
	n   int
	err error
}

func (c *countingSource) ReadRaw() (Raw, error) {
	if c.err != nil {
		return Raw{}, c.err
	}
	c.n++
	return Raw{Gx: int16(c.n)}, nil
}

func TestCapture(t *testing.T) {
	src := &countingSource{}
	vals, st, err := Capture(context.Background(), src, 30*time.Millisecond, time.Millisecond, GyroAxis)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(vals) == 0 || st.Samples != len(vals) || vals[0].X != 1 {
		t.Fatalf("vals=%d stats=%+v", len(vals), st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vals, st, err = Capture(ctx, &countingSource{}, time.Hour, time.Millisecond, GyroAxis)
	if err != nil || len(vals) != 1 || len(st.Notes) != 1 {
		t.Fatalf("cancelled capture: vals=%d notes=%v err=%v", len(vals), st.Notes, err)
	}

	boom := errors.New("bus error")
	if _, _, err := Capture(context.Background(), &countingSource{err: boom}, time.Second, time.Millisecond, AccelAxis); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}

func TestSampleSource(t *testing.T) {
	sc, _ := ScaleForRanges(0, 0)
	src := NewSampleSource(&countingSource{}, Converter{Scale: sc, Frame: FrameSensor})
	if _, ok := src.LastRaw(); ok {
		t.Fatalf("LastRaw before any read")
	}
	s, err := src.ReadSample()
	if err != nil {
		t.Fatalf("ReadSample: %v", err)
	}
	if s.DT != 0 || !near(s.Gyro, r3.Vector{X: 1.0 / 131}, 1e-12) {
		t.Fatalf("sample=%+v", s)
	}
	raw, ok := src.LastRaw()
	if !ok || raw.Gx != 1 {
		t.Fatalf("last=%+v ok=%v", raw, ok)
	}

	boom := errors.New("nack")
	if _, err := NewSampleSource(&countingSource{err: boom}, Converter{Scale: sc}).ReadSample(); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}
