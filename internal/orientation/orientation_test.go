// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestWrapDeg(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{179.5, 179.5},
		{180, -180},
		{-180, -180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{725, 5},
		{-725, -5},
	}
	for _, c := range cases {
		if got := WrapDeg(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("WrapDeg(%v)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAngleDiff_ShortestSignedDistance(t *testing.T) {
	if got := AngleDiff(-179, 179); math.Abs(got-2) > 1e-9 {
		t.Fatalf("got=%v want=2", got)
	}
	if got := AngleDiff(179, -179); math.Abs(got+2) > 1e-9 {
		t.Fatalf("got=%v want=-2", got)
	}
	if got := AngleDiff(10, 350); math.Abs(got-20) > 1e-9 {
		t.Fatalf("got=%v want=20", got)
	}
}

func TestComputePoseFromAccel_Level(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 1)
	if p != (Pose{}) {
		t.Fatalf("pose=%+v want zero", p)
	}
	p = AccelToPose(0, 1, 0)
	if math.Abs(p.Roll-90) > 1e-9 || math.Abs(p.Pitch) > 1e-9 {
		t.Fatalf("pose=%+v want roll=90", p)
	}
}

func TestTiltCompensatedHeading_MatchesSyntheticPose(t *testing.T) {
	poses := []Pose{
		{Roll: 0, Pitch: 0, Yaw: 0},
		{Roll: 30, Pitch: 10, Yaw: 45},
		{Roll: -45, Pitch: -20, Yaw: -135},
		{Roll: 170, Pitch: 60, Yaw: 179},
	}
	for _, want := range poses {
		s := SyntheticSample(want, 0, 0, 0)
		ref, tilt, heading := ReferencePose(s)
		if !tilt || !heading {
			t.Fatalf("pose %+v: tilt=%v heading=%v", want, tilt, heading)
		}
		if math.Abs(AngleDiff(ref.Roll, want.Roll)) > 1e-6 ||
			math.Abs(ref.Pitch-want.Pitch) > 1e-6 ||
			math.Abs(AngleDiff(ref.Yaw, want.Yaw)) > 1e-6 {
			t.Fatalf("ref=%+v want %+v", ref, want)
		}
	}
}

func TestTiltCompensatedHeading_ZeroField(t *testing.T) {
	if _, ok := TiltCompensatedHeading(r3.Vector{}, 0, 0); ok {
		t.Fatalf("expected ok=false for zero field")
	}
}

func TestEulerRates_InvertSyntheticGyro(t *testing.T) {
	p := Pose{Roll: 25, Pitch: -35, Yaw: 80}
	s := SyntheticSample(p, 3, -4, 12)
	dr, dp, dy := eulerRates(p.Roll, p.Pitch, s.Gyro)
	if math.Abs(dr-3) > 1e-9 || math.Abs(dp+4) > 1e-9 || math.Abs(dy-12) > 1e-9 {
		t.Fatalf("rates=(%v,%v,%v) want (3,-4,12)", dr, dp, dy)
	}
}

func TestMockSource_ReadSample(t *testing.T) {
	src := NewMockSource()
	s, err := src.ReadSample()
	if err != nil {
		t.Fatalf("ReadSample: %v", err)
	}
	if math.Abs(s.Accel.Norm()-1) > 1e-9 || math.Abs(s.Mag.Norm()-1) > 1e-9 {
		t.Fatalf("sample=%+v want unit accel and mag", s)
	}
}
