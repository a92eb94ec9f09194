// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// MockSource generates noise-free samples for a smoothly changing pose so
// the whole pipeline can run without hardware.
type MockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock source whose clock starts now.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now(), now: time.Now}
}

// Truth returns the pose the source is simulating t seconds after start.
func (m *MockSource) Truth(t float64) Pose {
	return Pose{
		Roll:  20 * math.Sin(t),
		Pitch: 15 * math.Cos(t*0.7),
		Yaw:   WrapDeg(t * 30),
	}
}

// ReadSample returns the sample a perfect IMU would read at the current time.
func (m *MockSource) ReadSample() (Sample, error) {
	return m.SampleAt(m.now().Sub(m.start).Seconds()), nil
}

// SampleAt synthesizes accel, gyro and mag for the truth pose at t seconds.
func (m *MockSource) SampleAt(t float64) Sample {
	p := m.Truth(t)
	rollRate := 20 * math.Cos(t)
	pitchRate := -15 * 0.7 * math.Sin(t*0.7)
	yawRate := 30.0
	return SyntheticSample(p, rollRate, pitchRate, yawRate)
}

// SyntheticSample builds the sample seen by a sensor at pose p rotating with
// the given Euler rates (deg/s). The field points north with no dip.
func SyntheticSample(p Pose, rollRate, pitchRate, yawRate float64) Sample {
	sr, cr := math.Sincos(p.Roll * deg2rad)
	sp, cp := math.Sincos(p.Pitch * deg2rad)
	sy, cy := math.Sincos(p.Yaw * deg2rad)

	gravity := r3.Vector{X: -sp, Y: sr * cp, Z: cr * cp}
	mag := r3.Vector{
		X: cy * cp,
		Y: cy*sp*sr - sy*cr,
		Z: cy*sp*cr + sy*sr,
	}
	gyro := r3.Vector{
		X: rollRate - sp*yawRate,
		Y: cr*pitchRate + sr*cp*yawRate,
		Z: -sr*pitchRate + cr*cp*yawRate,
	}
	return Sample{Accel: gravity, Gyro: gyro, Mag: mag}
}
