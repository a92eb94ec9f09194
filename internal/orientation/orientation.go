// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation estimates roll, pitch and yaw from accelerometer,
// gyroscope and magnetometer samples.
//
// Body frame: x forward, y right, z down. The accelerometer is expected to
// report the gravity direction, so a level sensor at rest reads (0, 0, +1g).
// Raw hardware axes must be remapped by the caller (see imu.Frame).
package orientation

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

var (
	// ErrInvalidInterval is returned by Update when dt is not a positive finite number.
	ErrInvalidInterval = errors.New("orientation: invalid interval")
	// ErrInvalidSample is returned by Update when a vector component is NaN or infinite.
	ErrInvalidSample = errors.New("orientation: invalid sample")
)

// Pose is the canonical representation of orientation for the app, in degrees.
// Roll and yaw are in [-180, 180), pitch in [-90, 90].
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Sample is one fused-filter input: accel (any unit), gyro (deg/s), mag
// (any unit) and the seconds elapsed since the previous sample.
type Sample struct {
	Accel r3.Vector
	Gyro  r3.Vector
	Mag   r3.Vector
	DT    float64
}

// SampleSource is anything that can provide sensor samples over time:
// real IMU, mock source, replay. DT is filled in by the polling loop.
type SampleSource interface {
	ReadSample() (Sample, error)
}

// Filter is an orientation estimator. Implementations are not safe for
// concurrent use; the polling loop that drives Update owns the filter.
type Filter interface {
	Initialize(p Pose)
	InitializeFromSample(s Sample) error
	Update(s Sample) (Pose, error)
	Pose() Pose
}

// New returns the filter named by kind ("kalman" or "complementary").
func New(kind string, p Params) (Filter, error) {
	switch kind {
	case "", "kalman":
		return NewKalman(p), nil
	case "complementary":
		return NewComplementary(p), nil
	default:
		return nil, fmt.Errorf("orientation: unknown filter kind %q", kind)
	}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is set to 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  WrapDeg(rollRad * rad2deg),
		Pitch: pitchRad * rad2deg,
	}
}

// AccelToPose computes roll and pitch from raw accelerometer values (in any unit).
// This is a convenience alias for ComputePoseFromAccel.
func AccelToPose(ax, ay, az float64) Pose {
	return ComputePoseFromAccel(ax, ay, az)
}

// TiltCompensatedHeading returns the magnetic heading in degrees for a
// magnetometer reading taken at the given roll and pitch (degrees).
// ok is false when the field vector has no usable magnitude.
func TiltCompensatedHeading(mag r3.Vector, roll, pitch float64) (heading float64, ok bool) {
	if mag.Norm2() == 0 {
		return 0, false
	}
	m := mag.Normalize()
	sr, cr := math.Sincos(roll * deg2rad)
	sp, cp := math.Sincos(pitch * deg2rad)

	xh := m.X*cp + m.Y*sr*sp + m.Z*cr*sp
	yh := m.Y*cr - m.Z*sr
	if xh == 0 && yh == 0 {
		return 0, false
	}
	return WrapDeg(math.Atan2(-yh, xh) * rad2deg), true
}

// ReferencePose is the drift-free (but noisy) orientation implied by a
// single sample: gravity gives roll/pitch, the magnetometer gives yaw.
// haveTilt and haveHeading report which parts could be computed.
func ReferencePose(s Sample) (p Pose, haveTilt, haveHeading bool) {
	if s.Accel.Norm2() > 0 {
		p = ComputePoseFromAccel(s.Accel.X, s.Accel.Y, s.Accel.Z)
		haveTilt = true
	}
	if haveTilt {
		p.Yaw, haveHeading = TiltCompensatedHeading(s.Mag, p.Roll, p.Pitch)
	}
	return p, haveTilt, haveHeading
}

func validate(s Sample) error {
	if math.IsNaN(s.DT) || math.IsInf(s.DT, 0) || s.DT <= 0 {
		return fmt.Errorf("%w: dt=%v", ErrInvalidInterval, s.DT)
	}
	for _, v := range [...]struct {
		name string
		vec  r3.Vector
	}{{"accel", s.Accel}, {"gyro", s.Gyro}, {"mag", s.Mag}} {
		if !finite(v.vec) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidSample, v.name, v.vec)
		}
	}
	return nil
}

func finite(v r3.Vector) bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
