// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/edl_robot/internal/orientation"
)

// Full-scale sensitivities indexed by the ACCEL_FS_SEL / GYRO_FS_SEL field.
var (
	accelLSBPerG    = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDPS   = [4]float64{131, 65.5, 32.8, 16.4}
	accelRangeG     = [4]int{2, 4, 8, 16}
	gyroRangeDPS    = [4]int{250, 500, 1000, 2000}
	magMicroTPerLSB = 0.15 // AK8963, 16-bit output
)

// Scale turns counts into g, deg/s and µT.
type Scale struct {
	AccelLSBPerG  float64
	GyroLSBPerDPS float64
	MagUTPerLSB   float64
}

// ScaleForRanges returns the scale for the given FS_SEL codes (0..3).
func ScaleForRanges(accelRange, gyroRange byte) (Scale, error) {
	if accelRange > 3 {
		return Scale{}, fmt.Errorf("imu: accel range %d out of 0..3", accelRange)
	}
	if gyroRange > 3 {
		return Scale{}, fmt.Errorf("imu: gyro range %d out of 0..3", gyroRange)
	}
	return Scale{
		AccelLSBPerG:  accelLSBPerG[accelRange],
		GyroLSBPerDPS: gyroLSBPerDPS[gyroRange],
		MagUTPerLSB:   magMicroTPerLSB,
	}, nil
}

// RangeLabel describes FS_SEL codes for logs, e.g. "±4g, ±500°/s".
func RangeLabel(accelRange, gyroRange byte) string {
	return fmt.Sprintf("±%dg, ±%d°/s", accelRangeG[accelRange&3], gyroRangeDPS[gyroRange&3])
}

// Frame selects the sensor-to-body axis mapping.
type Frame string

const (
	// FrameSensor keeps the accel/gyro axes as reported.
	FrameSensor Frame = "sensor"
	// FrameNED aligns accel and gyro with the AK8963 axes: X Y Z becomes Y X -Z.
	FrameNED Frame = "ned"
)

// ParseFrame validates a frame name; empty selects FrameNED.
func ParseFrame(s string) (Frame, error) {
	switch Frame(s) {
	case "", FrameNED:
		return FrameNED, nil
	case FrameSensor:
		return FrameSensor, nil
	}
	return "", fmt.Errorf("imu: unknown frame %q", s)
}

// Remap maps sensor-axis accel and gyro into the body frame. The returned
// accel is the gravity direction, so a level device reads (0,0,+1).
func (f Frame) Remap(accel, gyro r3.Vector) (r3.Vector, r3.Vector) {
	if f != FrameNED {
		return accel, gyro
	}
	// Specific force (Y, X, -Z) negated gives gravity.
	a := r3.Vector{X: -accel.Y, Y: -accel.X, Z: accel.Z}
	g := r3.Vector{X: gyro.Y, Y: gyro.X, Z: -gyro.Z}
	return a, g
}

// Converter produces estimator samples from raw readings.
type Converter struct {
	Scale Scale
	Frame Frame
	// Calib is optional; nil applies range scaling only.
	Calib *Calibration
}

// Physical returns accel in g, gyro in deg/s and mag (µT, or unit-sphere
// units when a mag calibration is loaded), all in sensor axes.
func (c Converter) Physical(raw Raw) (accel, gyro, mag r3.Vector) {
	a := r3.Vector{X: float64(raw.Ax), Y: float64(raw.Ay), Z: float64(raw.Az)}
	g := r3.Vector{X: float64(raw.Gx), Y: float64(raw.Gy), Z: float64(raw.Gz)}
	m := r3.Vector{X: float64(raw.Mx), Y: float64(raw.My), Z: float64(raw.Mz)}

	if c.Calib != nil {
		a = c.Calib.correctAccel(a, c.Scale.AccelLSBPerG)
		g = g.Sub(c.Calib.GyroBiasFinal.Vector()).Mul(1 / c.Scale.GyroLSBPerDPS)
		m = c.Calib.correctMag(m, c.Scale.MagUTPerLSB)
	} else {
		a = a.Mul(1 / c.Scale.AccelLSBPerG)
		g = g.Mul(1 / c.Scale.GyroLSBPerDPS)
		m = m.Mul(c.Scale.MagUTPerLSB)
	}
	if !raw.MagValid {
		m = r3.Vector{}
	}
	return a, g, m
}

// Sample converts raw into a body-frame sample with the given interval.
func (c Converter) Sample(raw Raw, dt float64) orientation.Sample {
	a, g, m := c.Physical(raw)
	a, g = c.Frame.Remap(a, g)
	return orientation.Sample{Accel: a, Gyro: g, Mag: m, DT: dt}
}
