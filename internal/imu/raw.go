// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu converts raw MPU9250/AK8963 counts into estimator samples:
// range scaling, calibration and the sensor-to-body axis remap.
package imu

// Raw is one raw accel/gyro/mag reading in sensor counts, sensor axes.
type Raw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer, AK8963 axes
	My int16 `json:"my"`
	Mz int16 `json:"mz"`

	// MagValid is false when the magnetometer was absent or overflowed.
	MagValid bool `json:"mag_valid"`
}

// RawSource yields raw readings; ReadRaw may block on the bus.
type RawSource interface {
	ReadRaw() (Raw, error)
}
