// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r3"
)

// CalibrationSchema is the current calibration file version.
const CalibrationSchema = 1

var ErrBadCalibration = errors.New("imu: invalid calibration")

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Vector() r3.Vector { return r3.Vector{X: v.X, Y: v.Y, Z: v.Z} }

func FromVector(v r3.Vector) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// Confidence scores each calibration phase in [0,1].
type Confidence struct {
	GyroStatic float64 `json:"gyro_static"`
	Accel6Pt   float64 `json:"accel_6pt"`
	Mag        float64 `json:"mag"`
	Overall    float64 `json:"overall"`
}

// Calibration is stored in raw counts:
//
//	accel = (raw - AccelBias) / AccelScale   [g]
//	gyro  = raw - GyroBiasFinal              [counts]
//	mag   = (raw - MagOffset) / MagScale     [unit sphere]
type Calibration struct {
	SchemaVersion int    `json:"schema_version"`
	CalibratedAt  string `json:"calibration_at"`
	IMU           string `json:"imu"`

	GyroBiasFinal Vec3 `json:"gyro_bias_final"`
	AccelBias     Vec3 `json:"accel_bias"`
	AccelScale    Vec3 `json:"accel_scale"`
	MagOffset     Vec3 `json:"mag_offset"`
	MagScale      Vec3 `json:"mag_scale"`

	Confidence Confidence `json:"confidence"`

	GyroStaticStats PhaseStats       `json:"gyro_static_stats"`
	AccelPoseStats  []AccelPoseStats `json:"accel_pose_stats,omitempty"`
	MagStats        PhaseStats       `json:"mag_stats"`

	Notes []string `json:"notes,omitempty"`
}

// LoadCalibration reads and validates a calibration JSON file.
func LoadCalibration(path string) (*Calibration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imu: read calibration: %w", err)
	}
	var c Calibration
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("imu: parse calibration %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Validate rejects files whose scales would divide by zero or produce NaN.
func (c *Calibration) Validate() error {
	if c.SchemaVersion != CalibrationSchema {
		return fmt.Errorf("%w: schema_version %d, want %d", ErrBadCalibration, c.SchemaVersion, CalibrationSchema)
	}
	for name, v := range map[string]Vec3{
		"gyro_bias_final": c.GyroBiasFinal,
		"accel_bias":      c.AccelBias,
		"accel_scale":     c.AccelScale,
		"mag_offset":      c.MagOffset,
		"mag_scale":       c.MagScale,
	} {
		for _, x := range []float64{v.X, v.Y, v.Z} {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %s is not finite", ErrBadCalibration, name)
			}
		}
	}
	if c.AccelScale.X < 0 || c.AccelScale.Y < 0 || c.AccelScale.Z < 0 {
		return fmt.Errorf("%w: negative accel_scale", ErrBadCalibration)
	}
	if c.MagScale.X < 0 || c.MagScale.Y < 0 || c.MagScale.Z < 0 {
		return fmt.Errorf("%w: negative mag_scale", ErrBadCalibration)
	}
	return nil
}

// Save writes the calibration as indented JSON.
func (c *Calibration) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("imu: write calibration: %w", err)
	}
	return nil
}

// correctAccel applies bias and scale; an axis with no scale falls back to
// the nominal sensitivity.
func (c *Calibration) correctAccel(raw r3.Vector, lsbPerG float64) r3.Vector {
	return r3.Vector{
		X: (raw.X - c.AccelBias.X) / orDefault(c.AccelScale.X, lsbPerG),
		Y: (raw.Y - c.AccelBias.Y) / orDefault(c.AccelScale.Y, lsbPerG),
		Z: (raw.Z - c.AccelBias.Z) / orDefault(c.AccelScale.Z, lsbPerG),
	}
}

func (c *Calibration) correctMag(raw r3.Vector, utPerLSB float64) r3.Vector {
	if c.MagScale.X == 0 || c.MagScale.Y == 0 || c.MagScale.Z == 0 {
		return raw.Sub(c.MagOffset.Vector()).Mul(utPerLSB)
	}
	return r3.Vector{
		X: (raw.X - c.MagOffset.X) / c.MagScale.X,
		Y: (raw.Y - c.MagOffset.Y) / c.MagScale.Y,
		Z: (raw.Z - c.MagOffset.Z) / c.MagScale.Z,
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
