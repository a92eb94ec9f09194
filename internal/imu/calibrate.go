// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Quality heuristics, in raw counts.
const (
	stillStdGood = 3.0
	stillStdBad  = 12.0
	confFloor    = 0.05
)

// Accel6Poses lists the six static poses, each named by the axis pointing up.
var Accel6Poses = []string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}

type PhaseStats struct {
	Samples     int      `json:"samples"`
	DurationSec float64  `json:"duration_sec"`
	Mean        Vec3     `json:"mean"`
	StdDev      Vec3     `json:"stddev"`
	Notes       []string `json:"notes,omitempty"`
}

type AccelPoseStats struct {
	Pose       string  `json:"pose"`
	Samples    int     `json:"samples"`
	Mean       Vec3    `json:"mean"`
	StdDev     Vec3    `json:"stddev"`
	Confidence float64 `json:"confidence"`
}

// Axis picks one triple out of a raw reading.
type Axis func(Raw) Vec3

func AccelAxis(r Raw) Vec3 { return Vec3{X: float64(r.Ax), Y: float64(r.Ay), Z: float64(r.Az)} }
func GyroAxis(r Raw) Vec3 { return Vec3{X: float64(r.Gx), Y: float64(r.Gy), Z: float64(r.Gz)} }
func MagAxis(r Raw) Vec3 { return Vec3{X: float64(r.Mx), Y: float64(r.My), Z: float64(r.Mz)} }

// Capture reads src every period until dur elapses or ctx is done.
// Cancelling ctx ends the capture early without an error.
func Capture(ctx context.Context, src RawSource, dur, period time.Duration, pick Axis) ([]Vec3, PhaseStats, error) {
	start := time.Now()
	deadline := start.Add(dur)
	var values []Vec3
	for time.Now().Before(deadline) {
		r, err := src.ReadRaw()
		if err != nil {
			return nil, PhaseStats{}, err
		}
		values = append(values, pick(r))
		select {
		case <-ctx.Done():
			st := ComputeStats(values, time.Since(start))
			st.Notes = append(st.Notes, "stopped_early")
			return values, st, nil
		case <-time.After(period):
		}
	}
	return values, ComputeStats(values, time.Since(start)), nil
}

// ComputeStats returns the per-axis mean and population standard deviation.
func ComputeStats(values []Vec3, dur time.Duration) PhaseStats {
	n := float64(len(values))
	st := PhaseStats{Samples: len(values), DurationSec: dur.Seconds()}
	if n == 0 {
		return st
	}
	for _, v := range values {
		st.Mean.X += v.X / n
		st.Mean.Y += v.Y / n
		st.Mean.Z += v.Z / n
	}
	var vx, vy, vz float64
	for _, v := range values {
		vx += (v.X - st.Mean.X) * (v.X - st.Mean.X)
		vy += (v.Y - st.Mean.Y) * (v.Y - st.Mean.Y)
		vz += (v.Z - st.Mean.Z) * (v.Z - st.Mean.Z)
	}
	st.StdDev = Vec3{X: math.Sqrt(vx / n), Y: math.Sqrt(vy / n), Z: math.Sqrt(vz / n)}
	return st
}

// StillnessConfidence maps the worst-axis noise onto [confFloor, 1].
func StillnessConfidence(std Vec3) float64 {
	worst := math.Max(std.X, math.Max(std.Y, std.Z))
	switch {
	case worst <= stillStdGood:
		return 1
	case worst >= stillStdBad:
		return confFloor
	}
	return math.Max(confFloor, 1-(worst-stillStdGood)/(stillStdBad-stillStdGood))
}

// Accel6Point solves per-axis bias and scale from the mean of each pose.
// For an axis, plus = s*G + b and minus = -s*G + b.
func Accel6Point(means map[string]Vec3) (bias, scale Vec3, err error) {
	for _, p := range Accel6Poses {
		if _, ok := means[p]; !ok {
			return Vec3{}, Vec3{}, fmt.Errorf("imu: missing accel pose %s", p)
		}
	}
	px, mx := means["+X"].X, means["-X"].X
	py, my := means["+Y"].Y, means["-Y"].Y
	pz, mz := means["+Z"].Z, means["-Z"].Z

	bias = Vec3{X: (px + mx) / 2, Y: (py + my) / 2, Z: (pz + mz) / 2}
	scale = Vec3{X: math.Abs(px-mx) / 2, Y: math.Abs(py-my) / 2, Z: math.Abs(pz-mz) / 2}
	if (scale.X+scale.Y+scale.Z)/3 < 1 {
		return Vec3{}, Vec3{}, errors.New("imu: accel calibration failed: insufficient gravity separation")
	}
	return bias, scale, nil
}

// GravityConsistency scores how equal the three per-axis gravity spans are.
func GravityConsistency(scale Vec3) float64 {
	m := (scale.X + scale.Y + scale.Z) / 3
	if m <= 0 {
		return confFloor
	}
	return clamp01(1 - std3(scale.X, scale.Y, scale.Z)/m/0.5)
}

// MagMinMax estimates hard-iron offset and per-axis half range (soft-iron
// diagonal) from samples covering all orientations.
func MagMinMax(samples []Vec3) (offset, halfRange Vec3, confidence float64, notes []string) {
	if len(samples) == 0 {
		return Vec3{}, Vec3{X: 1, Y: 1, Z: 1}, confFloor, []string{"no_mag_samples"}
	}
	lo := Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := Vec3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, s := range samples {
		lo = Vec3{X: math.Min(lo.X, s.X), Y: math.Min(lo.Y, s.Y), Z: math.Min(lo.Z, s.Z)}
		hi = Vec3{X: math.Max(hi.X, s.X), Y: math.Max(hi.Y, s.Y), Z: math.Max(hi.Z, s.Z)}
	}
	offset = Vec3{X: (hi.X + lo.X) / 2, Y: (hi.Y + lo.Y) / 2, Z: (hi.Z + lo.Z) / 2}
	halfRange = Vec3{X: (hi.X - lo.X) / 2, Y: (hi.Y - lo.Y) / 2, Z: (hi.Z - lo.Z) / 2}

	if halfRange.X < 1 || halfRange.Y < 1 || halfRange.Z < 1 {
		return offset, Vec3{X: 1, Y: 1, Z: 1}, confFloor, []string{"insufficient_mag_excitation"}
	}

	m := (halfRange.X + halfRange.Y + halfRange.Z) / 3
	coverage := clamp01(1 - std3(halfRange.X, halfRange.Y, halfRange.Z)/m/0.7)
	confidence = clamp01(0.55*coverage + 0.45*sphericity(samples, offset, halfRange))
	return offset, halfRange, math.Max(confidence, confFloor), nil
}

// sphericity scores how constant the corrected field norm is.
func sphericity(samples []Vec3, offset, halfRange Vec3) float64 {
	if len(samples) < 50 {
		return confFloor
	}
	norms := make([]float64, len(samples))
	for i, s := range samples {
		x := (s.X - offset.X) / halfRange.X
		y := (s.Y - offset.Y) / halfRange.Y
		z := (s.Z - offset.Z) / halfRange.Z
		norms[i] = math.Sqrt(x*x + y*y + z*z)
	}
	mean, sd := meanStd(norms)
	if mean <= 0 {
		return confFloor
	}
	return clamp01(1 - sd/mean/0.5)
}

// OverallConfidence weights the phases; the magnetometer matters most for yaw.
func OverallConfidence(c Confidence) float64 {
	return clamp01(0.25*c.GyroStatic + 0.35*c.Accel6Pt + 0.40*c.Mag)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func meanStd(xs []float64) (mean, sd float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	for _, v := range xs {
		sd += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sd / float64(len(xs)))
}

func std3(a, b, c float64) float64 {
	_, sd := meanStd([]float64{a, b, c})
	return sd
}
