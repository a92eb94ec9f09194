// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/golang/geo/r3"
)

// minCosPitch bounds 1/cos(pitch) near gimbal lock.
const minCosPitch = 1e-3

// WrapDeg normalizes an angle in degrees to [-180, 180).
func WrapDeg(a float64) float64 {
	a = math.Mod(a+180, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a - 180
}

// AngleDiff returns the signed shortest rotation from `from` to `to`, in degrees.
func AngleDiff(to, from float64) float64 {
	return WrapDeg(to - from)
}

func clampPitch(p float64) float64 {
	return math.Max(-90, math.Min(90, p))
}

// eulerRates converts body rates (deg/s) into roll/pitch/yaw rates (deg/s)
// for the ZYX convention at the given attitude.
func eulerRates(roll, pitch float64, g r3.Vector) (dRoll, dPitch, dYaw float64) {
	sr, cr := math.Sincos(roll * deg2rad)
	sp, cp := math.Sincos(pitch * deg2rad)
	if cp < minCosPitch {
		cp = minCosPitch
	}
	tp := sp / cp

	dRoll = g.X + sr*tp*g.Y + cr*tp*g.Z
	dPitch = cr*g.Y - sr*g.Z
	dYaw = (sr*g.Y + cr*g.Z) / cp
	return dRoll, dPitch, dYaw
}
