// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

// Params holds the tuning constants of both filters. They are tuning
// knobs, not invariants: validate against steady-state behaviour.
type Params struct {
	// Kalman process noise for the angle and the gyro bias, and the
	// measurement noise of the accel/mag reference angles.
	QAngle   float64 `yaml:"q_angle"`
	QBias    float64 `yaml:"q_bias"`
	RMeasure float64 `yaml:"r_measure"`

	// Tau is the complementary filter time constant in seconds.
	Tau float64 `yaml:"tau"`

	// MaxInterval clamps dt (seconds) after a stalled read. Zero disables clamping.
	MaxInterval float64 `yaml:"max_interval"`

	// UseMag enables magnetometer heading correction of yaw.
	UseMag bool `yaml:"use_mag"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		QAngle:      0.001,
		QBias:       0.003,
		RMeasure:    0.03,
		Tau:         0.5,
		MaxInterval: 0.5,
		UseMag:      true,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.QAngle <= 0 {
		p.QAngle = d.QAngle
	}
	if p.QBias <= 0 {
		p.QBias = d.QBias
	}
	if p.RMeasure <= 0 {
		p.RMeasure = d.RMeasure
	}
	if p.Tau <= 0 {
		p.Tau = d.Tau
	}
	if p.MaxInterval < 0 {
		p.MaxInterval = 0
	}
	return p
}

func (p Params) clampInterval(dt float64) float64 {
	if p.MaxInterval > 0 && dt > p.MaxInterval {
		return p.MaxInterval
	}
	return dt
}
