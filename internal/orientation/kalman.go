// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"gonum.org/v1/gonum/mat"
)

// Kalman runs one two-state (angle, gyro bias) Kalman filter per axis.
// The gyro drives the prediction; the accelerometer/magnetometer reference
// angles are the measurements.
type Kalman struct {
	params Params

	roll  axisKalman
	pitch axisKalman
	yaw   axisKalman
}

// NewKalman returns a Kalman filter seeded at the zero pose.
func NewKalman(p Params) *Kalman {
	return &Kalman{
		params: p.withDefaults(),
		roll:   newAxisKalman(),
		pitch:  newAxisKalman(),
		yaw:    newAxisKalman(),
	}
}

// Initialize sets the orientation estimate and clears the bias estimates.
// Covariances are kept.
func (k *Kalman) Initialize(p Pose) {
	k.roll.reset(WrapDeg(p.Roll))
	k.pitch.reset(clampPitch(p.Pitch))
	k.yaw.reset(WrapDeg(p.Yaw))
}

// InitializeFromSample seeds the estimate from the sample's reference pose.
func (k *Kalman) InitializeFromSample(s Sample) error {
	p, err := seedPose(s)
	if err != nil {
		return err
	}
	k.Initialize(p)
	return nil
}

// Pose returns the current estimate.
func (k *Kalman) Pose() Pose {
	return Pose{
		Roll:  k.roll.angle(),
		Pitch: k.pitch.angle(),
		Yaw:   k.yaw.angle(),
	}
}

// Update advances the filter by one sample. On error the state is left untouched.
func (k *Kalman) Update(s Sample) (Pose, error) {
	if err := validate(s); err != nil {
		return k.Pose(), err
	}
	dt := k.params.clampInterval(s.DT)

	dRoll, dPitch, dYaw := eulerRates(k.roll.angle(), k.pitch.angle(), s.Gyro)
	k.roll.predict(dRoll, dt, k.params)
	k.pitch.predict(dPitch, dt, k.params)
	k.yaw.predict(dYaw, dt, k.params)
	k.roll.wrap()
	k.pitch.clamp()
	k.yaw.wrap()

	ref, haveTilt, _ := ReferencePose(s)
	if haveTilt {
		k.roll.correct(AngleDiff(ref.Roll, k.roll.angle()), k.params.RMeasure)
		k.pitch.correct(ref.Pitch-k.pitch.angle(), k.params.RMeasure)
		k.roll.wrap()
		k.pitch.clamp()
	}

	if k.params.UseMag && haveTilt {
		// Tilt-compensate with the corrected roll/pitch rather than the raw accel ones.
		if heading, ok := TiltCompensatedHeading(s.Mag, k.roll.angle(), k.pitch.angle()); ok {
			k.yaw.correct(AngleDiff(heading, k.yaw.angle()), k.params.RMeasure)
			k.yaw.wrap()
		}
	}

	return k.Pose(), nil
}

// axisKalman holds x = [angle, bias] and its 2x2 covariance.
type axisKalman struct {
	x *mat.VecDense
	p *mat.Dense
}

func newAxisKalman() axisKalman {
	return axisKalman{
		x: mat.NewVecDense(2, nil),
		p: mat.NewDense(2, 2, nil),
	}
}

func (a *axisKalman) angle() float64 { return a.x.AtVec(0) }

func (a *axisKalman) reset(angle float64) {
	a.x.SetVec(0, angle)
	a.x.SetVec(1, 0)
}

func (a *axisKalman) wrap()  { a.x.SetVec(0, WrapDeg(a.x.AtVec(0))) }
func (a *axisKalman) clamp() { a.x.SetVec(0, clampPitch(a.x.AtVec(0))) }

// predict integrates the bias-corrected rate: x' = F x + B u, P' = F P Fᵀ + Q dt.
func (a *axisKalman) predict(rate, dt float64, p Params) {
	a.x.SetVec(0, a.x.AtVec(0)+dt*(rate-a.x.AtVec(1)))

	f := mat.NewDense(2, 2, []float64{
		1, -dt,
		0, 1,
	})
	var fp, fpf mat.Dense
	fp.Mul(f, a.p)
	fpf.Mul(&fp, f.T())

	var next mat.Dense
	next.Add(&fpf, mat.NewDiagDense(2, []float64{p.QAngle * dt, p.QBias * dt}))
	a.p.Copy(&next)
}

// correct applies a scalar angle measurement with H = [1 0]. innovation is
// measured-minus-predicted, already reduced to the shortest angular distance.
func (a *axisKalman) correct(innovation, r float64) {
	s := a.p.At(0, 0) + r
	if s <= 0 {
		return
	}
	gain := mat.NewVecDense(2, []float64{a.p.At(0, 0) / s, a.p.At(1, 0) / s})
	a.x.AddScaledVec(a.x, innovation, gain)

	var kh, ikh, next mat.Dense
	kh.Mul(gain, mat.NewDense(1, 2, []float64{1, 0}))
	ikh.Sub(mat.NewDiagDense(2, []float64{1, 1}), &kh)
	next.Mul(&ikh, a.p)
	a.p.Copy(&next)
}

// seedPose is the pose a filter should start from for the given sample.
func seedPose(s Sample) (Pose, error) {
	if !finite(s.Accel) || !finite(s.Mag) {
		return Pose{}, ErrInvalidSample
	}
	p, haveTilt, _ := ReferencePose(s)
	if !haveTilt {
		return Pose{}, ErrInvalidSample
	}
	return p, nil
}
