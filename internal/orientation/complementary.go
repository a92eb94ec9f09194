// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

// Complementary blends gyro integration with the accel/mag reference using
// alpha = tau / (tau + dt).
type Complementary struct {
	params Params
	pose   Pose
}

// NewComplementary returns a complementary filter seeded at the zero pose.
func NewComplementary(p Params) *Complementary {
	return &Complementary{params: p.withDefaults()}
}

func (c *Complementary) Initialize(p Pose) {
	c.pose = Pose{
		Roll:  WrapDeg(p.Roll),
		Pitch: clampPitch(p.Pitch),
		Yaw:   WrapDeg(p.Yaw),
	}
}

func (c *Complementary) InitializeFromSample(s Sample) error {
	p, err := seedPose(s)
	if err != nil {
		return err
	}
	c.Initialize(p)
	return nil
}

func (c *Complementary) Pose() Pose { return c.pose }

func (c *Complementary) Update(s Sample) (Pose, error) {
	if err := validate(s); err != nil {
		return c.pose, err
	}
	dt := c.params.clampInterval(s.DT)

	dRoll, dPitch, dYaw := eulerRates(c.pose.Roll, c.pose.Pitch, s.Gyro)
	pred := Pose{
		Roll:  WrapDeg(c.pose.Roll + dRoll*dt),
		Pitch: clampPitch(c.pose.Pitch + dPitch*dt),
		Yaw:   WrapDeg(c.pose.Yaw + dYaw*dt),
	}

	w := 1 - c.params.Tau/(c.params.Tau+dt)

	ref, haveTilt, _ := ReferencePose(s)
	if haveTilt {
		pred.Roll = WrapDeg(pred.Roll + w*AngleDiff(ref.Roll, pred.Roll))
		pred.Pitch = clampPitch(pred.Pitch + w*(ref.Pitch-pred.Pitch))
		if c.params.UseMag {
			if heading, ok := TiltCompensatedHeading(s.Mag, pred.Roll, pred.Pitch); ok {
				pred.Yaw = WrapDeg(pred.Yaw + w*AngleDiff(heading, pred.Yaw))
			}
		}
	}

	c.pose = pred
	return c.pose, nil
}
