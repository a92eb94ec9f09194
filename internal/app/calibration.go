// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/imu"
)

// CalibrationTimings sets how long each guided phase captures.
type CalibrationTimings struct {
	GyroStatic time.Duration
	AccelPose  time.Duration
	Mag        time.Duration // upper bound; ENTER stops earlier
	Period     time.Duration
}

func DefaultCalibrationTimings() CalibrationTimings {
	return CalibrationTimings{
		GyroStatic: 10 * time.Second,
		AccelPose:  6 * time.Second,
		Mag:        60 * time.Second,
		Period:     10 * time.Millisecond,
	}
}

// Calibrator walks an operator through the gyro, accelerometer and
// magnetometer phases on the console and returns the fitted calibration.
type Calibrator struct {
	Src     imu.RawSource
	IMU     string
	In      *bufio.Reader
	Out     io.Writer
	Timings CalibrationTimings
	SkipMag bool
}

func (c *Calibrator) say(format string, args ...any) {
	fmt.Fprintf(c.Out, format+"\n", args...)
}

// waitEnter blocks for a line. EOF counts as ENTER so piped input works.
func (c *Calibrator) waitEnter(prompt string) {
	fmt.Fprint(c.Out, prompt)
	_, _ = c.In.ReadString('\n')
}

// Run executes all phases. Cancelling ctx aborts between phases.
func (c *Calibrator) Run(ctx context.Context) (*imu.Calibration, error) {
	t := c.Timings
	res := &imu.Calibration{
		SchemaVersion: imu.CalibrationSchema,
		CalibratedAt:  time.Now().Format(time.RFC3339),
		IMU:           c.IMU,
		AccelScale:    imu.Vec3{X: 1, Y: 1, Z: 1},
		MagScale:      imu.Vec3{X: 1, Y: 1, Z: 1},
	}

	c.say("Step 1/3: gyro static bias")
	c.say("Place the device on a stable surface and do not touch it.")
	c.waitEnter(fmt.Sprintf("Press ENTER to start static gyro capture (%s)...", t.GyroStatic))
	_, gst, err := imu.Capture(ctx, c.Src, t.GyroStatic, t.Period, imu.GyroAxis)
	if err != nil {
		return nil, fmt.Errorf("gyro capture: %w", err)
	}
	res.GyroStaticStats = gst
	res.GyroBiasFinal = gst.Mean
	res.Confidence.GyroStatic = imu.StillnessConfidence(gst.StdDev)
	c.say("Gyro bias (counts): X=%.2f Y=%.2f Z=%.2f | confidence=%.2f",
		gst.Mean.X, gst.Mean.Y, gst.Mean.Z, res.Confidence.GyroStatic)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.say("")
	c.say("Step 2/3: accelerometer 6-point calibration")
	c.say("Hold the device still with each axis pointing UP in turn.")
	means := make(map[string]imu.Vec3, len(imu.Accel6Poses))
	var confSum float64
	for _, pose := range imu.Accel6Poses {
		c.waitEnter(fmt.Sprintf("Pose %s UP. Press ENTER to capture (%s)...", pose, t.AccelPose))
		_, st, err := imu.Capture(ctx, c.Src, t.AccelPose, t.Period, imu.AccelAxis)
		if err != nil {
			return nil, fmt.Errorf("accel capture %s: %w", pose, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conf := imu.StillnessConfidence(st.StdDev)
		means[pose] = st.Mean
		confSum += conf
		res.AccelPoseStats = append(res.AccelPoseStats, imu.AccelPoseStats{
			Pose:       pose,
			Samples:    st.Samples,
			Mean:       st.Mean,
			StdDev:     st.StdDev,
			Confidence: conf,
		})
		c.say("  %s mean: X=%.1f Y=%.1f Z=%.1f | confidence=%.2f", pose, st.Mean.X, st.Mean.Y, st.Mean.Z, conf)
	}
	bias, scale, err := imu.Accel6Point(means)
	if err != nil {
		return nil, err
	}
	res.AccelBias, res.AccelScale = bias, scale
	res.Confidence.Accel6Pt = 0.5*confSum/float64(len(imu.Accel6Poses)) + 0.5*imu.GravityConsistency(scale)
	c.say("Accel bias (counts):  X=%.2f Y=%.2f Z=%.2f", bias.X, bias.Y, bias.Z)
	c.say("Accel scale (counts): X=%.2f Y=%.2f Z=%.2f | confidence=%.2f", scale.X, scale.Y, scale.Z, res.Confidence.Accel6Pt)

	c.say("")
	if c.SkipMag {
		c.say("Step 3/3: magnetometer disabled, skipping")
		res.Confidence.Mag = 0
		res.Notes = append(res.Notes, "mag_skipped")
	} else {
		c.say("Step 3/3: magnetometer offset and scale")
		c.say("Rotate the device through all orientations, away from metal and cables.")
		c.waitEnter(fmt.Sprintf("Press ENTER to start (stops after %s or on ENTER)...", t.Mag))
		samples, mst, err := c.captureUntilEnter(ctx, t.Mag, t.Period)
		if err != nil {
			return nil, fmt.Errorf("mag capture: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset, half, conf, notes := imu.MagMinMax(samples)
		res.MagOffset, res.MagScale = offset, half
		res.MagStats = mst
		res.Confidence.Mag = conf
		res.Notes = append(res.Notes, notes...)
		c.say("Mag offset (counts): X=%.2f Y=%.2f Z=%.2f", offset.X, offset.Y, offset.Z)
		c.say("Mag scale (counts):  X=%.2f Y=%.2f Z=%.2f | confidence=%.2f", half.X, half.Y, half.Z, conf)
	}

	res.Confidence.Overall = imu.OverallConfidence(res.Confidence)
	if err := res.Validate(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"imu":     c.IMU,
		"overall": fmt.Sprintf("%.2f", res.Confidence.Overall),
	}).Info("calibration: complete")
	return res, nil
}

// captureUntilEnter reads mag samples until a line arrives or limit elapses.
func (c *Calibrator) captureUntilEnter(ctx context.Context, limit, period time.Duration) ([]imu.Vec3, imu.PhaseStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if _, err := c.In.ReadString('\n'); err == nil {
			cancel()
		}
	}()
	return imu.Capture(ctx, c.Src, limit, period, imu.MagAxis)
}
