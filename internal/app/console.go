// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/gps"
	"github.com/relabs-tech/edl_robot/internal/imu"
	"github.com/relabs-tech/edl_robot/internal/orientation"
)

func FormatPose(m PoseMessage) string {
	line := fmt.Sprintf("[POSE]  ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f", m.Roll, m.Pitch, m.Yaw)
	if m.Reference != nil {
		line += fmt.Sprintf("  | ref R=%7.2f P=%7.2f", m.Reference.Roll, m.Reference.Pitch)
		if m.HasHeading {
			line += fmt.Sprintf(" Y=%7.2f", m.Reference.Yaw)
		}
	}
	return line
}

func FormatRaw(r imu.Raw) string {
	line := fmt.Sprintf("[IMU ]  ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d", r.Ax, r.Ay, r.Az, r.Gx, r.Gy, r.Gz)
	if r.MagValid {
		line += fmt.Sprintf("  mx=%6d my=%6d mz=%6d", r.Mx, r.My, r.Mz)
	} else {
		line += "  mag=n/a"
	}
	return line
}

func FormatFix(f gps.Fix) string {
	return fmt.Sprintf("[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity)
}

// lineWriter serialises lines from concurrent MQTT callbacks.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) println(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, s)
}

// RunConsole prints pose, raw and GPS messages from MQTT until ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, err := ConnectMQTT(cfg.MQTT, cfg.MQTT.ClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	w := &lineWriter{out: out}
	if err := SubscribeJSON(client, cfg.Topics.Pose, func(m PoseMessage) { w.println(FormatPose(m)) }); err != nil {
		return err
	}
	if err := SubscribeJSON(client, cfg.Topics.Raw, func(r imu.Raw) { w.println(FormatRaw(r)) }); err != nil {
		return err
	}
	if err := SubscribeJSON(client, cfg.Topics.GPS, func(f gps.Fix) { w.println(FormatFix(f)) }); err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

// RunMockConsole runs the configured filter on the synthetic source and
// prints every estimate with its single-sample reference pose. No broker
// is needed.
func RunMockConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	filter, err := orientation.New(cfg.Filter.Kind, cfg.Filter.Params)
	if err != nil {
		return err
	}
	src := orientation.NewMockSource()
	w := &lineWriter{out: out}
	printer := PublisherFunc(func(_ string, v any) error {
		if m, ok := v.(PoseMessage); ok {
			w.println(FormatPose(m))
		}
		return nil
	})
	loop := NewOrientationLoop(src, filter, printer, nil, LoopOptions{
		Interval:   cfg.IMU.SampleInterval,
		PoseTopic:  cfg.Topics.Pose,
		Source:     "mock",
		FilterKind: cfg.Filter.Kind,
	})
	return loop.Run(ctx)
}
