// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/gps"
)

// ReadFixes scans NMEA lines from r and hands every RMC fix to fn. Other
// sentences and corrupt lines are skipped. It returns when r is exhausted,
// fn fails, or ctx is done.
func ReadFixes(ctx context.Context, r io.Reader, now func() time.Time, fn func(gps.Fix) error) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fix, err := gps.ParseLine(sc.Text(), now())
		if errors.Is(err, gps.ErrNotRMC) {
			continue
		}
		if err != nil {
			log.Debugf("gps: NMEA parse error: %v", err)
			continue
		}
		if err := fn(fix); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes every RMC fix as JSON on the gps topic.
func RunGPSProducer(ctx context.Context, cfg *config.Config) error {
	client, err := ConnectMQTT(cfg.MQTT, cfg.MQTT.ClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := NewMQTTPublisher(client)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPS.SerialPort,
		BaudRate:              cfg.GPS.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.GPS.SerialPort, err)
	}
	log.Printf("gps: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	// Closing the port unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	var fixes uint64
	err = ReadFixes(ctx, port, time.Now, func(f gps.Fix) error {
		if err := pub.Publish(cfg.Topics.GPS, f); err != nil {
			log.Warnf("gps: %v", err)
			return nil
		}
		fixes++
		log.WithFields(log.Fields{
			"valid":  f.Valid(),
			"lat":    f.Latitude,
			"lon":    f.Longitude,
			"speed":  f.SpeedKnots,
			"course": f.CourseDeg,
		}).Debug("gps: published fix")
		return nil
	})
	log.WithField("fixes", fixes).Info("gps: producer stopped")
	if err != nil {
		return fmt.Errorf("gps read: %w", err)
	}
	return nil
}
