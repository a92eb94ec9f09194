// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps turns NMEA RMC sentences into fixes for MQTT and graphs.
package gps

import (
	"errors"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ErrNotRMC is returned by ParseLine for sentences that carry no fix.
var ErrNotRMC = errors.New("gps: not an RMC sentence")

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string    `json:"time"`        // e.g. "12:35:19.0000"
	Date       string    `json:"date"`        // e.g. "23/03/94"
	Latitude   float64   `json:"lat"`         // decimal degrees
	Longitude  float64   `json:"lon"`         // decimal degrees
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	CourseDeg  float64   `json:"course_deg"`  // course over ground
	Validity   string    `json:"validity"`    // "A" (valid) / "V" (void)
	ReceivedAt time.Time `json:"received_at"`
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool {
	return f.Validity == string(nmea.ValidRMC)
}

// FromRMC copies the fields of an RMC sentence.
func FromRMC(m nmea.RMC, at time.Time) Fix {
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   string(m.Validity),
		ReceivedAt: at,
	}
}

// ParseLine parses one line read from the receiver. Lines that are not
// sentences, or are other sentence types, return ErrNotRMC.
func ParseLine(line string, at time.Time) (Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, ErrNotRMC
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, err
	}
	if sentence.DataType() != nmea.TypeRMC {
		return Fix{}, ErrNotRMC
	}
	return FromRMC(sentence.(nmea.RMC), at), nil
}
