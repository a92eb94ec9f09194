// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/edl_robot/internal/imu"
)

// SPIOpts selects the SPI port and chip-select pin of an MPU9250.
type SPIOpts struct {
	Name       string
	Device     string // e.g. "/dev/spidev0.0"
	CSPin      string // e.g. "GPIO8"
	AccelRange byte
	GyroRange  byte
}

// SPISource reads accel and gyro over SPI with the periph mpu9250 driver.
// The magnetometer is not reachable this way; readings carry MagValid=false.
type SPISource struct {
	name string
	dev  *mpu9250.MPU9250
}

// NewSPISource initializes the host, the transport and the sensor ranges.
func NewSPISource(opts SPIOpts) (*SPISource, error) {
	if opts.Name == "" {
		opts.Name = "imu"
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s: periph host init: %w", opts.Name, err)
	}
	cs := gpioreg.ByName(opts.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s: CS pin %q not found", opts.Name, opts.CSPin)
	}
	tr, err := mpu9250.NewSpiTransport(opts.Device, cs)
	if err != nil {
		return nil, fmt.Errorf("%s: SPI transport (%s): %w", opts.Name, opts.Device, err)
	}
	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s: device creation: %w", opts.Name, err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s: initialization: %w", opts.Name, err)
	}
	if err := dev.SetAccelRange(opts.AccelRange); err != nil {
		return nil, fmt.Errorf("%s: set accel range: %w", opts.Name, err)
	}
	if err := dev.SetGyroRange(opts.GyroRange); err != nil {
		return nil, fmt.Errorf("%s: set gyro range: %w", opts.Name, err)
	}
	log.Printf("%s: SPI MPU9250 on %s (CS %s), %s", opts.Name, opts.Device, opts.CSPin,
		imu.RangeLabel(opts.AccelRange, opts.GyroRange))
	return &SPISource{name: opts.Name, dev: dev}, nil
}

// ReadRaw reads the six accel/gyro axes one register pair at a time.
func (s *SPISource) ReadRaw() (imu.Raw, error) {
	raw := imu.Raw{Source: s.name}
	axes := []struct {
		what string
		read func() (int16, error)
		dst  *int16
	}{
		{"accel X", s.dev.GetAccelerationX, &raw.Ax},
		{"accel Y", s.dev.GetAccelerationY, &raw.Ay},
		{"accel Z", s.dev.GetAccelerationZ, &raw.Az},
		{"gyro X", s.dev.GetRotationX, &raw.Gx},
		{"gyro Y", s.dev.GetRotationY, &raw.Gy},
		{"gyro Z", s.dev.GetRotationZ, &raw.Gz},
	}
	for _, a := range axes {
		v, err := a.read()
		if err != nil {
			return imu.Raw{}, fmt.Errorf("%s %s: %w", s.name, a.what, err)
		}
		*a.dst = v
	}
	return raw, nil
}

// Close is a no-op; the SPI port stays registered with the host.
func (s *SPISource) Close() error { return nil }
