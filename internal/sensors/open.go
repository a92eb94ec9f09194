// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/edl_robot/internal/imu"
)

// Source is a raw IMU source that owns its hardware handle.
type Source interface {
	imu.RawSource
	Close() error
}

// I2CSource is an MPU9250 together with the bus it was opened on.
type I2CSource struct {
	*MPU9250
	bus i2c.BusCloser
}

// OpenI2C initializes the host, opens the named bus ("" picks the default)
// and probes the MPU9250.
func OpenI2C(busName string, opts MPU9250Opts) (*I2CSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %q: %w", busName, err)
	}
	dev, err := NewMPU9250(bus, opts)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return &I2CSource{MPU9250: dev, bus: bus}, nil
}

// Close powers down the magnetometer and releases the bus.
func (s *I2CSource) Close() error {
	return errors.Join(s.MPU9250.Close(), s.bus.Close())
}
