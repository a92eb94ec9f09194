// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/imu"
	"github.com/relabs-tech/edl_robot/internal/orientation"
	"github.com/relabs-tech/edl_robot/internal/sensors"
)

// OpenedSource is a sample source plus the function that releases its
// hardware. Raw is nil for the mock source.
type OpenedSource struct {
	Samples orientation.SampleSource
	Raw     sensors.Source
	Close   func() error
}

// OpenRawSource opens the hardware named by cfg.Transport.
func OpenRawSource(cfg config.IMUConfig) (sensors.Source, error) {
	switch cfg.Transport {
	case "i2c":
		src, err := sensors.OpenI2C(cfg.I2CBus, sensors.MPU9250Opts{
			Addr:          cfg.I2CAddr,
			AccelRange:    cfg.AccelRange,
			GyroRange:     cfg.GyroRange,
			DLPF:          cfg.DLPF,
			SampleRateDiv: cfg.SampleRateDiv,
			EnableMag:     cfg.EnableMag,
			Name:          cfg.Name,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "spi":
		src, err := sensors.NewSPISource(sensors.SPIOpts{
			Name:       cfg.Name,
			Device:     cfg.SPIDevice,
			CSPin:      cfg.CSPin,
			AccelRange: cfg.AccelRange,
			GyroRange:  cfg.GyroRange,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("imu transport %q has no hardware", cfg.Transport)
	}
}

// NewConverter builds the raw-to-sample converter, loading the calibration
// file when one is configured.
func NewConverter(cfg config.IMUConfig) (imu.Converter, error) {
	scale, err := imu.ScaleForRanges(cfg.AccelRange, cfg.GyroRange)
	if err != nil {
		return imu.Converter{}, err
	}
	frame, err := imu.ParseFrame(cfg.Frame)
	if err != nil {
		return imu.Converter{}, err
	}
	conv := imu.Converter{Scale: scale, Frame: frame}
	if cfg.CalibrationFile != "" {
		cal, err := imu.LoadCalibration(cfg.CalibrationFile)
		if err != nil {
			return imu.Converter{}, err
		}
		conv.Calib = cal
		log.WithFields(log.Fields{
			"file":       cfg.CalibrationFile,
			"calibrated": cal.CalibratedAt,
			"confidence": fmt.Sprintf("%.2f", cal.Confidence.Overall),
		}).Info("imu: calibration loaded")
	}
	return conv, nil
}

// OpenSource returns the configured sample source. mock forces the
// synthetic source regardless of cfg.Transport.
func OpenSource(cfg config.IMUConfig, mock bool) (*OpenedSource, error) {
	if mock || cfg.Transport == "mock" {
		log.Println("imu: using mock sample source")
		return &OpenedSource{
			Samples: orientation.NewMockSource(),
			Close:   func() error { return nil },
		}, nil
	}
	conv, err := NewConverter(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := OpenRawSource(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("imu: %s over %s, %s, frame %s", cfg.Name, cfg.Transport,
		imu.RangeLabel(cfg.AccelRange, cfg.GyroRange), conv.Frame)
	return &OpenedSource{
		Samples: imu.NewSampleSource(raw, conv),
		Raw:     raw,
		Close:   raw.Close,
	}, nil
}
