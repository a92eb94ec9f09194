// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors talks to the IMU hardware: an MPU9250 register driver over
// I2C (with the AK8963 magnetometer reached through bypass mode) and an
// accel/gyro-only source over SPI.
package sensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/edl_robot/internal/imu"
)

const (
	DefaultMPUAddr = 0x68
	AK8963Addr     = 0x0C
)

// MPU9250 registers.
const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelConf2  = 0x1D
	regIntPinCfg   = 0x37
	regAccelXoutH  = 0x3B
	regUserCtrl    = 0x6A
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75
)

// AK8963 registers.
const (
	akWIA   = 0x00
	akST1   = 0x02
	akHXL   = 0x03
	akCNTL1 = 0x0A
	akASAX  = 0x10
)

const (
	bypassEnable   = 0x02
	akModePowerDn  = 0x00
	akModeFuseROM  = 0x0F
	akMode16bit100 = 0x16
	akDeviceID     = 0x48
	akST1DataReady = 0x01
	akST2Overflow  = 0x08
)

var ErrUnknownDevice = errors.New("sensors: unexpected WHO_AM_I")

// knownWhoAmI lists MPU9250-family IDs accepted by Init.
var knownWhoAmI = map[byte]string{
	0x71: "MPU9250",
	0x73: "MPU9255",
	0x70: "MPU6500",
}

// MPU9250Opts configures the I2C driver. Ranges are FS_SEL codes 0..3.
type MPU9250Opts struct {
	Addr          uint16
	AccelRange    byte
	GyroRange     byte
	DLPF          byte
	SampleRateDiv byte
	EnableMag     bool
	Name          string

	sleep func(time.Duration)
}

// MPU9250 reads accel, gyro and (optionally) the AK8963 over one I2C bus.
type MPU9250 struct {
	opts  MPU9250Opts
	dev   *i2c.Dev
	mag   *i2c.Dev
	sleep func(time.Duration)

	magReady bool
	magAdj   [3]float64
	lastMag  [3]int16
	lastOK   bool
}

// NewMPU9250 probes and configures the device on bus.
func NewMPU9250(bus i2c.Bus, opts MPU9250Opts) (*MPU9250, error) {
	if opts.Addr == 0 {
		opts.Addr = DefaultMPUAddr
	}
	if opts.Name == "" {
		opts.Name = "imu"
	}
	if opts.AccelRange > 3 || opts.GyroRange > 3 || opts.DLPF > 7 {
		return nil, fmt.Errorf("%s: range or DLPF code out of bounds", opts.Name)
	}
	sleep := time.Sleep
	if opts.sleep != nil {
		sleep = opts.sleep
	}
	m := &MPU9250{
		opts:  opts,
		dev:   &i2c.Dev{Bus: bus, Addr: opts.Addr},
		mag:   &i2c.Dev{Bus: bus, Addr: AK8963Addr},
		sleep: sleep,
	}
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MPU9250) init() error {
	id, err := readReg(m.dev, regWhoAmI)
	if err != nil {
		return fmt.Errorf("%s: read WHO_AM_I: %w", m.opts.Name, err)
	}
	model, ok := knownWhoAmI[id]
	if !ok {
		return fmt.Errorf("%s: %w 0x%02X", m.opts.Name, ErrUnknownDevice, id)
	}
	log.Printf("%s: found %s (WHO_AM_I=0x%02X)", m.opts.Name, model, id)

	writes := []struct {
		reg, val byte
		what     string
	}{
		{regPwrMgmt1, 0x80, "reset"},
		{regPwrMgmt1, 0x01, "wake, PLL clock"},
		{regConfig, m.opts.DLPF, "DLPF"},
		{regSmplrtDiv, m.opts.SampleRateDiv, "sample rate divider"},
		{regGyroConfig, m.opts.GyroRange << 3, "gyro range"},
		{regAccelConfig, m.opts.AccelRange << 3, "accel range"},
		{regAccelConf2, m.opts.DLPF & 0x07, "accel DLPF"},
		{regUserCtrl, 0x00, "disable I2C master"},
		{regIntPinCfg, bypassEnable, "bypass"},
	}
	for i, w := range writes {
		if err := writeReg(m.dev, w.reg, w.val); err != nil {
			return fmt.Errorf("%s: write %s: %w", m.opts.Name, w.what, err)
		}
		if i < 2 {
			m.sleep(100 * time.Millisecond)
		}
	}
	log.Printf("%s: ranges %s, DLPF %d, divider %d", m.opts.Name,
		imu.RangeLabel(m.opts.AccelRange, m.opts.GyroRange), m.opts.DLPF, m.opts.SampleRateDiv)

	if !m.opts.EnableMag {
		return nil
	}
	// A missing magnetometer is not fatal: yaw falls back to gyro integration.
	if err := m.initMag(); err != nil {
		log.Warnf("%s: magnetometer unavailable, continuing without it: %v", m.opts.Name, err)
		return nil
	}
	m.magReady = true
	log.Printf("%s: AK8963 ready, sensitivity adj X=%.4f Y=%.4f Z=%.4f",
		m.opts.Name, m.magAdj[0], m.magAdj[1], m.magAdj[2])
	return nil
}

func (m *MPU9250) initMag() error {
	id, err := readReg(m.mag, akWIA)
	if err != nil {
		return fmt.Errorf("read WIA: %w", err)
	}
	if id != akDeviceID {
		return fmt.Errorf("%w 0x%02X from AK8963", ErrUnknownDevice, id)
	}
	if err := m.setMagMode(akModePowerDn); err != nil {
		return err
	}
	if err := m.setMagMode(akModeFuseROM); err != nil {
		return err
	}
	asa := make([]byte, 3)
	if err := m.mag.Tx([]byte{akASAX}, asa); err != nil {
		return fmt.Errorf("read ASA: %w", err)
	}
	for i, a := range asa {
		m.magAdj[i] = (float64(a)-128)/256 + 1
	}
	if err := m.setMagMode(akModePowerDn); err != nil {
		return err
	}
	return m.setMagMode(akMode16bit100)
}

func (m *MPU9250) setMagMode(mode byte) error {
	if err := writeReg(m.mag, akCNTL1, mode); err != nil {
		return fmt.Errorf("set CNTL1=0x%02X: %w", mode, err)
	}
	m.sleep(10 * time.Millisecond)
	return nil
}

// ReadRaw reads one accel/gyro burst and the magnetometer if it has new data.
// Without new mag data the previous mag reading is repeated.
func (m *MPU9250) ReadRaw() (imu.Raw, error) {
	buf := make([]byte, 14)
	if err := m.dev.Tx([]byte{regAccelXoutH}, buf); err != nil {
		return imu.Raw{}, fmt.Errorf("%s: read accel/gyro: %w", m.opts.Name, err)
	}
	// Big-endian accel XYZ, temperature, gyro XYZ.
	be := func(i int) int16 { return int16(binary.BigEndian.Uint16(buf[i:])) }
	raw := imu.Raw{
		Source: m.opts.Name,
		Ax:     be(0),
		Ay:     be(2),
		Az:     be(4),
		Gx:     be(8),
		Gy:     be(10),
		Gz:     be(12),
	}
	if m.magReady {
		if err := m.readMag(); err != nil {
			return imu.Raw{}, fmt.Errorf("%s: read mag: %w", m.opts.Name, err)
		}
		raw.Mx, raw.My, raw.Mz = m.lastMag[0], m.lastMag[1], m.lastMag[2]
		raw.MagValid = m.lastOK
	}
	return raw, nil
}

func (m *MPU9250) readMag() error {
	st1, err := readReg(m.mag, akST1)
	if err != nil {
		return err
	}
	if st1&akST1DataReady == 0 {
		return nil
	}
	// HXL..HZH then ST2; reading ST2 releases the data latch.
	buf := make([]byte, 7)
	if err := m.mag.Tx([]byte{akHXL}, buf); err != nil {
		return err
	}
	if buf[6]&akST2Overflow != 0 {
		m.lastOK = false
		return nil
	}
	for i := 0; i < 3; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(buf[2*i:]))) * m.magAdj[i]
		m.lastMag[i] = int16(v)
	}
	m.lastOK = true
	return nil
}

// Close powers the magnetometer down. The bus is owned by the caller.
func (m *MPU9250) Close() error {
	if !m.magReady {
		return nil
	}
	m.magReady = false
	return writeReg(m.mag, akCNTL1, akModePowerDn)
}

func readReg(d *i2c.Dev, reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := d.Tx([]byte{reg}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeReg(d *i2c.Dev, reg, val byte) error {
	return d.Tx([]byte{reg, val}, nil)
}
