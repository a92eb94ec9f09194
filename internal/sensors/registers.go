// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// Register describes one register the driver configures or reads.
type Register struct {
	Addr        byte   `json:"addr"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RegisterValue is a register read back from the device.
type RegisterValue struct {
	Device string `json:"device"`
	Register
	Value byte `json:"value"`
}

func (v RegisterValue) String() string {
	return fmt.Sprintf("%-6s 0x%02X %-14s = 0x%02X  %s", v.Device, v.Addr, v.Name, v.Value, v.Description)
}

var mpuRegisters = []Register{
	{regSmplrtDiv, "SMPLRT_DIV", "rate = internal / (1 + div)"},
	{regConfig, "CONFIG", "gyro DLPF_CFG in bits 2:0"},
	{regGyroConfig, "GYRO_CONFIG", "GYRO_FS_SEL in bits 4:3"},
	{regAccelConfig, "ACCEL_CONFIG", "ACCEL_FS_SEL in bits 4:3"},
	{regAccelConf2, "ACCEL_CONFIG2", "A_DLPFCFG in bits 2:0"},
	{regIntPinCfg, "INT_PIN_CFG", "bit 1 BYPASS_EN"},
	{regUserCtrl, "USER_CTRL", "bit 5 I2C_MST_EN"},
	{regPwrMgmt1, "PWR_MGMT_1", "CLKSEL in bits 2:0"},
	{regWhoAmI, "WHO_AM_I", "0x71 for MPU9250"},
}

var akRegisters = []Register{
	{akWIA, "WIA", "0x48"},
	{akST1, "ST1", "bit 0 DRDY"},
	{akCNTL1, "CNTL1", "0x16 = 16-bit continuous 100 Hz"},
}

// DumpRegisters reads back the configuration registers, for bring-up
// debugging. The AK8963 is included only when it initialized.
func (m *MPU9250) DumpRegisters() ([]RegisterValue, error) {
	var out []RegisterValue
	read := func(dev string, d *i2c.Dev, regs []Register) error {
		for _, r := range regs {
			v, err := readReg(d, r.Addr)
			if err != nil {
				return fmt.Errorf("%s: read %s: %w", dev, r.Name, err)
			}
			out = append(out, RegisterValue{Device: dev, Register: r, Value: v})
		}
		return nil
	}
	if err := read("mpu", m.dev, mpuRegisters); err != nil {
		return out, err
	}
	if m.magReady {
		if err := read("ak8963", m.mag, akRegisters); err != nil {
			return out, err
		}
	}
	return out, nil
}
