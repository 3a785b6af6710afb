// Tegra210 PMIC regulator control (I2C5)
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pmic implements the minimal I2C5 register-level access needed to
// enable and set the voltage of the SDMMC1 (removable card slot) supply
// rail on the power-management IC, satisfying
// soc/tegra210/sdmmc.Platform.SetRegulatorVoltage/EnableRegulator (spec A5
// supplement). The register layout and transaction state machine are
// modeled on soc/imx6/i2c.go, adapted to the Tegra210 I2C controller.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package pmic

import (
	"fmt"
	"time"

	"github.com/usbarmory/tamago/internal/reg"
)

// I2C5 (power I2C bus) register block (Tegra X1 TRM, "Inter-IC (I2C)
// Controller").
const (
	I2C5_BASE = 0x7000d000

	I2Cx_I2C_CNFG       = 0x000
	CNFG_SEND            = 9
	CNFG_NEW_MASTER_FSM  = 11

	I2Cx_I2C_CMD_ADDR0  = 0x004
	I2Cx_I2C_CMD_DATA1  = 0x00c

	I2Cx_I2C_STATUS     = 0x01c
	STATUS_BUSY          = 8

	I2Cx_I2C_CLK_DIVISOR = 0x06c
)

const (
	// MAX77620-class PMIC address, the device used on Nintendo Switch
	// boards to supply the SDMMC1 slot (original_source/fusee).
	pmicAddr = 0x3c

	// LDO regulator control/voltage registers (MAX77620 datasheet).
	regCfg2 = 0x27
	regVout = 0x26

	writeTimeout = 50 * time.Millisecond
)

// writeReg8 issues a single register write over I2C5 using the controller's
// packet mode (send address + 2 data bytes in one CMD_ADDR0/CMD_DATA1
// transaction, as the Tegra I2C packet engine allows for short writes).
func writeReg8(slave uint8, reg8 uint8, val uint8) error {
	addr := uint32(slave) << 1

	reg.Write(I2C5_BASE+I2Cx_I2C_CMD_ADDR0, addr)
	reg.Write(I2C5_BASE+I2Cx_I2C_CMD_DATA1, uint32(reg8)|uint32(val)<<8)

	reg.Set(I2C5_BASE+I2Cx_I2C_CNFG, CNFG_SEND)

	if !reg.WaitFor(writeTimeout, I2C5_BASE+I2Cx_I2C_STATUS, STATUS_BUSY, 1, 0) {
		return fmt.Errorf("I2C5 transaction to 0x%02x did not complete", slave)
	}

	return nil
}

// EnableRegulator enables or disables the SDMMC1 supply LDO.
func EnableRegulator(enable bool) error {
	val := uint8(0x08) // LDO enabled, normal power mode
	if !enable {
		val = 0x00
	}

	return writeReg8(pmicAddr, regCfg2, val)
}

// SetVoltage programs the SDMMC1 supply LDO to the given millivolt value
// (MAX77620 LDO encoding: 50mV/step from an 800mV base, clamped to the
// device's [800, 3950]mV range).
func SetVoltage(mv int) error {
	if mv < 800 {
		mv = 800
	}

	if mv > 3950 {
		mv = 3950
	}

	step := uint8((mv - 800) / 50)

	return writeReg8(pmicAddr, regVout, step)
}
