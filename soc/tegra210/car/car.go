// Tegra210 Clock and Reset Controller (CAR) support
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package car implements the subset of the Tegra210 CLK_RST_CONTROLLER
// (CAR) register block that soc/tegra210/sdmmc.Platform needs: per-device
// clock enable/disable, reset assert/deassert, and SDMMC clock source
// selection (spec A4 "clock and reset", grounded on soc/imx6/clock.go's
// package-level register-constant style).
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package car

import (
	"github.com/usbarmory/tamago/internal/reg"
	"github.com/usbarmory/tamago/soc/tegra210/sdmmc"
)

// CLK_RST_CONTROLLER base and the per-device clock enable, reset and
// clock-source registers relevant to the four SDMMC controllers (Tegra X1
// TRM, chapter "Clock and Reset Controller").
const (
	Base = 0x60006000

	RST_DEVICES_L = 0x004
	RST_DEVICES_U = 0x00c
	RST_DEVICES_V = 0x358

	CLK_OUT_ENB_L = 0x010
	CLK_OUT_ENB_U = 0x014
	CLK_OUT_ENB_V = 0x360

	CLK_SOURCE_SDMMC1 = 0x150
	CLK_SOURCE_SDMMC2 = 0x154
	CLK_SOURCE_SDMMC3 = 0x1bc
	CLK_SOURCE_SDMMC4 = 0x160

	CLK_SOURCE_DIVISOR = 0
	CLK_SOURCE_SEL      = 29
)

// devBit locates the reset/enable bit for each SDMMC controller: SDMMC1/2
// live in the L device bank, SDMMC3 in the U bank and SDMMC4 in the V bank
// (TRM device bit assignment table).
type devBit struct {
	resetReg uint32
	enbReg   uint32
	bit      int
}

func bits(c sdmmc.Controller) devBit {
	switch c {
	case sdmmc.SDMMC1:
		return devBit{RST_DEVICES_L, CLK_OUT_ENB_L, 14}
	case sdmmc.SDMMC2:
		return devBit{RST_DEVICES_L, CLK_OUT_ENB_L, 9}
	case sdmmc.SDMMC3:
		return devBit{RST_DEVICES_U, CLK_OUT_ENB_U, 5}
	case sdmmc.SDMMC4:
		return devBit{RST_DEVICES_V, CLK_OUT_ENB_V, 15}
	default:
		return devBit{}
	}
}

func sourceReg(c sdmmc.Controller) uint32 {
	switch c {
	case sdmmc.SDMMC1:
		return CLK_SOURCE_SDMMC1
	case sdmmc.SDMMC2:
		return CLK_SOURCE_SDMMC2
	case sdmmc.SDMMC3:
		return CLK_SOURCE_SDMMC3
	case sdmmc.SDMMC4:
		return CLK_SOURCE_SDMMC4
	default:
		return 0
	}
}

// pllpFreqHz is PLLP_OUT0's fixed output frequency, the SDMMC clock
// source selected by CLK_SOURCE_SEL's reset value.
const pllpFreqHz = 408000000

// CAR is the Tegra210 clock-and-reset controller handle. The zero value is
// ready to use: all its methods operate on the fixed CLK_RST_CONTROLLER
// base address.
type CAR struct{}

// EnableClock sets the device's CLK_OUT_ENB bit.
func (*CAR) EnableClock(c sdmmc.Controller) {
	d := bits(c)
	reg.Set(Base+d.enbReg, d.bit)
}

// DisableClock clears the device's CLK_OUT_ENB bit.
func (*CAR) DisableClock(c sdmmc.Controller) {
	d := bits(c)
	reg.Clear(Base+d.enbReg, d.bit)
}

// AssertReset sets the device's RST_DEVICES bit.
func (*CAR) AssertReset(c sdmmc.Controller) {
	d := bits(c)
	reg.Set(Base+d.resetReg, d.bit)
}

// DeassertReset clears the device's RST_DEVICES bit.
func (*CAR) DeassertReset(c sdmmc.Controller) {
	d := bits(c)
	reg.Clear(Base+d.resetReg, d.bit)
}

// SetSource programs the SDMMC clock source divider for the requested
// frequency, sourcing from PLLP_OUT0 (spec A4): out = pllp / ((div+2)/2).
// The divider is rounded down and capped at 0xff, so the achieved frequency
// it returns is at or above hz. It returns 0 if hz is 0 or larger than PLLP
// can directly supply.
func (*CAR) SetSource(c sdmmc.Controller, hz uint32) (achievedHz uint32) {
	if hz == 0 || hz > pllpFreqHz {
		return 0
	}

	div := (2*pllpFreqHz)/hz - 2

	if div > 0xff {
		div = 0xff
	}

	achievedHz = (2 * pllpFreqHz) / (div + 2)

	addr := Base + sourceReg(c)
	reg.SetN(addr, CLK_SOURCE_DIVISOR, 0xff, div)
	reg.SetN(addr, CLK_SOURCE_SEL, 0x7, 0)

	return achievedHz
}
