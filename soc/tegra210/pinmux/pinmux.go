// Tegra210 pinmux support
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pinmux implements helpers for pad configuration on the Tegra210
// APB_MISC pinmux register block (spec A5 "pin muxing", grounded on
// soc/nxp/iomuxc/iomuxc.go's Pad abstraction).
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package pinmux

import (
	"github.com/usbarmory/tamago/internal/reg"
	"github.com/usbarmory/tamago/soc/tegra210/sdmmc"
)

// PINMUX_AUX base and per-pad field positions (Tegra X1 TRM, "Pinmux").
const (
	Base = 0x70003000

	PM_TRISTATE  = 4
	PM_PUPD      = 2
	PM_PUPD_NONE = 0b00
	PM_E_INPUT   = 6
	PM_PARK      = 5
)

// pads gives the PINMUX_AUX register offset controlling the clock pad of
// each SDMMC controller's bus, used to enable the input buffer and disable
// the pad's tristate (the data/cmd pad group tracks the same register bank
// and is configured alongside it).
func pads(c sdmmc.Controller) (offset uint32, ok bool) {
	switch c {
	case sdmmc.SDMMC1:
		return 0x00, true
	case sdmmc.SDMMC2:
		return 0x9c, true
	case sdmmc.SDMMC3:
		return 0x1bc, true
	case sdmmc.SDMMC4:
		return 0x1c4, true
	default:
		return 0, false
	}
}

// Configure clears a pad's tristate and pull-up/down override and enables
// its input buffer, the fixed configuration every SDMMC controller bus pad
// needs (spec A5).
func Configure(c sdmmc.Controller) {
	offset, ok := pads(c)

	if !ok {
		return
	}

	addr := Base + offset

	reg.Clear(addr, PM_TRISTATE)
	reg.SetN(addr, PM_PUPD, 0b11, PM_PUPD_NONE)
	reg.Set(addr, PM_E_INPUT)
	reg.Clear(addr, PM_PARK)
}
