// Tegra210 fuse (efuse) support
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fuse reads the Tegra210 silicon revision out of the FUSE block,
// the one piece of information soc/tegra210/sdmmc.Platform.Revision needs
// to pick the right trim constants and auto-cal fallback values (spec A5
// "SoC revision detection").
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package fuse

import (
	"github.com/usbarmory/tamago/internal/reg"
	"github.com/usbarmory/tamago/soc/tegra210/sdmmc"
)

// FUSE base and the fields used to distinguish Erista (Tegra210) from
// Mariko (Tegra210B01) silicon (Tegra X1 TRM, "Fuse Controller").
const (
	Base = 0x7000f800

	FUSE_OPT_SUB_REVISION = 0x248
	FUSE_SKU_INFO         = 0x010

	marikoSubRevisionMin = 2
)

// Revision reads FUSE_OPT_SUB_REVISION and reports the Tegra210 silicon
// generation: Mariko boards carry a sub-revision of 2 or higher, Erista
// boards carry 0 or 1.
func Revision() sdmmc.Revision {
	sub := reg.Get(Base+FUSE_OPT_SUB_REVISION, 0, 0xf)

	if sub >= marikoSubRevisionMin {
		return sdmmc.Mariko
	}

	return sdmmc.Erista
}

// SKU returns the FUSE_SKU_INFO value, useful for board identification
// beyond the Erista/Mariko split.
func SKU() uint32 {
	return reg.Read(Base + FUSE_SKU_INFO)
}
