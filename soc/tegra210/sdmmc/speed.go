// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

// speedTargetHz returns the bus clock frequency a speed mode runs at (spec
// §4.C9 "Speed Optimizer" table).
func speedTargetHz(speed Speed) uint32 {
	switch speed {
	case SpeedMMCIdent, SpeedSDIdent:
		return identFreqHz
	case SpeedMMCLegacy, SpeedSDDefaultSpeed:
		return hz25
	case SpeedSDHighSpeed, SpeedMMCHighSpeed:
		return hz50
	case SpeedSDSDR12:
		return hz25
	case SpeedSDSDR25:
		return hz50
	case SpeedSDSDR50:
		return hz100
	case SpeedSDSDR104, SpeedGCASIC, SpeedGCASICFPGA, SpeedEmuSDR104:
		return hz208
	case SpeedMMCHS200:
		return hz200
	case SpeedMMCHS400:
		return hz200
	default:
		return identFreqHz
	}
}

// selectSDSpeed picks the fastest mutually-supported SD speed mode given
// the controller's voltage-switch allowance and the card's capabilities,
// as reported by SD_SWITCH function group 1 (spec §4.C9, §4.C8).
//
// Controllers that cannot or must not switch to 1.8V signaling (spec I7)
// are limited to SDR25/high-speed at 3.3V.
func (hw *Host) selectSDSpeed(supportsSDR104, supportsSDR50, supportsHS bool) Speed {
	if hw.AllowVoltageSwitching && hw.busVoltage == Voltage1V8 {
		switch {
		case supportsSDR104:
			return SpeedSDSDR104
		case supportsSDR50:
			return SpeedSDSDR50
		}
	}

	if supportsHS {
		return SpeedSDHighSpeed
	}

	return SpeedSDDefaultSpeed
}

// selectMMCSpeed picks the fastest mutually-supported eMMC speed mode given
// EXT_CSD's DEVICE_TYPE field (spec §4.C9, §4.C7). HS400 is recognized by
// the card but never selected (spec §9, open question (a)): the optimizer
// stops at HS200, matching the original driver's deliberately incomplete
// HS400 support.
func (hw *Host) selectMMCSpeed(deviceType byte) Speed {
	const (
		mmcHS200_1v8 = 1 << 4
		mmcHS200_1v2 = 1 << 5
		mmcHS_DDR_1v8 = 1 << 2
		mmcHS52 = 1 << 1
		mmcHS26 = 1 << 0
	)

	if hw.AllowVoltageSwitching && hw.busVoltage == Voltage1V8 && deviceType&mmcHS200_1v8 != 0 {
		return SpeedMMCHS200
	}

	if deviceType&mmcHS52 != 0 {
		return SpeedMMCHighSpeed
	}

	return SpeedMMCLegacy
}
