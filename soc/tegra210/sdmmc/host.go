// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"time"

	"github.com/usbarmory/tamago/bits"
)

// Timeout bounds per spec §5's normative table: card clock stable 2s,
// CMD/DAT inhibit clearing and busy (DAT0) release 10ms.
const (
	resetTimeout       = 100 * time.Millisecond
	internalClkTimeout = 2 * time.Second
	inhibitTimeout      = 10 * time.Millisecond
	busyTimeout         = 10 * time.Millisecond
)

// softReset pulses the CMD and/or DAT lines of SDHCI_SOFTWARE_RESET and
// waits for the controller to clear them (spec §4.C3 "Abort").
func (hw *Host) softReset(mask int) error {
	addr := hw.reg(SDHCI_SOFTWARE_RESET)

	setBit(addr, mask)

	if !waitBit(addr, mask, 0, resetTimeout) {
		return errorf(Timeout, "softReset", "controller did not clear reset bit %d", mask)
	}

	return nil
}

// abort issues a full command+data reset, used to recover from a command or
// data-phase error before the next transaction (spec §4.C4 "Abort").
func (hw *Host) abort() error {
	if err := hw.softReset(SOFTWARE_RESET_CMD); err != nil {
		return err
	}

	return hw.softReset(SOFTWARE_RESET_DAT)
}

// disableSDClock clears CLOCK_CONTROL.SD_ENABLE, observing invariant I1
// (the bus clock is never toggled while a command is outstanding).
func (hw *Host) disableSDClock() {
	clearBit(hw.reg(SDHCI_CLOCK_CONTROL), CLOCK_CONTROL_SD_ENABLE)
	hw.isSDClockEnabled = false
}

// enableSDClock waits for the internal clock to stabilize and then sets
// CLOCK_CONTROL.SD_ENABLE.
func (hw *Host) enableSDClock() error {
	if !waitBit(hw.reg(SDHCI_CLOCK_CONTROL), CLOCK_CONTROL_INTERNAL_STABLE, 1, internalClkTimeout) {
		return errorf(Timeout, "enableSDClock", "internal clock did not stabilize")
	}

	setBit(hw.reg(SDHCI_CLOCK_CONTROL), CLOCK_CONTROL_SD_ENABLE)
	hw.isSDClockEnabled = true

	return nil
}

// internalClockEnable turns on the SDHCI internal clock, negotiates the DMA
// capability the controller advertises and resets the command/data state
// machine ahead of enumeration (spec §4.C3 step 7).
func (hw *Host) internalClockEnable() error {
	setBit(hw.reg(SDHCI_CLOCK_CONTROL), CLOCK_CONTROL_INTERNAL_ENABLE)

	if !waitBit(hw.reg(SDHCI_CLOCK_CONTROL), CLOCK_CONTROL_INTERNAL_STABLE, 1, internalClkTimeout) {
		return errorf(Timeout, "internalClockEnable", "internal clock did not stabilize")
	}

	caps := readReg(hw.reg(SDHCI_CAPABILITIES))
	hw.usesADMA = bits.Get(&caps, CAPABILITIES_ADMA2)

	setBit(hw.reg(SDHCI_HOST_CONTROL2), HOST_CONTROL2_HOST_VER4_EN)

	if bits.Get(&caps, CAPABILITIES_64BIT) {
		setBit(hw.reg(SDHCI_HOST_CONTROL2), HOST_CONTROL2_ADDR_64BIT_EN)
	}

	writeReg(hw.reg(SDHCI_TIMEOUT_CONTROL), 0x0e)

	if err := hw.abort(); err != nil {
		return err
	}

	writeReg(hw.reg(SDHCI_INT_ENABLE), 0xffffffff)
	writeReg(hw.reg(SDHCI_SIGNAL_ENABLE), 0)

	return nil
}

// selectBusWidth programs HOST_CONTROL.DTW/DTW8 (spec §4.C3 "Select bus
// width").
func (hw *Host) selectBusWidth(width Width) error {
	addr := hw.reg(SDHCI_HOST_CONTROL)

	switch width {
	case Width1Bit:
		clearBit(addr, HOST_CONTROL_DTW)
		clearBit(addr, HOST_CONTROL_DTW8)
	case Width4Bit:
		setBit(addr, HOST_CONTROL_DTW)
		clearBit(addr, HOST_CONTROL_DTW8)
	case Width8Bit:
		setBit(addr, HOST_CONTROL_DTW8)
	default:
		return errorf(Unsupported, "selectBusWidth", "unsupported bus width %d", width)
	}

	hw.busWidth = width

	return nil
}

// selectVoltage programs POWER_CONTROL (spec §4.C3 "Select voltage").
// VoltageNone powers the bus off, observed by Finish.
func (hw *Host) selectVoltage(voltage Voltage) {
	addr := hw.reg(SDHCI_POWER_CONTROL)

	switch voltage {
	case VoltageNone:
		clearBit(addr, POWER_CONTROL_SD_BUS)
	case Voltage3V3:
		setField(addr, POWER_CONTROL_VOLTAGE, 0x7, 0x7)
		setBit(addr, POWER_CONTROL_SD_BUS)
		clearBit(hw.reg(SDHCI_HOST_CONTROL2), HOST_CONTROL2_VDD180)
	case Voltage1V8:
		setField(addr, POWER_CONTROL_VOLTAGE, 0x7, 0x5)
		setBit(addr, POWER_CONTROL_SD_BUS)
		setBit(hw.reg(SDHCI_HOST_CONTROL2), HOST_CONTROL2_VDD180)
	}

	hw.busVoltage = voltage
}

// selectSpeed programs HOST_CONTROL2.UHS_MODE, the sampling tap, and sets
// HOST_CONTROL.HS for the legacy high-speed modes (spec §4.C3 "Select
// speed").
func (hw *Host) selectSpeed(speed Speed) error {
	addr := hw.reg(SDHCI_HOST_CONTROL2)

	var uhs uint32
	hs := false

	switch speed {
	case SpeedMMCIdent, SpeedSDIdent, SpeedMMCLegacy, SpeedSDDefaultSpeed:
		uhs = UHS_MODE_SDR12
	case SpeedSDHighSpeed, SpeedMMCHighSpeed:
		uhs = UHS_MODE_SDR25
		hs = true
	case SpeedSDSDR12:
		uhs = UHS_MODE_SDR12
	case SpeedSDSDR25:
		uhs = UHS_MODE_SDR25
	case SpeedSDSDR50:
		uhs = UHS_MODE_SDR50
	case SpeedSDSDR104, SpeedMMCHS200, SpeedGCASIC, SpeedGCASICFPGA, SpeedEmuSDR104:
		uhs = UHS_MODE_SDR104
	case SpeedMMCHS400:
		uhs = UHS_MODE_HS400
	default:
		return errorf(Unsupported, "selectSpeed", "unsupported speed %s", speed)
	}

	setToBit(hw.reg(SDHCI_HOST_CONTROL), HOST_CONTROL_HS, hs)
	setField(addr, HOST_CONTROL2_UHS_MODE, 0x7, uhs)

	hw.tapConfig(speed)
	hw.operatingSpeed = speed

	return nil
}

// adjustSDClock recomputes CLOCK_CONTROL's divider for the current
// operating speed and waits for the internal clock to restabilize (spec
// §4.C3 step 9, §4.C2).
func (hw *Host) adjustSDClock() error {
	wasEnabled := hw.isSDClockEnabled

	if wasEnabled {
		hw.disableSDClock()
	}

	targetHz := speedTargetHz(hw.operatingSpeed)

	achievedHz, err := hw.clkAdjustSource(targetHz)

	if err != nil {
		return err
	}

	div := clockDivider(achievedHz, targetHz)
	hw.internalDivider = div

	// SDCLK = base / (2 * field), so CLOCK_CONTROL holds half the divider
	half := div >> 1

	addr := hw.reg(SDHCI_CLOCK_CONTROL)
	setField(addr, CLOCK_CONTROL_DIV_LO, 0xff, half&0xff)
	setField(addr, CLOCK_CONTROL_DIV_HI, 0x3, (half>>8)&0x3)

	if wasEnabled {
		return hw.enableSDClock()
	}

	return nil
}

// clockDivider computes the power-of-two divider that brings achievedHz
// down to at most targetHz (0 when no division is needed); adjustSDClock
// programs half of it into CLOCK_CONTROL's SDCLKFS field.
func clockDivider(achievedHz, targetHz uint32) uint32 {
	if targetHz == 0 || achievedHz <= targetHz {
		return 0
	}

	ratio := (achievedHz + targetHz - 1) / targetHz
	div := uint32(2)

	for div < 0x400 && div < ratio {
		div *= 2
	}

	return div
}

// waitInhibit polls PRESENT_STATE for CMD/DAT inhibit to clear before
// issuing the next command (spec §4.C4 "Wait for idle").
func (hw *Host) waitInhibit(dat bool) error {
	addr := hw.reg(SDHCI_PRESENT_STATE)

	if !waitBit(addr, PRESENT_STATE_CMD_INHIBIT, 0, inhibitTimeout) {
		return errorf(Timeout, "waitInhibit", "CMD inhibit did not clear")
	}

	if dat && !waitBit(addr, PRESENT_STATE_DAT_INHIBIT, 0, inhibitTimeout) {
		return errorf(Timeout, "waitInhibit", "DAT inhibit did not clear")
	}

	return nil
}

// waitBusy polls DAT0's level after an R1B response, observing invariant I5
// (busy release bounded by busyTimeout).
func (hw *Host) waitBusy() error {
	addr := hw.reg(SDHCI_PRESENT_STATE)

	if !waitBit(addr, PRESENT_STATE_DAT0_LVL, 1, busyTimeout) {
		return errorf(Busy, "waitBusy", "DAT0 did not release")
	}

	return nil
}

// waitState polls the card status via SEND_STATUS until it reports the
// requested state (spec §4.C7/C8, grounded on soc/nxp/usdhc/cmd.go's
// waitState).
func (hw *Host) waitState(state int, timeout time.Duration) error {
	deadline := hw.Platform.Now() + uint32(timeout.Milliseconds())

	for {
		if err := hw.send(SEND_STATUS, hw.card.RCA<<16, RESP_48, nil, 0); err != nil {
			return err
		}

		cur := int(getField32(hw.response[0], STATUS_CURRENT_STATE, 0xf))

		if cur == state {
			return nil
		}

		if int32(hw.Platform.Now()-deadline) >= 0 {
			return errorf(Timeout, "waitState", "card did not reach state %d (stuck at %d)", state, cur)
		}

		hw.Platform.Sleep(time.Millisecond)
	}
}

func getField32(val uint32, pos int, mask uint32) uint32 {
	return (val >> uint(pos)) & mask
}
