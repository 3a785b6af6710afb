// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "time"

const tuningTimeout = 50 * time.Millisecond

// tuningParams returns the EXEC_TUNING loop bound and the VENDOR_TUNING_CNTRL0
// TRIES field value for speed (spec §4.C6, grounded on
// original_source/fusee/common/sdmmc/sdmmc_core.c's sdmmc_execute_tuning:
// HS200/HS400/SDR104/emu-SDR104 get 128 loops and TRIES=2, SDR50 and the
// game-card modes get 256 loops and TRIES=4).
func tuningParams(speed Speed) (maxLoop int, tries uint32) {
	switch speed {
	case SpeedMMCHS200, SpeedMMCHS400, SpeedSDSDR104, SpeedEmuSDR104:
		return 128, 2
	case SpeedSDSDR50, SpeedGCASIC, SpeedGCASICFPGA:
		return 256, 4
	default:
		return 128, 2
	}
}

// tuningBlockSize returns the data block size a tuning probe transfers,
// 64 bytes on a 4-bit bus and 128 bytes on an 8-bit bus (spec §4.C6,
// sdmmc_send_tuning's bus_width switch); tuning is not defined on a 1-bit
// bus.
func tuningBlockSize(width Width) (size int, ok bool) {
	switch width {
	case Width4Bit:
		return 0x40, true
	case Width8Bit:
		return 0x80, true
	default:
		return 0, false
	}
}

// tuningCommand returns the tuning probe command appropriate to speed (spec
// §4.C6): SEND_TUNING_BLOCK for SDR50/SDR104 and the game-card modes that
// inherit from it, SEND_TUNING_BLOCK_HS200 for HS200/HS400.
func tuningCommand(speed Speed) uint32 {
	switch speed {
	case SpeedMMCHS200, SpeedMMCHS400:
		return SEND_TUNING_BLOCK_HS200
	default:
		return SEND_TUNING_BLOCK
	}
}

// configureTuningControl programs VENDOR_TUNING_CNTRL0/1 for the tuning
// loop about to run (spec §4.C6, sdmmc_execute_tuning): a full-register
// reset of CNTRL1, the per-speed TRIES field, a fixed MULTIPLIER of 1, and
// SET_BY_HW so the controller applies the tap the tuning loop converges on.
func (hw *Host) configureTuningControl(tries uint32) {
	writeReg(hw.reg(VENDOR_TUNING_CNTRL1), 0)
	setField(hw.reg(VENDOR_TUNING_CNTRL0), VENDOR_TUNING_CNTRL0_TRIES, 0x7, tries)
	setField(hw.reg(VENDOR_TUNING_CNTRL0), VENDOR_TUNING_CNTRL0_MULTIPLIER, 0x7f, 1)
	setBit(hw.reg(VENDOR_TUNING_CNTRL0), VENDOR_TUNING_CNTRL0_SET_BY_HW)
}

// executeTuning runs the HOST_CONTROL2.EXEC_TUNING loop the controller uses
// to find a working sampling tap (spec §4.C6 "Execute tuning"), grounded on
// sdmmc_execute_tuning/sdmmc_send_tuning. It is only invoked for speeds
// where Speed.needsTuning reports true.
func (hw *Host) executeTuning(speed Speed) error {
	blockSize, ok := tuningBlockSize(hw.busWidth)

	if !ok {
		return errorf(Unsupported, "executeTuning", "tuning requires a 4- or 8-bit bus")
	}

	maxLoop, tries := tuningParams(speed)
	hw.configureTuningControl(tries)

	addr := hw.reg(SDHCI_HOST_CONTROL2)
	setBit(addr, HOST_CONTROL2_EXEC_TUNING)

	cmd := tuningCommand(speed)
	buf := make([]byte, blockSize)

	for i := 0; i < maxLoop; i++ {
		// every iteration, not just the first, turns the SD clock off
		// and back on before the probe is issued; the probe itself runs
		// with the clock enabled, and the CMD/DAT reset follows only a
		// failed probe.
		hw.disableSDClock()

		if err := hw.enableSDClock(); err != nil {
			return err
		}

		if err := hw.send(cmd, 0, RESP_48, buf, blockSize); err != nil {
			// a failed tuning probe is expected mid-loop; keep
			// iterating rather than aborting the whole procedure.
			hw.abort()
		}

		if !getBit(addr, HOST_CONTROL2_EXEC_TUNING) {
			break
		}
	}

	if !getBit(addr, HOST_CONTROL2_SAMPLING_CLOCK) {
		clearBit(addr, HOST_CONTROL2_EXEC_TUNING)
		return errorf(TuningFailed, "executeTuning", "%s tuning did not converge", speed)
	}

	hw.tapVal = getField(hw.reg(VENDOR_CLOCK_CNTRL), VENDOR_CLOCK_CNTRL_TAP, 0xff)
	hw.isTuningTapSet = true

	return nil
}
