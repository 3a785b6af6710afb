// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "time"

const (
	sdVHS27_36      = 0x1 << 8
	sdCheckPattern   = 0xaa
	sdOCRBusy        = 1 << 31
	sdOCRCCS         = 1 << 30
	sdOCRS18A        = 1 << 24
	sdACMD41HostCaps = sdOCRCCS | 0x00ff8000 | sdOCRS18A

	sdSwitchModeCheck  = 0
	sdSwitchModeSwitch = 1
	sdSwitchGroupAccess = 0

	sdOpCondTimeout = 1 * time.Second
)

// probeSD runs CMD8 followed by an ACMD41 probe and reports whether the
// inserted card answered as an SD card (spec §4.C8 "Probe"). A card that
// echoes CMD8's check pattern identifies itself as SD spec version 2.00 or
// later regardless of 1.8V support (spec §4.C8), so SpecVersion is recorded
// here rather than alongside the unrelated voltage-switch capability check.
func (hw *Host) probeSD() bool {
	arg := uint32(sdVHS27_36 | sdCheckPattern)

	if err := hw.send(SEND_IF_COND, arg, RESP_48, nil, 0); err != nil {
		// absence of a response to CMD8 does not by itself rule out
		// an SD card (legacy v1 cards do not implement it), so the
		// probe still attempts ACMD41 below.
	} else if hw.response[0]&0xff != sdCheckPattern {
		return false
	} else {
		hw.card.SpecVersion = 2
	}

	if err := hw.send(APP_CMD, 0, RESP_48, nil, 0); err != nil {
		return false
	}

	if err := hw.send(ACMD_SD_SEND_OP_COND, sdACMD41HostCaps, RESP_48, nil, 0); err != nil {
		return false
	}

	hw.card.SD = true

	return true
}

// initSD runs the SD card enumeration sequence (spec §4.C8 "Init"),
// selecting and engaging the fastest mutually-supported speed mode.
func (hw *Host) initSD(requested Speed) error {
	if err := hw.voltageValidationSD(); err != nil {
		return err
	}

	if err := hw.send(ALL_SEND_CID, 0, RESP_136, nil, 0); err != nil {
		return err
	}
	cid := hw.response136()
	copy(hw.card.CID[:], cid[:])

	if err := hw.send(SEND_RELATIVE_ADDR, 0, RESP_48, nil, 0); err != nil {
		return err
	}
	hw.card.RCA = hw.response[0] >> 16

	if err := hw.send(SEND_CSD, hw.card.RCA<<16, RESP_136, nil, 0); err != nil {
		return err
	}
	csd := hw.response136()
	copy(hw.card.CSD[:], csd[:])
	hw.detectCapacitySD(csd)

	if err := hw.send(SELECT_CARD, hw.card.RCA<<16, RESP_48_BUSY, nil, 0); err != nil {
		return err
	}

	if err := hw.sendSCR(); err != nil {
		return err
	}

	if hw.busWidth == Width4Bit {
		if err := hw.setBusWidthSD(Width4Bit); err != nil {
			return err
		}
	}

	sdr104, sdr50, hs, err := hw.querySwitchCapsSD()

	if err != nil {
		return err
	}

	speed := hw.selectSDSpeed(sdr104, sdr50, hs)

	if speed == SpeedSDSDR104 || speed == SpeedSDSDR50 {
		if err := hw.voltageSwitchSD(); err != nil {
			// 1.8V signaling is a negotiated upgrade; falling
			// back to the 3.3V default-speed/high-speed path is
			// always valid (spec I7).
			speed = SpeedSDDefaultSpeed
			if hs {
				speed = SpeedSDHighSpeed
			}
		}
	}

	if speed != SpeedSDDefaultSpeed {
		if err := hw.switchSD(sdSwitchModeSwitch, speedSwitchFunction(speed)); err != nil {
			return err
		}
	}

	if err := hw.selectSpeed(speed); err != nil {
		return err
	}

	if err := hw.adjustSDClock(); err != nil {
		return err
	}

	if err := hw.enableSDClock(); err != nil {
		return err
	}

	if speed.needsTuning() {
		if err := hw.executeTuning(speed); err != nil {
			return err
		}
	}

	hw.operatingSpeed = speed

	return nil
}

// speedSwitchFunction maps a selected Speed onto the SD_SWITCH group-1
// function value that engages it (spec §4.C8, §4.C9).
func speedSwitchFunction(speed Speed) uint32 {
	switch speed {
	case SpeedSDHighSpeed:
		return 1
	case SpeedSDSDR50:
		return 2
	case SpeedSDSDR104, SpeedGCASIC, SpeedGCASICFPGA, SpeedEmuSDR104:
		return 3
	default:
		return 0
	}
}

// voltageValidationSD polls ACMD41 until the card clears the busy bit,
// recording high-capacity status from OCR.CCS (spec §4.C8).
func (hw *Host) voltageValidationSD() error {
	deadline := hw.Platform.Now() + uint32(sdOpCondTimeout.Milliseconds())

	for {
		if err := hw.send(APP_CMD, 0, RESP_48, nil, 0); err != nil {
			return err
		}

		if err := hw.send(ACMD_SD_SEND_OP_COND, sdACMD41HostCaps, RESP_48, nil, 0); err != nil {
			return err
		}

		ocr := hw.response[0]

		if ocr&sdOCRBusy != 0 {
			hw.card.HC = ocr&sdOCRCCS != 0
			hw.card.UsesBlockAddressing = hw.card.HC
			hw.usesBlockAddressing = hw.card.HC

			return nil
		}

		if int32(hw.Platform.Now()-deadline) >= 0 {
			return errorf(Timeout, "voltageValidationSD", "card did not leave busy state")
		}

		hw.Platform.Sleep(time.Millisecond)
	}
}

// detectCapacitySD extracts block count and size from CSD (spec §4.C8,
// grounded on soc/nxp/usdhc/sd.go's detectCapabilitiesSD). CSD_STRUCTURE 1
// selects the version 2.0 layout of SDHC/SDXC cards, any other value the
// version 1.0 layout of standard-capacity cards.
func (hw *Host) detectCapacitySD(csd [16]byte) {
	csdStructure := csd[0] >> 6

	hw.card.BlockSize = 512

	if csdStructure == 1 {
		cSize := uint32(csd[7]&0x3f)<<16 | uint32(csd[8])<<8 | uint32(csd[9])
		hw.card.Blocks = int((cSize + 1) * 1024)
	} else {
		cSize := uint32(csd[6]&0x3)<<10 | uint32(csd[7])<<2 | uint32(csd[8])>>6
		cSizeMult := uint32(csd[9]&0x3)<<1 | uint32(csd[10])>>7
		readBlLen := csd[5] & 0xf

		blockLen := uint32(1) << readBlLen
		mult := uint32(1) << (cSizeMult + 2)
		hw.card.Blocks = int((cSize + 1) * mult * blockLen / 512)
	}
}

// sendSCR reads the 8-byte SD Configuration Register via ACMD51 (spec §4.C8
// supplement).
func (hw *Host) sendSCR() error {
	if err := hw.send(APP_CMD, hw.card.RCA<<16, RESP_48, nil, 0); err != nil {
		return err
	}

	buf := make([]byte, 8)

	if err := hw.send(ACMD_SEND_SCR, 0, RESP_48, buf, 8); err != nil {
		return err
	}

	copy(hw.card.SCR[:], buf)

	return nil
}

// setBusWidthSD issues ACMD6 to engage the 4-bit data bus.
func (hw *Host) setBusWidthSD(width Width) error {
	if err := hw.send(APP_CMD, hw.card.RCA<<16, RESP_48, nil, 0); err != nil {
		return err
	}

	var arg uint32
	if width == Width4Bit {
		arg = 2
	}

	if err := hw.send(ACMD_SET_BUS_WIDTH, arg, RESP_48, nil, 0); err != nil {
		return err
	}

	return hw.selectBusWidth(width)
}

// querySwitchCapsSD probes SD_SWITCH function group 1 in check mode to
// discover which high-speed/UHS-I modes the card itself supports (spec
// §4.C9).
func (hw *Host) querySwitchCapsSD() (sdr104, sdr50, hs bool, err error) {
	status := make([]byte, 64)

	if err = hw.send(SWITCH, uint32(sdSwitchModeCheck)<<31|0x00fffff0|sdSwitchGroupAccess, RESP_48, status, 64); err != nil {
		return false, false, false, err
	}

	support := uint16(status[12])<<8 | uint16(status[13])

	return support&(1<<3) != 0, support&(1<<2) != 0, support&(1<<1) != 0, nil
}

// sdSwitchActiveFunction extracts the group-1 active access mode from a
// 64-byte SD_SWITCH status response (status byte 16, low nibble).
func sdSwitchActiveFunction(status []byte) uint32 {
	return uint32(status[16]) & 0xf
}

// switchSD issues SD_SWITCH in switch mode to engage function fn of group 1,
// verifying that the card's reported active access mode actually matches
// what was requested before the caller reconfigures the host for the new
// timing (spec §4.C9 "verify the returned active-access-mode matches").
func (hw *Host) switchSD(mode int, fn uint32) error {
	status := make([]byte, 64)
	arg := uint32(mode)<<31 | 0x00fffff0 | (fn & 0xf)

	if err := hw.send(SWITCH, arg, RESP_48, status, 64); err != nil {
		return err
	}

	if mode == sdSwitchModeSwitch {
		if active := sdSwitchActiveFunction(status); active != fn {
			return errorf(CardError, "switchSD", "card did not engage function %d (reports %d)", fn, active)
		}
	}

	return nil
}

// voltageSwitchSD runs the CMD11 1.8V signaling handshake (spec §4.C8
// "Voltage switch", I7).
func (hw *Host) voltageSwitchSD() error {
	if err := hw.send(VOLTAGE_SWITCH, 0, RESP_48, nil, 0); err != nil {
		return err
	}

	hw.disableSDClock()
	hw.Platform.Sleep(5 * time.Millisecond)

	hw.selectVoltage(Voltage1V8)
	hw.Platform.Sleep(5 * time.Millisecond)

	if !waitBit(hw.reg(SDHCI_PRESENT_STATE), PRESENT_STATE_DAT0_LVL, 1, 1*time.Second) {
		return errorf(Timeout, "voltageSwitchSD", "DAT lines did not return high after voltage switch")
	}

	return hw.enableSDClock()
}
