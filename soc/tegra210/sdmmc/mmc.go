// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "time"

const (
	mmcOCRSector   = 1 << 30
	mmcOCRVoltages = 0x00ff8000
	mmcOCRBusy     = 1 << 31
	mmcRCA         = 2

	mmcOpCondTimeout = 1 * time.Second

	mmcExtCSDDeviceType     = 196
	mmcExtCSDSectorCount    = 212
	mmcExtCSDPartSupport    = 160
	mmcExtCSDPartConfig     = 179
	mmcExtCSDPartSwitchTime = 199

	mmcSwitchWriteByte = 0x03
	mmcSwitchAccessModeAccessWriteByte = 3
)

// probeMMC issues CMD1 and reports whether the card answered as an MMC
// device (spec §4.C7 "Probe"). It is only attempted after probeSD fails.
func (hw *Host) probeMMC() bool {
	if err := hw.send(SEND_OP_COND, mmcOCRVoltages|mmcOCRSector, RESP_48, nil, 0); err != nil {
		return false
	}

	hw.card.MMC = true

	return true
}

// initMMC runs the eMMC card enumeration sequence (spec §4.C7 "Init"),
// selecting and engaging the fastest mutually-supported speed mode.
func (hw *Host) initMMC(requested Speed) error {
	if err := hw.waitOpCondMMC(); err != nil {
		return err
	}

	if err := hw.send(ALL_SEND_CID, 0, RESP_136, nil, 0); err != nil {
		return err
	}
	cid := hw.response136()
	copy(hw.card.CID[:], cid[:])

	hw.card.RCA = mmcRCA

	if err := hw.send(SEND_RELATIVE_ADDR, hw.card.RCA<<16, RESP_48, nil, 0); err != nil {
		return err
	}

	if err := hw.send(SEND_CSD, hw.card.RCA<<16, RESP_136, nil, 0); err != nil {
		return err
	}
	csd := hw.response136()
	copy(hw.card.CSD[:], csd[:])

	if err := hw.send(SELECT_CARD, hw.card.RCA<<16, RESP_48_BUSY, nil, 0); err != nil {
		return err
	}

	extCSD := make([]byte, 512)

	if err := hw.send(SEND_IF_COND, 0, RESP_48, extCSD, 512); err != nil {
		return errorf(Unsupported, "initMMC", "SEND_EXT_CSD: %w", err)
	}

	hw.card.HC = extCSD[mmcExtCSDSectorCount] != 0 ||
		extCSD[mmcExtCSDSectorCount+1] != 0 ||
		extCSD[mmcExtCSDSectorCount+2] != 0 ||
		extCSD[mmcExtCSDSectorCount+3] != 0
	hw.card.UsesBlockAddressing = hw.card.HC
	hw.usesBlockAddressing = hw.card.HC

	hw.card.BlockSize = 512
	hw.card.Blocks = int(uint32(extCSD[mmcExtCSDSectorCount]) |
		uint32(extCSD[mmcExtCSDSectorCount+1])<<8 |
		uint32(extCSD[mmcExtCSDSectorCount+2])<<16 |
		uint32(extCSD[mmcExtCSDSectorCount+3])<<24)

	hw.card.CardType = extCSD[mmcExtCSDDeviceType]
	hw.card.PartitionSupport = extCSD[mmcExtCSDPartSupport]
	hw.card.PartitionConfig = extCSD[mmcExtCSDPartConfig]
	hw.card.PartitionSwitchTimeUs = uint32(extCSD[mmcExtCSDPartSwitchTime]) * 10000

	if hw.busWidth == Width8Bit || hw.busWidth == Width4Bit {
		if err := hw.setBusWidthMMC(hw.busWidth); err != nil {
			return err
		}
	}

	speed := hw.selectMMCSpeed(hw.card.CardType)

	if speed == SpeedMMCHighSpeed || speed == SpeedMMCHS200 {
		hsFunction := byte(1)
		if speed == SpeedMMCHS200 {
			hsFunction = 2
		}

		if err := hw.switchMMC(185, hsFunction, mmcSwitchAccessModeAccessWriteByte); err != nil {
			speed = SpeedMMCLegacy
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

// waitOpCondMMC polls CMD1 until OCR.busy clears, recording sector (block)
// addressing mode from OCR bit 30 (spec §4.C7).
func (hw *Host) waitOpCondMMC() error {
	deadline := hw.Platform.Now() + uint32(mmcOpCondTimeout.Milliseconds())

	for {
		if err := hw.send(SEND_OP_COND, mmcOCRVoltages|mmcOCRSector, RESP_48, nil, 0); err != nil {
			return err
		}

		ocr := hw.response[0]

		if ocr&mmcOCRBusy != 0 {
			hw.card.HC = ocr&mmcOCRSector != 0
			return nil
		}

		if int32(hw.Platform.Now()-deadline) >= 0 {
			return errorf(Timeout, "waitOpCondMMC", "card did not leave busy state")
		}

		hw.Platform.Sleep(time.Millisecond)
	}
}

// switchMMC issues CMD6 to write one EXT_CSD byte (spec §4.C7 "Switch"),
// then waits for the card to return to the transfer state (spec I3).
func (hw *Host) switchMMC(index byte, value byte, accessMode byte) error {
	if !hw.AllowMMCWrite {
		return errorf(PermissionDenied, "switchMMC", "eMMC write permission not granted")
	}

	arg := uint32(accessMode)<<24 | uint32(index)<<16 | uint32(value)<<8

	if err := hw.send(SWITCH, arg, RESP_48_BUSY, nil, 0); err != nil {
		return err
	}

	return hw.waitState(CURRENT_STATE_TRAN, busyTimeout)
}

// setBusWidthMMC issues CMD6 to set EXT_CSD's BUS_WIDTH byte (spec §4.C7).
func (hw *Host) setBusWidthMMC(width Width) error {
	var val byte

	switch width {
	case Width4Bit:
		val = 1
	case Width8Bit:
		val = 2
	}

	arg := uint32(mmcSwitchAccessModeAccessWriteByte)<<24 | uint32(183)<<16 | uint32(val)<<8

	if err := hw.send(SWITCH, arg, RESP_48_BUSY, nil, 0); err != nil {
		return err
	}

	if err := hw.waitState(CURRENT_STATE_TRAN, busyTimeout); err != nil {
		return err
	}

	return hw.selectBusWidth(width)
}
