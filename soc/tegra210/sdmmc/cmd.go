// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"time"

	"github.com/usbarmory/tamago/bits"
	"github.com/usbarmory/tamago/dma"
)

// cmdTimeout bounds CMD_COMPLETE per spec §5's normative table ("Command
// complete: 2s").
const cmdTimeout = 2 * time.Second

// dataCommand reports whether index carries a data phase and, if so,
// whether that phase is a write, mirroring the cmds table idiom of
// soc/nxp/usdhc/cmd.go adapted to this controller's fixed CMD/ACMD set
// (spec.md §6).
func dataCommand(index uint32) (hasData bool, write bool) {
	switch index {
	case READ_SINGLE_BLOCK, READ_MULTIPLE_BLOCK, SEND_TUNING_BLOCK, SEND_TUNING_BLOCK_HS200:
		return true, false
	case WRITE_BLOCK, WRITE_MULTIPLE_BLOCK:
		return true, true
	case ACMD_SEND_SCR:
		return true, false
	default:
		return false, false
	}
}

// send issues one command, observing spec §4.C4's ten-step procedure:
// wait for idle, clear stale status, arm the data phase if present, write
// ARGUMENT then COMMAND, wait for CMD_COMPLETE, capture the response,
// service the data phase to completion, and check the error mask.
func (hw *Host) send(index uint32, arg uint32, respType int, buf []byte, blockSize int) error {
	hasData, write := dataCommand(index)
	hasData = hasData || len(buf) > 0
	blocks := 0

	if hasData {
		if blockSize == 0 {
			blockSize = len(buf)
		}

		if blockSize == 0 {
			return errorf(Unsupported, "send", "data command %d with zero block size", index)
		}

		blocks = len(buf) / blockSize

		if blocks == 0 {
			blocks = 1
		}
	}

	if err := hw.waitInhibit(hasData); err != nil {
		return err
	}

	status := hw.reg(SDHCI_INT_STATUS)
	writeReg(status, readReg(status))

	var dmaAddr uint32
	var err error

	if hasData {
		dmaAddr, err = hw.dmaStart(buf, blockSize, blocks, write)

		if err != nil {
			return err
		}
	}

	writeReg(hw.reg(SDHCI_ARGUMENT), arg)

	// the COMMAND register doubles as the trigger that dispatches the
	// command once written, so all of its fields are assembled in a
	// local mirror and committed with a single write, rather than
	// issued as separate read-modify-write cycles against the live
	// register (grounded on soc/nxp/usdhc/cmd.go's xfr/cmd assembly).
	var reg32 uint32
	bits.SetN(&reg32, COMMAND_CMD_INDEX, 0x3f, index)
	bits.SetN(&reg32, COMMAND_RESP_TYPE, 0x3, uint32(respType))
	bits.SetTo(&reg32, COMMAND_CMD_CRC_EN, respType != RESP_NONE)
	bits.SetTo(&reg32, COMMAND_CMD_INDEX_EN, respType == RESP_48 || respType == RESP_48_BUSY)
	bits.SetTo(&reg32, COMMAND_DATA_PRESENT, hasData)

	writeReg(hw.reg(SDHCI_COMMAND), reg32)

	if !waitBit(status, INT_STATUS_CMD_COMPLETE, 1, cmdTimeout) {
		if hasData {
			dma.Free(dmaAddr)
		}
		hw.abort()
		return errorf(Timeout, "send", "CMD%d did not complete", index)
	}

	errVal := readReg(status)

	if errVal&INT_STATUS_ERROR_MASK != 0 {
		writeReg(status, errVal)

		if hasData {
			dma.Free(dmaAddr)
		}

		hw.abort()
		return errorf(CommandError, "send", "CMD%d error status %#x", index, errVal)
	}

	setBit(status, INT_STATUS_CMD_COMPLETE)

	hw.response[0] = readReg(hw.reg(SDHCI_RESPONSE))

	if respType == RESP_136 {
		hw.response[1] = readReg(hw.reg(SDHCI_RESPONSE) + 4)
		hw.response[2] = readReg(hw.reg(SDHCI_RESPONSE) + 8)
		hw.response[3] = readReg(hw.reg(SDHCI_RESPONSE) + 12)
	}

	if respType == RESP_48_BUSY {
		if err := hw.waitBusy(); err != nil {
			return err
		}
	}

	if hasData {
		if err := hw.dmaAwait(dmaAddr, buf, write); err != nil {
			return err
		}
	}

	if respType == RESP_48 || respType == RESP_48_BUSY {
		if hw.response[0]&(1<<STATUS_ERROR_BITS) != 0 {
			return errorf(CardError, "send", "CMD%d card status error %#x", index, hw.response[0])
		}
	}

	return nil
}

// response136 reassembles the 128-bit CID/CSD payload the SDHCI response
// registers carry shifted left by 8 and stripped of the trailing CRC byte
// (spec P5), returning it most-significant-byte first.
func (hw *Host) response136() [16]byte {
	var out [16]byte

	regs := [4]uint32{hw.response[3], hw.response[2], hw.response[1], hw.response[0]}

	for i, r := range regs {
		out[i*4+0] = byte(r >> 16)
		out[i*4+1] = byte(r >> 8)
		out[i*4+2] = byte(r >> 0)
	}

	// the fourth byte of each register is reconstructed from the next
	// register's top byte; the final byte (CRC7 | end bit) is dropped by
	// hardware and is not part of the 120-bit payload retained here.
	for i := 0; i < 3; i++ {
		out[i*4+3] = byte(regs[i+1] >> 24)
	}

	return out
}
