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

// dmaBoundary is the SDMA re-arm boundary programmed into BLOCK_SIZE's
// upper field (spec §4.C5 "SDMA boundary"): the controller raises
// DMA_INTERRUPT every time the transfer address crosses a 512KiB line, and
// the driver must reprogram DMA_ADDRESS to the next line before the
// transfer can proceed.
const dmaBoundary = 0x80000
const dmaBoundaryMask = 0xFFF80000

const dmaTimeout = 2 * time.Second

// dmaStart reserves a bounce buffer, primes BLOCK_SIZE/BLOCK_COUNT/
// TRANSFER_MODE and programs DMA_ADDRESS, preferring SDMA over ADMA2 (spec
// §9 design note, §4.C5): this driver only ever builds the single-buffer
// SDMA path, reserving the ADMA2 descriptor table for a future transfer
// size that exceeds what a 512KiB-bounded SDMA run can carry in one
// command.
func (hw *Host) dmaStart(buf []byte, blockSize, blocks int, write bool) (addr uint32, err error) {
	addr = dma.Alloc(buf, 32)

	if write {
		dma.Write(addr, 0, buf)
	}

	hw.dmaBaseAddr = addr
	hw.nextDMAAddr = (addr + dmaBoundary) & dmaBoundaryMask

	writeReg(hw.reg(SDHCI_BLOCK_SIZE), uint32(blockSize&0xfff)|BLOCK_SIZE_DMA512K)
	writeReg(hw.reg(SDHCI_BLOCK_COUNT), uint32(blocks))
	writeReg(hw.reg(SDHCI_DMA_ADDRESS), addr)

	var xfr uint32
	bits.SetTo(&xfr, TRANSFER_MODE_DMA_ENABLE, true)
	bits.SetTo(&xfr, TRANSFER_MODE_DATA_DIR_READ, !write)
	bits.SetTo(&xfr, TRANSFER_MODE_BLOCK_COUNT_EN, blocks > 1)
	bits.SetTo(&xfr, TRANSFER_MODE_MULTI_BLOCK, blocks > 1)
	bits.SetTo(&xfr, TRANSFER_MODE_AUTO_CMD12, blocks > 1)

	writeReg(hw.reg(SDHCI_TRANSFER_MODE), xfr)

	return addr, nil
}

// dmaAwait services DMA_INTERRUPT boundary re-arms until XFER_COMPLETE,
// then tears down the bounce buffer, copying the read data back out (spec
// §4.C5 "Boundary interrupt handling", P3, P4).
func (hw *Host) dmaAwait(addr uint32, buf []byte, write bool) error {
	defer dma.Free(addr)

	status := hw.reg(SDHCI_INT_STATUS)
	deadline := hw.Platform.Now() + uint32(dmaTimeout.Milliseconds())

	for {
		val := readReg(status)

		if val&INT_STATUS_ERROR_MASK != 0 {
			writeReg(status, val)
			hw.abort()
			return errorf(CommandError, "dmaAwait", "transfer error status %#x", val)
		}

		if bits.Get(&val, INT_STATUS_DMA_INTERRUPT) {
			setBit(status, INT_STATUS_DMA_INTERRUPT)
			writeReg(hw.reg(SDHCI_DMA_ADDRESS), hw.nextDMAAddr)
			hw.nextDMAAddr = (hw.nextDMAAddr + dmaBoundary) & dmaBoundaryMask
			continue
		}

		if bits.Get(&val, INT_STATUS_XFER_COMPLETE) {
			setBit(status, INT_STATUS_XFER_COMPLETE)
			break
		}

		if int32(hw.Platform.Now()-deadline) >= 0 {
			hw.abort()
			return errorf(Timeout, "dmaAwait", "transfer did not complete")
		}
	}

	if !write {
		dma.Read(addr, 0, buf)
	}

	return nil
}
