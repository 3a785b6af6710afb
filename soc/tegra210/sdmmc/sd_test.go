// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "testing"

func TestDetectCapacitySDv1(t *testing.T) {
	hw := &Host{}

	var csd [16]byte
	csd[0] = 1 << 6 // CSD_STRUCTURE = 1 (SDHC/SDXC)

	// C_SIZE = 0x0ee8 (512KiB steps -> a card of about 1.9GB), spread
	// across csd[7..9] per the CSD version 2.0 layout.
	cSize := uint32(0x0ee8)
	csd[7] = byte(cSize >> 16 & 0x3f)
	csd[8] = byte(cSize >> 8)
	csd[9] = byte(cSize)

	hw.detectCapacitySD(csd)

	if hw.card.BlockSize != 512 {
		t.Errorf("BlockSize = %d, want 512", hw.card.BlockSize)
	}

	want := int((cSize + 1) * 1024)

	if hw.card.Blocks != want {
		t.Errorf("Blocks = %d, want %d", hw.card.Blocks, want)
	}
}

func TestDetectCapacitySDv0(t *testing.T) {
	hw := &Host{}

	var csd [16]byte
	// CSD_STRUCTURE = 0 (standard capacity)
	csd[5] = 9 // READ_BL_LEN = 9 (512 bytes)

	hw.detectCapacitySD(csd)

	if hw.card.BlockSize != 512 {
		t.Errorf("BlockSize = %d, want 512", hw.card.BlockSize)
	}

	// an all-zero C_SIZE/C_SIZE_MULT still yields a well-defined, if
	// small, block count rather than a division artefact.
	if hw.card.Blocks <= 0 {
		t.Errorf("Blocks = %d, want a positive value", hw.card.Blocks)
	}
}
