// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "testing"

func TestResponse136(t *testing.T) {
	hw := &Host{}

	// response[3] carries the payload's most-significant bytes, down to
	// response[0] carrying the least-significant (plus the CRC7/end bit
	// hardware already stripped from bit 0).
	hw.response = [4]uint32{
		0x00010203,
		0x04050607,
		0x08090a0b,
		0x0c0d0e0f,
	}

	got := hw.response136()
	want := [16]byte{
		0x0d, 0x0e, 0x0f, 0x08,
		0x09, 0x0a, 0x0b, 0x04,
		0x05, 0x06, 0x07, 0x00,
		0x01, 0x02, 0x03, 0x00,
	}

	if got != want {
		t.Errorf("response136() = %x, want %x", got, want)
	}
}

func TestDataCommand(t *testing.T) {
	hasData, write := dataCommand(READ_SINGLE_BLOCK)

	if !hasData || write {
		t.Errorf("READ_SINGLE_BLOCK: hasData=%v write=%v, want true/false", hasData, write)
	}

	hasData, write = dataCommand(WRITE_BLOCK)

	if !hasData || !write {
		t.Errorf("WRITE_BLOCK: hasData=%v write=%v, want true/true", hasData, write)
	}

	hasData, _ = dataCommand(GO_IDLE_STATE)

	if hasData {
		t.Errorf("GO_IDLE_STATE: hasData=true, want false")
	}
}
