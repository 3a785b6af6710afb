// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "testing"

func TestLookupClkSource(t *testing.T) {
	entry, ok := lookupClkSource(hz200)

	if !ok {
		t.Fatal("expected hz200 to be a known clock source")
	}

	if entry.achievedHz != hz200 {
		t.Errorf("achievedHz = %d, want %d", entry.achievedHz, hz200)
	}

	if _, ok := lookupClkSource(123456); ok {
		t.Error("expected an arbitrary frequency to be unsupported")
	}
}

func TestClockDivider(t *testing.T) {
	cases := []struct {
		achieved, target, want uint32
	}{
		{hz200, hz200, 0},
		{hz200, hz100, 2},
		{hz200, hz50, 4},
		{hz200, 0, 0},
		{hz25, hz50, 0},
	}

	for _, c := range cases {
		if got := clockDivider(c.achieved, c.target); got != c.want {
			t.Errorf("clockDivider(%d, %d) = %d, want %d", c.achieved, c.target, got, c.want)
		}
	}
}

func TestGetField32(t *testing.T) {
	var val uint32 = 0x5a // 0b0101_1010

	if got := getField32(val, 1, 0xf); got != 0xd {
		t.Errorf("getField32(0x5a, 1, 0xf) = %#x, want 0xd", got)
	}
}
