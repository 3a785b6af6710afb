// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "testing"

func TestSpeedTargetHz(t *testing.T) {
	cases := []struct {
		speed Speed
		want  uint32
	}{
		{SpeedSDIdent, identFreqHz},
		{SpeedSDDefaultSpeed, hz25},
		{SpeedSDHighSpeed, hz50},
		{SpeedSDSDR104, hz208},
		{SpeedMMCHS200, hz200},
	}

	for _, c := range cases {
		if got := speedTargetHz(c.speed); got != c.want {
			t.Errorf("speedTargetHz(%s) = %d, want %d", c.speed, got, c.want)
		}
	}
}

func TestSelectSDSpeed(t *testing.T) {
	hw := &Host{}

	if got := hw.selectSDSpeed(false, false, false); got != SpeedSDDefaultSpeed {
		t.Errorf("no capability advertised: got %s, want %s", got, SpeedSDDefaultSpeed)
	}

	if got := hw.selectSDSpeed(false, false, true); got != SpeedSDHighSpeed {
		t.Errorf("HS advertised at 3.3V: got %s, want %s", got, SpeedSDHighSpeed)
	}

	// SDR104 requires both 1.8V signaling and AllowVoltageSwitching; at
	// 3.3V it must not be selected even if the card advertises support.
	if got := hw.selectSDSpeed(true, true, true); got != SpeedSDHighSpeed {
		t.Errorf("SDR104 advertised at 3.3V: got %s, want %s", got, SpeedSDHighSpeed)
	}

	hw.AllowVoltageSwitching = true
	hw.busVoltage = Voltage1V8

	if got := hw.selectSDSpeed(true, true, true); got != SpeedSDSDR104 {
		t.Errorf("SDR104 at 1.8V with switching allowed: got %s, want %s", got, SpeedSDSDR104)
	}

	if got := hw.selectSDSpeed(false, true, true); got != SpeedSDSDR50 {
		t.Errorf("SDR50 at 1.8V: got %s, want %s", got, SpeedSDSDR50)
	}
}

func TestSelectMMCSpeedStopsAtHS200(t *testing.T) {
	hw := &Host{AllowVoltageSwitching: true, busVoltage: Voltage1V8}

	const (
		mmcHS400_1v8  = 1 << 6
		mmcHS200_1v8  = 1 << 4
		mmcHS52       = 1 << 1
	)

	// a card advertising HS400 support must still land on HS200: the
	// optimizer never engages HS400 (open question (a)).
	if got := hw.selectMMCSpeed(mmcHS400_1v8 | mmcHS200_1v8 | mmcHS52); got != SpeedMMCHS200 {
		t.Errorf("got %s, want %s", got, SpeedMMCHS200)
	}

	hw2 := &Host{}

	if got := hw2.selectMMCSpeed(mmcHS52); got != SpeedMMCHighSpeed {
		t.Errorf("got %s, want %s", got, SpeedMMCHighSpeed)
	}

	if got := hw2.selectMMCSpeed(0); got != SpeedMMCLegacy {
		t.Errorf("got %s, want %s", got, SpeedMMCLegacy)
	}
}
