// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"testing"
)

// TestWaitInhibitTimesOutWhenCmdInhibitStuck exercises S6: CMD-inhibit held
// high never clears, and the call must fail rather than hang.
func TestWaitInhibitTimesOutWhenCmdInhibitStuck(t *testing.T) {
	hw, f, _ := newFakeHost(t, 0x1000)

	f.Set(hw.reg(SDHCI_PRESENT_STATE), PRESENT_STATE_CMD_INHIBIT)

	err := hw.waitInhibit(false)

	if !Is(err, Timeout) {
		t.Fatalf("waitInhibit() = %v, want Timeout", err)
	}
}

// TestSendTimesOutWhenCmdCompleteNeverSets exercises P6 on the command path:
// a command with no data phase that never raises CMD_COMPLETE returns
// Timeout. The fake never clears SOFTWARE_RESET, so the reset that
// hw.abort() issues on the way out times out too and is not checked here.
func TestSendTimesOutWhenCmdCompleteNeverSets(t *testing.T) {
	hw, _, _ := newFakeHost(t, 0x1000)

	err := hw.send(GO_IDLE_STATE, 0, RESP_NONE, nil, 0)

	if !Is(err, Timeout) {
		t.Fatalf("send() = %v, want Timeout", err)
	}
}

// TestSendSucceedsWhenCmdCompleteSet exercises the command-issue path (spec
// §4.C4) for a no-data, no-response command against a healthy controller.
func TestSendSucceedsWhenCmdCompleteSet(t *testing.T) {
	hw, f, _ := newFakeHost(t, 0x1000)

	f.Set(hw.reg(SDHCI_INT_STATUS), INT_STATUS_CMD_COMPLETE)

	if err := hw.send(GO_IDLE_STATE, 0, RESP_NONE, nil, 0); err != nil {
		t.Fatalf("send() = %v, want nil", err)
	}
}

// TestEnableSDClockTimesOutWhenNeverStable exercises P6: the internal clock
// never reports CLOCK_CONTROL.INTERNAL_STABLE.
func TestEnableSDClockTimesOutWhenNeverStable(t *testing.T) {
	hw, _, _ := newFakeHost(t, 0x1000)

	if err := hw.enableSDClock(); !Is(err, Timeout) {
		t.Fatalf("enableSDClock() = %v, want Timeout", err)
	}

	if hw.isSDClockEnabled {
		t.Fatal("isSDClockEnabled set despite timeout")
	}
}

// TestWaitBusyTimesOutWhenDat0NeverReleases exercises invariant I5.
func TestWaitBusyTimesOutWhenDat0NeverReleases(t *testing.T) {
	hw, _, _ := newFakeHost(t, 0x1000)

	if err := hw.waitBusy(); !Is(err, Busy) {
		t.Fatalf("waitBusy() = %v, want Busy", err)
	}
}

// TestSoftResetTimesOutWhenResetBitStuck confirms abort()'s software reset
// wait bounds itself rather than hanging when the controller never clears
// the reset bit.
func TestSoftResetTimesOutWhenResetBitStuck(t *testing.T) {
	hw, f, _ := newFakeHost(t, 0x1000)

	addr := hw.reg(SDHCI_SOFTWARE_RESET)

	if err := hw.softReset(SOFTWARE_RESET_CMD); !Is(err, Timeout) {
		t.Fatalf("softReset() = %v, want Timeout", err)
	}

	if f.Get(addr, SOFTWARE_RESET_CMD, 1) != 1 {
		t.Fatal("reset bit was not observed set before timing out")
	}
}

// TestClkAdjustSourceCachesRepeatedRequest exercises P2: a second request
// for the same source frequency is a cache hit and does not reprogram CAR.
func TestClkAdjustSourceCachesRepeatedRequest(t *testing.T) {
	hw, _, p := newFakeHost(t, 0x1000)
	hw.Controller = SDMMC2 // avoid cross-test cache collisions on SDMMC1

	clockCacheMu.Lock()
	clockCache[hw.Controller] = clockSource{}
	clockCacheMu.Unlock()

	if _, err := hw.clkAdjustSource(hz50); err != nil {
		t.Fatalf("first clkAdjustSource() = %v", err)
	}

	if p.setSourceCalls != 1 {
		t.Fatalf("setSourceCalls = %d after first call, want 1", p.setSourceCalls)
	}

	if _, err := hw.clkAdjustSource(hz50); err != nil {
		t.Fatalf("second clkAdjustSource() = %v", err)
	}

	if p.setSourceCalls != 1 {
		t.Fatalf("setSourceCalls = %d after repeated request, want 1 (cache hit)", p.setSourceCalls)
	}

	if _, err := hw.clkAdjustSource(hz100); err != nil {
		t.Fatalf("clkAdjustSource(hz100) = %v", err)
	}

	if p.setSourceCalls != 2 {
		t.Fatalf("setSourceCalls = %d after a new frequency, want 2", p.setSourceCalls)
	}
}

// TestAutoCalRunFallsBackOnTimeout exercises S3: a stuck ACTIVE bit must
// drive the fixed fallback drive strengths into SDMEMCOMPPADCTRL, clear
// ENABLE, and still release E_INPUT_E_PWRD.
func TestAutoCalRunFallsBackOnTimeout(t *testing.T) {
	hw, f, p := newFakeHost(t, 0x1000)
	hw.Controller = SDMMC1
	p.rev = Erista

	f.Set(hw.reg(AUTO_CAL_STATUS), AUTO_CAL_STATUS_ACTIVE)

	hw.autoCalRun(Voltage3V3)

	cal := f.Read(hw.reg(AUTO_CAL_CONFIG))
	if cal&(1<<AUTO_CAL_CONFIG_ENABLE) != 0 {
		t.Fatal("AUTO_CAL_CONFIG.ENABLE still set after fallback")
	}

	padctl := f.Read(hw.reg(SDMEMCOMPPADCTRL))
	drvdn := (padctl >> 0) & 0x7f
	drvup := (padctl >> 8) & 0x7f

	if drvdn != 0xc || drvup != 0xc {
		t.Fatalf("fallback drvup=%#x drvdn=%#x, want 0xc/0xc for SDMMC1/Erista", drvup, drvdn)
	}

	if f.Get(hw.reg(SDMEMCOMPPADCTRL), SDMEMCOMPPADCTRL_E_INPUT_E_PWRD, 1) != 0 {
		t.Fatal("E_INPUT_E_PWRD left set after auto-cal fallback")
	}
}

// TestConfigureTuningControlProgramsFields exercises C6's VENDOR_TUNING_
// CNTRL0/1 programming (review: these were previously defined but never
// written).
func TestConfigureTuningControlProgramsFields(t *testing.T) {
	hw, f, _ := newFakeHost(t, 0x1000)

	hw.configureTuningControl(2)

	if got := f.Read(hw.reg(VENDOR_TUNING_CNTRL1)); got != 0 {
		t.Fatalf("VENDOR_TUNING_CNTRL1 = %#x, want 0", got)
	}

	if tries := f.Get(hw.reg(VENDOR_TUNING_CNTRL0), VENDOR_TUNING_CNTRL0_TRIES, 0x7); tries != 2 {
		t.Fatalf("TRIES = %d, want 2", tries)
	}

	if mult := f.Get(hw.reg(VENDOR_TUNING_CNTRL0), VENDOR_TUNING_CNTRL0_MULTIPLIER, 0x7f); mult != 1 {
		t.Fatalf("MULTIPLIER = %d, want 1", mult)
	}

	if f.Get(hw.reg(VENDOR_TUNING_CNTRL0), VENDOR_TUNING_CNTRL0_SET_BY_HW, 1) != 1 {
		t.Fatal("SET_BY_HW not set")
	}
}

// TestExecuteTuningRejectsNarrowBus exercises the block-size table: tuning
// is undefined on a 1-bit bus (spec §4.C6).
func TestExecuteTuningRejectsNarrowBus(t *testing.T) {
	hw, _, _ := newFakeHost(t, 0x1000)
	hw.busWidth = Width1Bit

	if err := hw.executeTuning(SpeedSDSDR104); !Is(err, Unsupported) {
		t.Fatalf("executeTuning() = %v, want Unsupported", err)
	}
}

// TestSdSwitchActiveFunction exercises the §4.C9 active-access-mode
// verification this review added: switchSD relies on this extraction to
// detect a card that silently ignores the requested function switch.
func TestSdSwitchActiveFunction(t *testing.T) {
	status := make([]byte, 64)
	status[16] = 0x13 // high nibble (group 2) must be ignored

	if got := sdSwitchActiveFunction(status); got != 3 {
		t.Fatalf("sdSwitchActiveFunction() = %d, want 3", got)
	}
}
