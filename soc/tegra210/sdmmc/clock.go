// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "time"

// Target frequencies supported by clkSourceTable (spec §4.C2 "Clock source
// selection"), in Hz.
const (
	identFreqHz = 400000
	hz25        = 25000000
	hz26        = 26000000
	hz40p8      = 40800000
	hz50        = 50000000
	hz52        = 52000000
	hz100       = 100000000
	hz200       = 200000000
	hz208       = 208000000
)

// clkSourceEntry is one row of the fixed (car_divider, achieved_source_freq)
// table the driver maps requested frequencies onto.
type clkSourceEntry struct {
	requestedHz uint32
	divider     uint32
	achievedHz  uint32
}

// clkSourceTable mirrors the fixed table sdmmc_clk_set_source() consults in
// original_source/fusee/common/sdmmc/sdmmc_core.c: a small set of target
// frequencies map to a PLL divider and the resulting achieved frequency.
// Requests for any other frequency are Unsupported (spec §9 open question
// (c): a missing table entry must surface as an error, not a silent 0).
var clkSourceTable = []clkSourceEntry{
	{identFreqHz, 66, identFreqHz},
	{hz25, 32, hz25},
	{hz26, 30, hz26},
	{hz40p8, 18, hz40p8},
	{hz50, 16, hz50},
	{hz52, 14, hz52},
	{hz100, 6, hz100},
	{hz200, 2, hz200},
	{hz208, 1, hz208},
}

func lookupClkSource(hz uint32) (entry clkSourceEntry, ok bool) {
	for _, e := range clkSourceTable {
		if e.requestedHz == hz {
			return e, true
		}
	}

	return clkSourceEntry{}, false
}

// clkAdjustSource applies the process-wide clock source cache (spec §3
// "Clock Source Cache", P2): a repeated request for the same source
// frequency is a cache hit and skips CAR reprogramming, returning the
// previously achieved frequency.
func (hw *Host) clkAdjustSource(hz uint32) (achievedHz uint32, err error) {
	clockCacheMu.Lock()
	cached := clockCache[hw.Controller]
	clockCacheMu.Unlock()

	if cached.valid && cached.requestedHz == hz {
		return cached.achievedHz, nil
	}

	if _, ok := lookupClkSource(hz); !ok {
		return 0, errorf(Unsupported, "clkAdjustSource", "no clock source table entry for %d Hz", hz)
	}

	achieved := hw.Platform.SetSource(hw.Controller, hz)

	if achieved == 0 {
		return 0, errorf(Unsupported, "clkAdjustSource", "platform could not produce %d Hz", hz)
	}

	clockCacheMu.Lock()
	clockCache[hw.Controller] = clockSource{requestedHz: hz, achievedHz: achieved, valid: true}
	clockCacheMu.Unlock()

	return achieved, nil
}

// clkEnabledAndOutOfReset reports the anomalous state checked at init step 3
// (spec §4.C3): the device clock enabled while the controller is not held
// in reset. It returns the driver's own SD-clock-enabled flag; the CAR
// clock-enable and reset bits are not read.
func (hw *Host) clkEnabledAndOutOfReset() bool {
	return hw.isSDClockEnabled
}

// clkStart runs the clock start sequence (spec §4.C2 "Clock start
// sequence"), observing invariant I1 (clock off while reprogramming).
func (hw *Host) clkStart(targetHz uint32) error {
	if hw.isSDClockEnabled {
		hw.disableSDClock()
	}

	hw.Platform.AssertReset(hw.Controller)

	achieved, err := hw.clkAdjustSource(targetHz)

	if err != nil {
		return err
	}

	hw.Platform.EnableClock(hw.Controller)
	hw.readClockControl()

	div := achieved
	if div == 0 {
		div = 1
	}

	hw.Platform.Sleep(time.Duration(100000/div+1) * time.Microsecond)

	hw.Platform.DeassertReset(hw.Controller)
	hw.readClockControl()

	hw.isClockRunning = true

	return nil
}

// clkStop is the reverse of clkStart.
func (hw *Host) clkStop() {
	hw.Platform.AssertReset(hw.Controller)
	hw.Platform.DisableClock(hw.Controller)
}

// vendorClockCntrlConfig clears trim/tap, sets the pad-pipe clock-enable
// override, programs the per-controller/per-revision trim constant and
// clears the SPI-mode clock-enable override (spec §4.C2 "Vendor clock
// trimming").
func (hw *Host) vendorClockCntrlConfig() {
	addr := hw.reg(VENDOR_CLOCK_CNTRL)

	setField(addr, VENDOR_CLOCK_CNTRL_TRIM, 0x3f, 0)
	setField(addr, VENDOR_CLOCK_CNTRL_TAP, 0xff, 0)
	setBit(addr, VENDOR_CLOCK_CNTRL_PADPIPE_CLKEN_OVERRIDE)
	setField(addr, VENDOR_CLOCK_CNTRL_TRIM, 0x3f, trimConstant(hw.Controller, hw.Platform.Revision()))
	clearBit(addr, VENDOR_CLOCK_CNTRL_SPI_MODE_CLKEN_OVERRIDE)

	setBit(hw.reg(IO_SPARE), IO_SPARE_ONE_CYCLE_DELAY)
	clearBit(hw.reg(VENDOR_IO_TRIM_CNTRL), VENDOR_IO_TRIM_CNTRL_SEL_VREG)
}

// trimConstant returns the per-controller, per-revision vendor clock trim
// value (spec §4.C2).
func trimConstant(c Controller, rev Revision) uint32 {
	switch {
	case c == SDMMC1 && rev == Mariko:
		return 0x2
	case c == SDMMC1:
		return 0x3
	default:
		return 0x3
	}
}

const (
	autoCalTimeout = 10 * time.Millisecond
	dllCalPhase1Timeout = 5 * time.Millisecond
	dllCalPhase2Timeout = 10 * time.Millisecond
)

// autoCalPadOffsets returns the (pd, pu) pull-down/pull-up override
// constants appropriate to (controller, voltage, revision) (spec §4.C2).
func autoCalPadOffsets(c Controller, v Voltage, rev Revision) (pd, pu uint32) {
	switch {
	case v == Voltage1V8:
		return 0x7, 0x7
	case rev == Mariko:
		return 0x5, 0x5
	default:
		return 0x8, 0x8
	}
}

// autoCalFallback returns the fixed fallback drive-up/drive-down values for
// (controller, revision) used when auto-cal times out (spec §4.C2, S3).
func autoCalFallback(c Controller, rev Revision) (drvup, drvdn uint32) {
	switch {
	case c == SDMMC1 && rev == Erista:
		return 0xc, 0xc
	case c == SDMMC1:
		return 0x8, 0x8
	case c == SDMMC2 && rev == Erista:
		return 0xa, 0xa
	default:
		return 0x8, 0x8
	}
}

// autoCalConfig prepares the pad-control override bits before running
// auto-calibration (spec §4.C2 "Auto-calibration", first three bullets).
func (hw *Host) autoCalConfig(voltage Voltage) error {
	wasEnabled := hw.isSDClockEnabled

	if wasEnabled {
		hw.disableSDClock()
	}

	padctl := hw.reg(SDMEMCOMPPADCTRL)

	if !getBit(padctl, SDMEMCOMPPADCTRL_E_INPUT_E_PWRD) {
		setBit(padctl, SDMEMCOMPPADCTRL_E_INPUT_E_PWRD)
		hw.readClockControl()
		hw.Platform.Sleep(1 * time.Microsecond)
	}

	pd, pu := autoCalPadOffsets(hw.Controller, voltage, hw.Platform.Revision())

	cal := hw.reg(AUTO_CAL_CONFIG)
	setField(cal, AUTO_CAL_CONFIG_PD_OFFSET, 0xff, pd)
	setField(cal, AUTO_CAL_CONFIG_PU_OFFSET, 0xff, pu)

	if wasEnabled {
		hw.enableSDClock()
	}

	return nil
}

// autoCalRun asserts START|ENABLE, polls for completion, and on timeout
// programs the fallback drive strengths (spec §4.C2, S3).
func (hw *Host) autoCalRun(voltage Voltage) {
	cal := hw.reg(AUTO_CAL_CONFIG)
	status := hw.reg(AUTO_CAL_STATUS)

	setBit(cal, AUTO_CAL_CONFIG_START)
	setBit(cal, AUTO_CAL_CONFIG_ENABLE)

	hw.Platform.Sleep(2 * time.Microsecond)

	if !waitBit(status, AUTO_CAL_STATUS_ACTIVE, 0, autoCalTimeout) {
		clearBit(cal, AUTO_CAL_CONFIG_ENABLE)

		drvup, drvdn := autoCalFallback(hw.Controller, hw.Platform.Revision())
		padctl := hw.reg(SDMEMCOMPPADCTRL)
		setField(padctl, 0, 0x7f, drvdn)
		setField(padctl, 8, 0x7f, drvup)

		hw.debugf("sdmmc: %s auto-cal timed out, using fallback drvup=%#x drvdn=%#x", hw.Controller, drvup, drvdn)
	}

	clearBit(hw.reg(SDMEMCOMPPADCTRL), SDMEMCOMPPADCTRL_E_INPUT_E_PWRD)
}

// dllCalRun performs DLL calibration, required only for HS400 (spec §4.C2
// "DLL calibration").
func (hw *Host) dllCalRun() error {
	addr := hw.reg(VENDOR_DLLCAL_CFG)

	setBit(addr, VENDOR_DLLCAL_CFG_CALIBRATE)
	hw.readClockControl()

	if !waitBit(addr, VENDOR_DLLCAL_CFG_CALIBRATE, 0, dllCalPhase1Timeout) {
		return errorf(Timeout, "dllCalRun", "DLLCAL did not start")
	}

	if !waitBit(hw.reg(VENDOR_DLLCAL_CFG_STA), VENDOR_DLLCAL_CFG_STA_ACTIVE, 0, dllCalPhase2Timeout) {
		return errorf(Timeout, "dllCalRun", "DLLCAL failed")
	}

	return nil
}

// tapDefault returns the fixed per-controller/per-revision default tap
// value (spec §4.C2 "Tap configuration").
func tapDefault(c Controller, rev Revision) uint32 {
	if rev == Mariko {
		return 0x0b
	}

	return 0x09
}

// tapConfig loads the sampling tap for the target speed, reusing a
// tuning-derived tap when one is already set (spec §4.C2 "Tap
// configuration").
func (hw *Host) tapConfig(speed Speed) {
	addr := hw.reg(VENDOR_CLOCK_CNTRL)

	tap := tapDefault(hw.Controller, hw.Platform.Revision())

	if speed == SpeedMMCHS400 && hw.isTuningTapSet {
		tap = hw.tapVal
	}

	setField(addr, VENDOR_CLOCK_CNTRL_TAP, 0xff, tap)

	if speed == SpeedMMCHS400 {
		setField(hw.reg(VENDOR_CAP_OVERRIDES), VENDOR_CAP_OVERRIDES_DQS_TRIM, 0x3f, 0x2c)
	}
}

// preConfig invokes the per-controller electrical pre-configuration: pinmux,
// PMIC enable, GPIO supply enable, delays and initial voltage, failing if
// the removable controller (SDMMC1) reports no card present (spec §4.C3
// step 2).
func (hw *Host) preConfig() error {
	hw.Platform.ConfigurePinmux(hw.Controller)

	if hw.Controller == SDMMC1 {
		if present, ok := hw.Platform.CardDetect(hw.Controller); ok && !present {
			return errorf(NoCard, "preConfig", "no card detected on %s", hw.Controller)
		}

		if err := hw.Platform.SetRegulatorVoltage(hw.Controller, 3300); err != nil {
			return errorf(Unsupported, "preConfig", "regulator voltage: %w", err)
		}

		if err := hw.Platform.EnableRegulator(hw.Controller, true); err != nil {
			return errorf(Unsupported, "preConfig", "regulator enable: %w", err)
		}

		hw.Platform.SetSupplyEnable(hw.Controller, true)
		hw.Platform.Sleep(10 * time.Millisecond)
	}

	return nil
}
