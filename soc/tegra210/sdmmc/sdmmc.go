// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// IP: SDHCI v4-compliant host controller with a Tegra vendor block, as
// described by original_source/fusee/common/sdmmc/sdmmc_core.{c,h} and
// original_source/fusee/fusee-secondary/src/sdmmc.c.
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sdmmc implements a driver for the Tegra X1 (Tegra210) SDMMC/SDHCI
// host controller, used to interface with SD cards and embedded MMC devices.
//
// The driver covers controller reset and capability negotiation, clock and
// pad calibration, command issuance with SDMA-based data transfer, execute
// tuning for UHS-I/HS200 speed modes, and the MMC and SD card enumeration
// protocols, selecting the fastest speed mode both card and controller
// support.
//
// HS400 is deliberately not engaged by the speed optimizer: the original
// driver this package is modeled on carries the mode as a work in progress
// and this package preserves that choice rather than silently completing it
// (spec §9, open question (a)).
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package sdmmc

import (
	"sync"
	"time"
)

// Controller identifies one of the four Tegra210 SDMMC controller instances.
// The per-controller electrical pre-configuration hook is a closed set (spec
// §9): there is no trait object here, only a switch over this enumeration in
// board/nintendo/switch.
type Controller int

const (
	SDMMC1 Controller = iota + 1
	SDMMC2
	SDMMC3
	SDMMC4
)

func (c Controller) String() string {
	switch c {
	case SDMMC1:
		return "SDMMC1"
	case SDMMC2:
		return "SDMMC2"
	case SDMMC3:
		return "SDMMC3"
	case SDMMC4:
		return "SDMMC4"
	default:
		return "SDMMC?"
	}
}

// Revision distinguishes the two Tegra210 silicon revisions this driver
// supports, affecting trim constants, default taps and auto-cal fallback
// drive strengths.
type Revision int

const (
	Erista Revision = iota
	Mariko
)

// Voltage is the bus signaling voltage.
type Voltage int

const (
	VoltageNone Voltage = iota
	Voltage3V3
	Voltage1V8
)

// Width is the bus data width.
type Width int

const (
	Width1Bit Width = 1
	Width4Bit Width = 4
	Width8Bit Width = 8
)

// Speed identifies an operating speed mode. Values are grouped by the
// host-control-2 programming they require (spec §4.C3 "Select speed").
type Speed int

const (
	SpeedMMCIdent Speed = iota
	SpeedMMCLegacy
	SpeedSDIdent
	SpeedSDDefaultSpeed
	SpeedSDHighSpeed
	SpeedMMCHighSpeed
	SpeedSDSDR12
	SpeedSDSDR25
	SpeedSDSDR50
	SpeedSDSDR104
	SpeedMMCHS200
	SpeedMMCHS400
	// SpeedGCASIC and SpeedGCASICFPGA are game-card transport speeds
	// that inherit SDR104's tuning and UHS programming (spec §4.C9).
	SpeedGCASIC
	SpeedGCASICFPGA
	// SpeedEmuSDR104 is the emulator/FPGA variant of SDR104, also
	// inheriting SDR104 tuning.
	SpeedEmuSDR104
)

func (s Speed) String() string {
	switch s {
	case SpeedMMCIdent:
		return "MMC-ident"
	case SpeedMMCLegacy:
		return "MMC-legacy"
	case SpeedSDIdent:
		return "SD-ident"
	case SpeedSDDefaultSpeed:
		return "SD-default-speed"
	case SpeedSDHighSpeed:
		return "SD-high-speed"
	case SpeedMMCHighSpeed:
		return "MMC-high-speed"
	case SpeedSDSDR12:
		return "SD-SDR12"
	case SpeedSDSDR25:
		return "SD-SDR25"
	case SpeedSDSDR50:
		return "SD-SDR50"
	case SpeedSDSDR104:
		return "SD-SDR104"
	case SpeedMMCHS200:
		return "MMC-HS200"
	case SpeedMMCHS400:
		return "MMC-HS400"
	case SpeedGCASIC:
		return "GC-ASIC"
	case SpeedGCASICFPGA:
		return "GC-ASIC-FPGA"
	case SpeedEmuSDR104:
		return "emu-SDR104"
	default:
		return "unknown"
	}
}

// needsTuning reports whether s requires the tuning engine (C6) before it
// can be trusted (spec §4.C6 "Active only for SDR50, SDR104, HS200, HS400,
// and the two game-card modes that inherit from SDR104").
func (s Speed) needsTuning() bool {
	switch s {
	case SpeedSDSDR50, SpeedSDSDR104, SpeedMMCHS200, SpeedMMCHS400,
		SpeedGCASIC, SpeedGCASICFPGA, SpeedEmuSDR104:
		return true
	default:
		return false
	}
}

// Partition identifies an eMMC hardware partition (spec §9 supplement,
// grounded on sdmmc_select_partition, sdmmc.c:3522).
type Partition int

const (
	PartitionUserData Partition = iota
	PartitionBoot0
	PartitionBoot1
	PartitionRPMB
)

// Platform is the abstract capability interface a Host relies on (spec
// §4.C1). No implementation lives in this package; board/nintendo/switch
// supplies it.
type Platform interface {
	EnableClock(c Controller)
	DisableClock(c Controller)
	AssertReset(c Controller)
	DeassertReset(c Controller)
	// SetSource programs the CAR clock source and divider for c, and
	// returns the achieved source frequency in Hz (0 if the requested
	// frequency cannot be produced).
	SetSource(c Controller, hz uint32) (achievedHz uint32)

	Now() uint32
	Sleep(d time.Duration)

	ConfigurePinmux(c Controller)
	CardDetect(c Controller) (present bool, ok bool)
	SetSupplyEnable(c Controller, enable bool)

	SetRegulatorVoltage(c Controller, mv int) error
	EnableRegulator(c Controller, enable bool) error

	Revision() Revision
}

// clockSource is one entry of the process-wide clock source cache (spec
// §3 "Clock Source Cache").
type clockSource struct {
	requestedHz uint32
	achievedHz  uint32
	valid       bool
}

var (
	clockCacheMu sync.Mutex
	clockCache   [5]clockSource // indexed by Controller (1..4)
)

// CardInfo holds the card properties discovered during enumeration (spec §3
// "Card Descriptor").
type CardInfo struct {
	MMC bool
	SD  bool

	// HC reports high/extended capacity (block addressed) cards.
	HC bool
	// UsesBlockAddressing mirrors HC; kept distinct to match spec
	// terminology in read/write argument construction (P8).
	UsesBlockAddressing bool

	SpecVersion int

	RCA uint32
	CID [16]byte
	CSD [16]byte

	BlockSize int
	Blocks    int

	// MMC-only fields
	PartitionSupport       byte
	PartitionConfig        byte
	PartitionSwitchTimeUs  uint32
	PartitionSettingDone   bool
	CardType               byte

	// SD-only fields
	SCR [8]byte
}

// Host represents one Tegra210 SDMMC controller instance bound to a
// Platform and a register base address (spec §3 "Controller Handle").
type Host struct {
	sync.Mutex

	// Controller is this instance's Tegra210 controller index.
	Controller Controller
	// Base is the MMIO base address of the SDHCI register block.
	Base uint32
	// Platform supplies clock, pad, GPIO and PMIC capabilities.
	Platform Platform
	// AllowVoltageSwitching enables UHS-I 1.8V signaling negotiation on
	// SD cards that advertise support for it.
	AllowVoltageSwitching bool
	// AllowMMCWrite gates eMMC writes distinct from the generic
	// write-enable (spec I6); zero value denies writes.
	AllowMMCWrite bool
	// Debug, when set, receives formatted diagnostic lines. No logging
	// library is imported by this package (SPEC_FULL §7): this mirrors
	// the teacher's own convention of leaving logging to the
	// application layer.
	Debug func(format string, args ...interface{})

	// runtime flags (spec §3)
	isClockRunning      bool
	isSDClockEnabled    bool
	isTuningTapSet      bool
	usesADMA            bool
	usesBlockAddressing bool

	busVoltage     Voltage
	busWidth       Width
	operatingSpeed Speed

	internalDivider uint32
	tapVal          uint32

	dmaBaseAddr  uint32
	nextDMAAddr  uint32

	response     [4]uint32
	autoCMD12Rsp uint32

	card CardInfo

	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (hw *Host) debugf(format string, args ...interface{}) {
	if hw.Debug != nil {
		hw.Debug(format, args...)
	}
}

func (hw *Host) reg(offset uint32) uint32 {
	return hw.Base + offset
}

// Info returns the card properties discovered during Init.
func (hw *Host) Info() CardInfo {
	return hw.card
}

// Init brings up the controller and enumerates whichever card (SD or MMC)
// is present, selecting the fastest mutually-supported speed mode (spec
// §4.C3 "Init sequence", §4.C9 "Speed Optimizer").
func (hw *Host) Init(voltage Voltage, width Width, speed Speed) (err error) {
	hw.Lock()
	defer hw.Unlock()

	if hw.Controller == 0 || hw.Base == 0 || hw.Platform == nil {
		return errorf(Unsupported, "Init", "invalid controller instance")
	}

	hw.card = CardInfo{}
	hw.busWidth = width
	hw.busVoltage = voltage

	hw.readTimeout = 100 * time.Millisecond
	hw.writeTimeout = 500 * time.Millisecond

	// step 2: per-controller electrical pre-config, including the
	// removable-card detect gate.
	if err = hw.preConfig(); err != nil {
		return err
	}

	// step 3: ensure the clock is not simultaneously enabled-and-out-of-
	// reset (spec §4.C3 step 3).
	if hw.clkEnabledAndOutOfReset() {
		hw.disableSDClock()
	}

	// step 4: start the device clock at the identification frequency.
	if err = hw.clkStart(identFreqHz); err != nil {
		return err
	}

	// step 5: one-cycle pad delay, SEL_VREG, vendor clock config, slew
	// codes, vref_sel.
	hw.vendorClockCntrlConfig()

	// step 6: auto-calibration at the requested voltage.
	if err = hw.autoCalConfig(voltage); err != nil {
		return err
	}
	hw.autoCalRun(voltage)

	// step 7: enable the internal clock and negotiate capabilities.
	if err = hw.internalClockEnable(); err != nil {
		return err
	}

	// step 8: bus width, voltage, speed.
	if err = hw.selectBusWidth(width); err != nil {
		return err
	}
	hw.selectVoltage(voltage)

	if err = hw.selectSpeed(SpeedSDIdent); err != nil {
		return err
	}

	// step 9: re-sync and enable SD clock.
	hw.adjustSDClock()
	hw.enableSDClock()
	hw.readClockControl()

	if err = hw.send(GO_IDLE_STATE, 0, RESP_NONE, nil, 0); err != nil {
		return err
	}

	if hw.probeSD() {
		err = hw.initSD(speed)
	} else if hw.probeMMC() {
		err = hw.initMMC(speed)
	} else {
		return errorf(NoCard, "Init", "no card detected on %s", hw.Controller)
	}

	return err
}

// Finish tears down the controller session (spec §4.C3 "Finish").
func (hw *Host) Finish() {
	hw.Lock()
	defer hw.Unlock()

	if !hw.isClockRunning {
		return
	}

	hw.disableSDClock()
	hw.selectVoltage(VoltageNone)

	if hw.Controller == SDMMC1 {
		hw.Platform.SetSupplyEnable(hw.Controller, false)
		hw.Platform.Sleep(100 * time.Millisecond)
		hw.Platform.EnableRegulator(hw.Controller, false)
	}

	hw.readClockControl()
	hw.clkStop()
	hw.isClockRunning = false
}

// DumpRegisters returns a snapshot of the standard and vendor SDHCI
// registers for diagnostics (spec §4.C3, supplemented per §9, grounded on
// sdmmc_dump_regs, sdmmc.c:3645).
func (hw *Host) DumpRegisters() map[string]uint32 {
	named := map[string]uint32{
		"present_state":   SDHCI_PRESENT_STATE,
		"host_control":    SDHCI_HOST_CONTROL,
		"clock_control":   SDHCI_CLOCK_CONTROL,
		"int_status":      SDHCI_INT_STATUS,
		"host_control2":   SDHCI_HOST_CONTROL2,
		"capabilities":    SDHCI_CAPABILITIES,
		"vendor_clock_cntrl": VENDOR_CLOCK_CNTRL,
		"auto_cal_config":    AUTO_CAL_CONFIG,
		"auto_cal_status":    AUTO_CAL_STATUS,
	}

	out := make(map[string]uint32, len(named))

	for name, off := range named {
		out[name] = readReg(hw.reg(off))
	}

	return out
}

// CardPresent reports card insertion without re-running enumeration (spec
// §9 supplement, grounded on sdmmc_card_present, sdmmc.c:3635).
func (hw *Host) CardPresent() bool {
	if present, ok := hw.Platform.CardDetect(hw.Controller); ok {
		return present
	}

	// non-removable controllers (SDMMC2..4, typically eMMC) are always
	// considered present once a card has been enumerated.
	return hw.card.MMC || hw.card.SD
}
