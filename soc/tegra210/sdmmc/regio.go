// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"time"

	"github.com/usbarmory/tamago/internal/reg"
)

// regBackend is the set of primitives regio.go funnels all register access
// through. The package-level var below defaults to internal/reg's real
// volatile MMIO; tests substitute a fake, map-backed block (spec §8
// "Tests are written against... a fake register block") so that command
// issuance, timeouts and calibration logic can be exercised without real
// hardware.
type regBackend interface {
	Get(addr uint32, pos int, mask int) uint32
	Set(addr uint32, pos int)
	Clear(addr uint32, pos int)
	SetN(addr uint32, pos int, mask int, val uint32)
	Read(addr uint32) uint32
	Write(addr uint32, val uint32)
	WaitFor(timeout time.Duration, addr uint32, pos int, mask int, val uint32) bool
}

type liveReg struct{}

func (liveReg) Get(addr uint32, pos int, mask int) uint32 { return reg.Get(addr, pos, mask) }
func (liveReg) Set(addr uint32, pos int)                  { reg.Set(addr, pos) }
func (liveReg) Clear(addr uint32, pos int)                { reg.Clear(addr, pos) }
func (liveReg) SetN(addr uint32, pos int, mask int, val uint32) {
	reg.SetN(addr, pos, mask, val)
}
func (liveReg) Read(addr uint32) uint32  { return reg.Read(addr) }
func (liveReg) Write(addr uint32, val uint32) { reg.Write(addr, val) }
func (liveReg) WaitFor(timeout time.Duration, addr uint32, pos int, mask int, val uint32) bool {
	return reg.WaitFor(timeout, addr, pos, mask, val)
}

// mmio is the register backend in effect for this package. Production code
// never reassigns it; *_test.go files swap in a fake for the duration of a
// test.
var mmio regBackend = liveReg{}

// readReg performs a raw volatile 32-bit register read. All register access
// in this package funnels through here and the helpers below, keeping
// internal/reg (A1) the single point of contact with MMIO (spec §9
// "Volatile MMIO and ordering").
func readReg(addr uint32) uint32 {
	return mmio.Read(addr)
}

func writeReg(addr uint32, val uint32) {
	mmio.Write(addr, val)
}

func getBit(addr uint32, pos int) bool {
	return mmio.Get(addr, pos, 1) == 1
}

func setBit(addr uint32, pos int) {
	mmio.Set(addr, pos)
}

func clearBit(addr uint32, pos int) {
	mmio.Clear(addr, pos)
}

func setToBit(addr uint32, pos int, val bool) {
	if val {
		mmio.Set(addr, pos)
	} else {
		mmio.Clear(addr, pos)
	}
}

func getField(addr uint32, pos int, mask int) uint32 {
	return mmio.Get(addr, pos, mask)
}

func setField(addr uint32, pos int, mask int, val uint32) {
	mmio.SetN(addr, pos, mask, val)
}

func waitBit(addr uint32, pos int, val uint32, timeout time.Duration) bool {
	return mmio.WaitFor(timeout, addr, pos, 1, val)
}

func waitField(addr uint32, pos int, mask int, val uint32, timeout time.Duration) bool {
	return mmio.WaitFor(timeout, addr, pos, mask, val)
}

// readClockControl performs the dummy read of the clock-control register
// that flushes write posting before proceeding (spec I4, the driver's
// "fence" idiom, reified here as a named helper per spec §9 so it cannot be
// optimized away silently).
func (hw *Host) readClockControl() uint32 {
	return readReg(hw.reg(SDHCI_CLOCK_CONTROL))
}
