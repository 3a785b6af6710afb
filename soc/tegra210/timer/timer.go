// Tegra210 system timer support
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package timer provides the millisecond time source and busy-wait sleep
// primitive that soc/tegra210/sdmmc.Platform requires, built on the ARMv8
// generic timer (spec A6 "timekeeping").
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package timer

import (
	"time"

	"github.com/usbarmory/tamago/arm64"
)

// CNTCTL_BASE is the Tegra210 system counter base address (TRM "Timer
// Controller and Interrupt Control").
const CNTCTL_BASE = 0x700f0000

var cpu = &arm64.CPU{}

// Init starts the ARMv8 generic timer at the given base frequency in Hz,
// required once at board bring-up before Now/Sleep are used.
func Init(freqHz uint32) {
	cpu.InitGenericTimers(CNTCTL_BASE, freqHz)
}

// Now returns the elapsed system time in milliseconds, wrapping at roughly
// 49 days (spec A6: a uint32 millisecond tick, sufficient for every timeout
// this driver measures).
func Now() uint32 {
	return uint32(cpu.GetTime() / int64(time.Millisecond))
}

// Sleep busy-waits for the given duration. The controller handle never
// sleeps while holding hw.Lock across an interrupt-driven wait, so a
// spinning implementation (rather than a scheduler-aware one) matches how
// this driver is actually used (spec §9 "Volatile MMIO and ordering").
func Sleep(d time.Duration) {
	deadline := cpu.GetTime() + d.Nanoseconds()

	for cpu.GetTime() < deadline {
	}
}
