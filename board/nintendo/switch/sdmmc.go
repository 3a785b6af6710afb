// Nintendo Switch support
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package switch_ provides a soc/tegra210/sdmmc.Platform implementation and
// ready-to-use Host instances for the Nintendo Switch board (Tegra210
// Erista/Mariko), composing the car, pinmux, gpio, fuse and pmic packages
// (spec A "ambient platform services").
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package switch_

import (
	"fmt"
	"time"

	"github.com/usbarmory/tamago/soc/tegra210/car"
	"github.com/usbarmory/tamago/soc/tegra210/fuse"
	"github.com/usbarmory/tamago/soc/tegra210/gpio"
	"github.com/usbarmory/tamago/soc/tegra210/pinmux"
	"github.com/usbarmory/tamago/soc/tegra210/pmic"
	"github.com/usbarmory/tamago/soc/tegra210/sdmmc"
	"github.com/usbarmory/tamago/soc/tegra210/timer"
)

// SDHCI register block base addresses (Tegra X1 TRM, memory map).
const (
	sdhci1Base = 0x700b0000
	sdhci2Base = 0x700b0200
	sdhci3Base = 0x700b0400
	sdhci4Base = 0x700b0600
)

// cardDetectPin is the removable microSD card's card-detect GPIO (PZ1 on
// the Switch's Joy-Con rail board), the only controller with a removable
// card on this board; SDMMC2/3/4 are fixed eMMC/WiFi buses with no
// card-detect line.
var cardDetectPin, _ = gpio.NewPin(25, 1) // PZ1

// Platform implements soc/tegra210/sdmmc.Platform for the Nintendo Switch,
// delegating clock/reset to car.CAR and pad/GPIO/fuse/PMIC access to their
// respective packages (spec A "ambient platform services" supplement).
type Platform struct {
	car car.CAR
}

// EnableClock implements soc/tegra210/sdmmc.Platform.
func (p *Platform) EnableClock(c sdmmc.Controller) { p.car.EnableClock(c) }

// DisableClock implements soc/tegra210/sdmmc.Platform.
func (p *Platform) DisableClock(c sdmmc.Controller) { p.car.DisableClock(c) }

// AssertReset implements soc/tegra210/sdmmc.Platform.
func (p *Platform) AssertReset(c sdmmc.Controller) { p.car.AssertReset(c) }

// DeassertReset implements soc/tegra210/sdmmc.Platform.
func (p *Platform) DeassertReset(c sdmmc.Controller) { p.car.DeassertReset(c) }

// SetSource implements soc/tegra210/sdmmc.Platform.
func (p *Platform) SetSource(c sdmmc.Controller, hz uint32) uint32 {
	return p.car.SetSource(c, hz)
}

// Now implements soc/tegra210/sdmmc.Platform.
func (p *Platform) Now() uint32 { return timer.Now() }

// Sleep implements soc/tegra210/sdmmc.Platform.
func (p *Platform) Sleep(d time.Duration) { timer.Sleep(d) }

// ConfigurePinmux implements soc/tegra210/sdmmc.Platform.
func (p *Platform) ConfigurePinmux(c sdmmc.Controller) { pinmux.Configure(c) }

// CardDetect implements soc/tegra210/sdmmc.Platform. Only SDMMC1 (the
// removable microSD slot) has a card-detect line; the other controllers
// wire down fixed devices and are reported always present.
func (p *Platform) CardDetect(c sdmmc.Controller) (present bool, ok bool) {
	switch c {
	case sdmmc.SDMMC1:
		if cardDetectPin == nil {
			return false, false
		}

		cardDetectPin.In()

		// card-detect is active low.
		return !cardDetectPin.Value(), true
	case sdmmc.SDMMC2, sdmmc.SDMMC3, sdmmc.SDMMC4:
		return true, true
	default:
		return false, false
	}
}

// SetSupplyEnable implements soc/tegra210/sdmmc.Platform, gating the
// microSD slot's VDD rail through the PMIC; the fixed-device controllers
// have no switched supply.
func (p *Platform) SetSupplyEnable(c sdmmc.Controller, enable bool) {
	if c != sdmmc.SDMMC1 {
		return
	}

	pmic.EnableRegulator(enable)
}

// SetRegulatorVoltage implements soc/tegra210/sdmmc.Platform.
func (p *Platform) SetRegulatorVoltage(c sdmmc.Controller, mv int) error {
	if c != sdmmc.SDMMC1 {
		return nil
	}

	return pmic.SetVoltage(mv)
}

// EnableRegulator implements soc/tegra210/sdmmc.Platform.
func (p *Platform) EnableRegulator(c sdmmc.Controller, enable bool) error {
	if c != sdmmc.SDMMC1 {
		return nil
	}

	return pmic.EnableRegulator(enable)
}

// Revision implements soc/tegra210/sdmmc.Platform.
func (p *Platform) Revision() sdmmc.Revision { return fuse.Revision() }

var platform = &Platform{}

// SD is the removable microSD card slot host instance.
var SD = &sdmmc.Host{
	Controller: sdmmc.SDMMC1,
	Base:       sdhci1Base,
	Platform:   platform,
}

// MMC is the embedded eMMC host instance.
var MMC = &sdmmc.Host{
	Controller:    sdmmc.SDMMC3,
	Base:          sdhci3Base,
	Platform:      platform,
	AllowMMCWrite: true,
}

// InitSD brings up the microSD card host at its fastest mutually supported
// speed, starting from 3.3V signaling and a 1-bit bus (matching the SD
// initialization sequence's required starting conditions).
func InitSD() error {
	timer.Init(19200000)
	return SD.Init(sdmmc.Voltage3V3, sdmmc.Width1Bit, sdmmc.SpeedSDIdent)
}

// InitMMC brings up the embedded eMMC host at its fastest mutually
// supported speed.
func InitMMC() error {
	timer.Init(19200000)

	if err := MMC.Init(sdmmc.Voltage3V3, sdmmc.Width1Bit, sdmmc.SpeedMMCIdent); err != nil {
		return fmt.Errorf("eMMC init failed: %v", err)
	}

	return nil
}
