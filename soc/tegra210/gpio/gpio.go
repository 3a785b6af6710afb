// Tegra210 GPIO support
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package gpio implements helpers for GPIO configuration on the Tegra210
// SoC, used by board/nintendo/switch to read card-detect and drive supply
// enable pins for soc/tegra210/sdmmc (spec A5 "card detect / supply
// enable", grounded on soc/imx6/gpio/gpio.go).
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package gpio

import (
	"fmt"

	"github.com/usbarmory/tamago/internal/reg"
)

// GPIO register bank base and per-port register spacing (Tegra X1 TRM,
// "General Purpose Input/Output"). Ports (A..EE) are grouped four to a
// bank, banks 0x100 apart; within its bank each port occupies one 4-byte
// slot per register.
const (
	Base = 0x6000d000

	GPIO_CNF  = 0x000
	GPIO_OE   = 0x010
	GPIO_OUT  = 0x020
	GPIO_IN   = 0x030
	GPIO_CNF_BIT = 0
)

// Pin identifies one GPIO signal by (port, bit), matching the Tegra
// convention of naming pins e.g. "PZ1" (port Z, bit 1).
type Pin struct {
	port int
	bit  int
}

// NewPin validates and returns a Pin for the given port index (0-based,
// following the TRM's GPIO_CNF/OE/OUT/IN port ordering) and bit (0-7).
func NewPin(port, bit int) (*Pin, error) {
	if bit < 0 || bit > 7 {
		return nil, fmt.Errorf("invalid GPIO bit %d", bit)
	}

	return &Pin{port: port, bit: bit}, nil
}

func (p *Pin) regAddr(reg_ uint32) uint32 {
	return Base + uint32(p.port/4)*0x100 + reg_ + uint32(p.port%4)*4
}

// In configures the pin as GPIO input, taking control away from its
// alternate (SFIO) function.
func (p *Pin) In() {
	reg.Set(p.regAddr(GPIO_CNF), GPIO_CNF_BIT+p.bit)
	reg.Clear(p.regAddr(GPIO_OE), p.bit)
}

// Out configures the pin as GPIO output.
func (p *Pin) Out() {
	reg.Set(p.regAddr(GPIO_CNF), GPIO_CNF_BIT+p.bit)
	reg.Set(p.regAddr(GPIO_OE), p.bit)
}

// High drives the pin high.
func (p *Pin) High() {
	reg.Set(p.regAddr(GPIO_OUT), p.bit)
}

// Low drives the pin low.
func (p *Pin) Low() {
	reg.Clear(p.regAddr(GPIO_OUT), p.bit)
}

// Value returns the pin's current input level.
func (p *Pin) Value() bool {
	return reg.Get(p.regAddr(GPIO_IN), p.bit, 1) == 1
}
