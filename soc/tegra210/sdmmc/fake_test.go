// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"testing"
	"time"
)

// fakeReg is the fake MMIO region of spec §8, backed by a map of 32-bit
// words: a plain register file addressed the same way the real controller is
// (hw.Base + offset), with no unsafe.Pointer dereference anywhere, so tests
// run against it outside of `GOOS=tamago`.
//
// onWait, when set, is invoked once per WaitFor poll before the condition is
// re-checked, letting a test simulate a register converging on a value
// after N polls without any real sleeping. A nil onWait means the condition
// is checked exactly once, modeling a register that is either already
// correct or permanently stuck — enough to drive the timeout scenarios
// (P6, S3, S6) this package's invariants care about.
type fakeReg struct {
	mem    map[uint32]uint32
	onWait func(addr uint32, pos int, mask int)
}

func newFakeReg() *fakeReg {
	return &fakeReg{mem: make(map[uint32]uint32)}
}

func (f *fakeReg) Get(addr uint32, pos int, mask int) uint32 {
	return uint32((int(f.mem[addr]) >> pos) & mask)
}

func (f *fakeReg) Set(addr uint32, pos int) {
	f.mem[addr] |= 1 << pos
}

func (f *fakeReg) Clear(addr uint32, pos int) {
	f.mem[addr] &^= 1 << pos
}

func (f *fakeReg) SetN(addr uint32, pos int, mask int, val uint32) {
	f.mem[addr] = (f.mem[addr] &^ (uint32(mask) << pos)) | (val << pos)
}

func (f *fakeReg) Read(addr uint32) uint32 {
	return f.mem[addr]
}

func (f *fakeReg) Write(addr uint32, val uint32) {
	f.mem[addr] = val
}

func (f *fakeReg) WaitFor(timeout time.Duration, addr uint32, pos int, mask int, val uint32) bool {
	const maxPolls = 1000

	for i := 0; i < maxPolls; i++ {
		if f.Get(addr, pos, mask) == val {
			return true
		}

		if f.onWait == nil {
			return false
		}

		f.onWait(addr, pos, mask)
	}

	return f.Get(addr, pos, mask) == val
}

// withFakeReg installs f as the package's register backend for the
// duration of the calling test, restoring the live backend on cleanup.
func withFakeReg(t *testing.T, f *fakeReg) {
	prev := mmio
	mmio = f
	t.Cleanup(func() { mmio = prev })
}

// fakePlatform is a minimal, fully in-memory Platform (spec §4.C1) letting
// tests drive Host methods that consult clock/regulator/pinmux/card-detect
// capabilities without any board-specific hardware.
type fakePlatform struct {
	now      uint32
	rev      Revision
	sourceHz uint32

	setSourceCalls int

	regulatorEnabled bool
	regulatorMv      int
	regulatorErr     error

	present   bool
	presentOK bool
}

func (p *fakePlatform) EnableClock(c Controller)  {}
func (p *fakePlatform) DisableClock(c Controller) {}
func (p *fakePlatform) AssertReset(c Controller)  {}
func (p *fakePlatform) DeassertReset(c Controller) {}

func (p *fakePlatform) SetSource(c Controller, hz uint32) uint32 {
	p.setSourceCalls++

	if p.sourceHz != 0 {
		return p.sourceHz
	}

	return hz
}

func (p *fakePlatform) Now() uint32 { return p.now }

func (p *fakePlatform) Sleep(d time.Duration) {
	p.now += uint32(d.Milliseconds())
}

func (p *fakePlatform) ConfigurePinmux(c Controller) {}

func (p *fakePlatform) CardDetect(c Controller) (present bool, ok bool) {
	return p.present, p.presentOK
}

func (p *fakePlatform) SetSupplyEnable(c Controller, enable bool) {}

func (p *fakePlatform) SetRegulatorVoltage(c Controller, mv int) error {
	p.regulatorMv = mv
	return p.regulatorErr
}

func (p *fakePlatform) EnableRegulator(c Controller, enable bool) error {
	p.regulatorEnabled = enable
	return p.regulatorErr
}

func (p *fakePlatform) Revision() Revision { return p.rev }

// newFakeHost returns a Host wired to a fresh fakeReg/fakePlatform pair,
// addressed at base, ready for a test to poke registers and call Host
// methods directly.
func newFakeHost(t *testing.T, base uint32) (*Host, *fakeReg, *fakePlatform) {
	f := newFakeReg()
	withFakeReg(t, f)

	p := &fakePlatform{}

	hw := &Host{
		Controller: SDMMC1,
		Base:       base,
		Platform:   p,
	}

	return hw, f, p
}
