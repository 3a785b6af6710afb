// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"errors"
	"testing"
)

func TestErrorf(t *testing.T) {
	err := errorf(Timeout, "waitInhibit", "CMD inhibit did not clear")

	if !Is(err, Timeout) {
		t.Errorf("expected Is(err, Timeout) to hold")
	}

	if Is(err, CardError) {
		t.Errorf("expected Is(err, CardError) to not hold")
	}

	want := "sdmmc: waitInhibit: timeout: CMD inhibit did not clear"

	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorfWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := errorf(CommandError, "send", "%w", cause)

	var sdErr *Error

	if !errors.As(err, &sdErr) {
		t.Fatal("expected errors.As to find *Error")
	}

	if !errors.Is(sdErr.Unwrap(), cause) {
		t.Errorf("Unwrap() did not return the wrapped cause")
	}
}
