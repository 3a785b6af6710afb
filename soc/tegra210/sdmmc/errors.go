// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import (
	"errors"
	"fmt"
)

// Kind classifies the failure category of an Error, mirroring the single set
// of outcomes the controller, the command engine and the card protocols can
// produce.
type Kind int

const (
	// NoCard indicates that the pre-init card-detect check on a
	// removable controller found no card present.
	NoCard Kind = iota
	// Unsupported indicates that the requested voltage, speed, bus
	// width or card variant cannot be serviced, or that the controller
	// lacks a required capability.
	Unsupported
	// Timeout indicates that a polled deadline elapsed.
	Timeout
	// CommandError indicates that the int-status error mask was latched
	// during the command or data phase.
	CommandError
	// ResponseInvalid indicates that the card response failed a check
	// delegated to hardware, or an expected status bit was not set.
	ResponseInvalid
	// CardError indicates that READ_STATUS reported an error bit.
	CardError
	// Busy indicates that DAT0 failed to release within the busy
	// deadline after an R1B response.
	Busy
	// PermissionDenied indicates an eMMC write attempted without the
	// write permission gate, or any write on a write-disabled controller.
	PermissionDenied
	// TuningFailed indicates that the execute-tuning loop exited with
	// SAMPLING_CLOCK_ENABLED clear.
	TuningFailed
)

func (k Kind) String() string {
	switch k {
	case NoCard:
		return "no card"
	case Unsupported:
		return "unsupported"
	case Timeout:
		return "timeout"
	case CommandError:
		return "command error"
	case ResponseInvalid:
		return "response invalid"
	case CardError:
		return "card error"
	case Busy:
		return "busy"
	case PermissionDenied:
		return "permission denied"
	case TuningFailed:
		return "tuning failed"
	default:
		return "unknown"
	}
}

// Error is the uniform error value returned by this package, replacing the
// mixed int/bool return conventions of the two drivers it is modeled on.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sdmmc: %s: %s: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("sdmmc: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether an error (or any error in its chain) carries Kind k.
func (e *Error) Is(k Kind) bool {
	if e == nil {
		return false
	}

	if e.Kind == k {
		return true
	}

	var inner *Error

	return errors.As(e.Err, &inner) && inner.Is(k)
}

func errorf(kind Kind, op string, format string, args ...interface{}) error {
	var err error

	if len(args) > 0 {
		err = fmt.Errorf(format, args...)
	} else if format != "" {
		err = fmt.Errorf("%s", format)
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

// Is allows errors.Is(err, sdmmc.Timeout) style matching against a Kind.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Is(k)
}
