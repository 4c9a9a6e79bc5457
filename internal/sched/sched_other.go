//go:build !linux

package sched

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("real-time scheduling is not supported on this platform")

func EnableDeadline(p DeadlineParams) error {
	if err := p.validate(); err != nil {
		return err
	}
	return errUnsupported
}

func EnableFIFO(priority int) error {
	if err := validateFIFO(priority); err != nil {
		return err
	}
	return errUnsupported
}

func Yield() {
	runtime.Gosched()
}

func LockMemory() error {
	return errUnsupported
}
