// Package sched switches the calling OS thread to a real-time scheduling
// class.
//
// The attributes apply to the current thread only, so callers must pin their
// goroutine with runtime.LockOSThread before enabling a policy and must never
// unlock it: a locked goroutine that exits takes its thread down with it,
// which keeps a real-time thread from being handed back to the Go scheduler.
package sched

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidParams = errors.New("invalid scheduling parameters")

// DeadlineParams is a SCHED_DEADLINE reservation. The relative deadline is
// always equal to the period.
type DeadlineParams struct {
	Runtime time.Duration
	Period  time.Duration
}

func (p DeadlineParams) validate() error {
	if p.Runtime <= 0 || p.Period <= 0 {
		return fmt.Errorf("%w: runtime and period must be positive", ErrInvalidParams)
	}
	if p.Runtime > p.Period {
		return fmt.Errorf("%w: runtime %s exceeds period %s", ErrInvalidParams, p.Runtime, p.Period)
	}
	return nil
}

func (p DeadlineParams) String() string {
	return fmt.Sprintf("%s/%s", p.Runtime, p.Period)
}

// FIFO priorities accepted by the kernel.
const (
	MinFIFOPriority = 1
	MaxFIFOPriority = 99
)

func validateFIFO(priority int) error {
	if priority < MinFIFOPriority || priority > MaxFIFOPriority {
		return fmt.Errorf("%w: fifo priority %d out of range [%d, %d]", ErrInvalidParams, priority, MinFIFOPriority, MaxFIFOPriority)
	}
	return nil
}
