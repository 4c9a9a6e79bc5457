//go:build linux

package sched

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// EnableDeadline moves the calling thread to SCHED_DEADLINE.
func EnableDeadline(p DeadlineParams) error {
	attr, err := deadlineAttr(p)
	if err != nil {
		return err
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("sched_setattr(SCHED_DEADLINE %s): %w", p, err)
	}
	return nil
}

// EnableFIFO moves the calling thread to SCHED_FIFO at the given priority.
func EnableFIFO(priority int) error {
	attr, err := fifoAttr(priority)
	if err != nil {
		return err
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("sched_setattr(SCHED_FIFO %d): %w", priority, err)
	}
	return nil
}

// Yield gives up the processor. Under SCHED_DEADLINE this also forfeits the
// remaining runtime of the current period, so the thread sleeps until the
// next one starts.
func Yield() {
	_, _, _ = unix.RawSyscall(unix.SYS_SCHED_YIELD, 0, 0, 0)
}

// LockMemory locks all current and future pages of the process into RAM.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}
	return nil
}

func deadlineAttr(p DeadlineParams) (unix.SchedAttr, error) {
	if err := p.validate(); err != nil {
		return unix.SchedAttr{}, err
	}
	return unix.SchedAttr{
		Policy:   unix.SCHED_DEADLINE,
		Runtime:  uint64(p.Runtime.Nanoseconds()),
		Deadline: uint64(p.Period.Nanoseconds()),
		Period:   uint64(p.Period.Nanoseconds()),
	}, nil
}

func fifoAttr(priority int) (unix.SchedAttr, error) {
	if err := validateFIFO(priority); err != nil {
		return unix.SchedAttr{}, err
	}
	return unix.SchedAttr{
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}, nil
}
