//go:build linux

package oom

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type psiMonitor struct {
	fd   int
	wake int
}

// OpenPSI registers trigger on a PSI pressure file, e.g.
// /proc/pressure/memory. The trigger lives as long as the returned Monitor.
func OpenPSI(path, trigger string) (Monitor, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := unix.Write(fd, append([]byte(trigger), 0)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("write trigger %q to %s: %w", trigger, path, err)
	}
	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &psiMonitor{fd: fd, wake: wake}, nil
}

func (m *psiMonitor) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, m.interrupt)
	defer stop()

	fds := []unix.PollFd{
		{Fd: int32(m.fd), Events: unix.POLLPRI},
		{Fd: int32(m.wake), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		break
	}

	if fds[1].Revents != 0 {
		var buf [8]byte
		_, _ = unix.Read(m.wake, buf[:])
		return ctx.Err()
	}
	switch rev := fds[0].Revents; {
	case rev&unix.POLLERR != 0:
		return ErrMonitorGone
	case rev&unix.POLLPRI != 0:
		return nil
	default:
		return fmt.Errorf("%w: revents %#x", ErrUnexpectedEvent, rev)
	}
}

func (m *psiMonitor) interrupt() {
	one := [8]byte{1}
	_, _ = unix.Write(m.wake, one[:])
}

func (m *psiMonitor) Close() error {
	return errors.Join(unix.Close(m.fd), unix.Close(m.wake))
}
