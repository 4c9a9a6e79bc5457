// Package instance makes sure a single daemon runs per run directory.
package instance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/gofrs/flock"

	"github.com/homegw/homegw-rt/internal/fatomic"
)

const (
	lockFileName = "homegw-rt.lock"
	pidFileName  = "homegw-rt.pid"
)

var ErrAlreadyRunning = errors.New("another homegw-rt instance is running")

// Instance holds the exclusive lock of a run directory.
type Instance struct {
	lock    *flock.Flock
	pidFile *paths.Path
}

// Acquire takes the lock of runDir without waiting and records the pid of
// the calling process next to it.
func Acquire(runDir *paths.Path) (*Instance, error) {
	if err := runDir.MkdirAll(); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	lock := flock.New(runDir.Join(lockFileName).String())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed trying to acquire lock %s: %w", lock.Path(), err)
	}
	if !locked {
		if pid, err := ReadPID(runDir); err == nil {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		return nil, ErrAlreadyRunning
	}

	pidFile := runDir.Join(pidFileName)
	if err := fatomic.WriteFile(pidFile.String(), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &Instance{lock: lock, pidFile: pidFile}, nil
}

// Release removes the pid file and drops the lock.
func (i *Instance) Release() error {
	if err := i.pidFile.Remove(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove pid file", "path", i.pidFile, "error", err)
	}
	if err := i.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", i.lock.Path(), err)
	}
	return nil
}

// ReadPID returns the pid recorded in runDir.
func ReadPID(runDir *paths.Path) (int, error) {
	data, err := runDir.Join(pidFileName).ReadFile()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
