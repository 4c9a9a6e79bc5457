// Package kmsg writes best-effort diagnostic lines to the kernel log.
//
// The real-time threads use it instead of slog for transient failures: the
// device is opened non-blocking, every write is a single syscall and write
// errors are dropped, so a full or missing log never stalls or aborts the
// caller.
package kmsg

import (
	"fmt"
	"io"
	"os"
	"syscall"
)

const DefaultPath = "/dev/kmsg"

// Writer is safe for concurrent use as long as the underlying writer keeps
// each Write call whole, which /dev/kmsg does: one call is one record.
type Writer struct {
	w      io.Writer
	prefix string
}

// Open opens the kernel log device for writing.
func Open(path, prefix string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return New(f, prefix), nil
}

// New wraps w. Each Printf call results in exactly one Write on w.
func New(w io.Writer, prefix string) *Writer {
	return &Writer{w: w, prefix: prefix}
}

// Printf formats a single line and writes it. A nil Writer discards.
func (k *Writer) Printf(format string, args ...any) {
	if k == nil {
		return
	}
	line := k.prefix + ": " + fmt.Sprintf(format, args...) + "\n"
	// No lock: the control loop must never wait for the guardian thread.
	_, _ = io.WriteString(k.w, line)
}

func (k *Writer) Close() error {
	if k == nil {
		return nil
	}
	if c, ok := k.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
