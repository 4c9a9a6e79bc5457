package fatomic

import (
	"os"
)

// WriteFile is not atomic on Windows. It only exists so the daemon's
// packages build there for development; the daemon itself runs on Linux.
func WriteFile(filename string, data []byte, perm os.FileMode, opts ...any) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
