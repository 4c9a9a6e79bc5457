//go:build !windows

// Package fatomic replaces files atomically.
package fatomic

import (
	"os"

	"github.com/google/renameio/v2"
)

// WriteFile writes data to a temporary file next to filename and renames it
// into place, so readers see either the old or the new content.
func WriteFile(filename string, data []byte, perm os.FileMode, opts ...renameio.Option) error {
	return renameio.WriteFile(filename, data, perm, opts...)
}
