//go:build !linux
// +build !linux

package gpio

import "fmt"

type Cdev struct {
	DevDir string
}

func NewCdev(devDir string) *Cdev {
	return &Cdev{DevDir: devDir}
}

func (h *Cdev) OpenChip(index int) (Chip, error) {
	return nil, fmt.Errorf("gpio character devices are not supported on this platform")
}
