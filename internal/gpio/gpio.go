// Package gpio acquires the configured GPIO lines and hands them to the
// control loop.
package gpio

import (
	"errors"
	"fmt"

	"github.com/homegw/homegw-rt/internal/config"
)

// ErrInputDrive rejects a drive mode on an input line.
var ErrInputDrive = errors.New("open drain is only valid for outputs")

// Consumer is the label the kernel shows for lines held by this process.
const Consumer = "gpio-server"

// LineID identifies one physical pin.
type LineID struct {
	Chip   uint8
	Offset uint8
}

func (id LineID) String() string {
	return fmt.Sprintf("gpiochip%d:%d", id.Chip, id.Offset)
}

// Line is an acquired line. It stays open for the process lifetime.
type Line interface {
	SetValue(value int) error
	Close() error
}

type ChipInfo struct {
	Name  string
	Label string
	Lines int
}

// Chip is an opened GPIO chip device.
type Chip interface {
	Info() ChipInfo
	RequestLine(offset int, req LineRequest) (Line, error)
	Close() error
}

// Hardware opens chips by index (gpiochip0, gpiochip1, ...).
type Hardware interface {
	OpenChip(index int) (Chip, error)
}

// LineRequest carries the attributes of a single-line acquisition.
type LineRequest struct {
	Direction    config.Direction
	Drive        config.Drive
	InitialValue int
	Consumer     string
}

func newLineRequest(cfg config.PinConfig) LineRequest {
	return LineRequest{
		Direction:    cfg.Direction,
		Drive:        cfg.Drive,
		InitialValue: cfg.InitialValue(),
		Consumer:     Consumer,
	}
}
