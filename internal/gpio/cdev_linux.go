//go:build linux
// +build linux

package gpio

import (
	"fmt"
	"path/filepath"

	"github.com/warthog618/go-gpiocdev"

	"github.com/homegw/homegw-rt/internal/config"
)

// Cdev opens chips through the GPIO character device uAPI.
type Cdev struct {
	DevDir string
}

func NewCdev(devDir string) *Cdev {
	return &Cdev{DevDir: devDir}
}

func (h *Cdev) OpenChip(index int) (Chip, error) {
	path := filepath.Join(h.DevDir, fmt.Sprintf("gpiochip%d", index))
	chip, err := gpiocdev.NewChip(path, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, err
	}
	return &cdevChip{chip: chip}, nil
}

type cdevChip struct {
	chip *gpiocdev.Chip
}

func (c *cdevChip) Info() ChipInfo {
	return ChipInfo{
		Name:  c.chip.Name,
		Label: c.chip.Label,
		Lines: c.chip.Lines(),
	}
}

func (c *cdevChip) RequestLine(offset int, req LineRequest) (Line, error) {
	opts, err := lineReqOptions(req)
	if err != nil {
		return nil, err
	}
	line, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (c *cdevChip) Close() error {
	return c.chip.Close()
}

// lineReqOptions translates req into uAPI flags. Drive options are only
// given to outputs: gpiocdev turns a line into an output when a drive is set.
func lineReqOptions(req LineRequest) ([]gpiocdev.LineReqOption, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(req.Consumer)}
	switch req.Direction {
	case config.DirectionIn:
		if req.Drive == config.DriveOpenDrain {
			return nil, ErrInputDrive
		}
		return append(opts, gpiocdev.AsInput), nil
	case config.DirectionOut:
		opts = append(opts, gpiocdev.AsOutput(req.InitialValue))
		if req.Drive == config.DriveOpenDrain {
			opts = append(opts, gpiocdev.AsOpenDrain)
		}
		return opts, nil
	default:
		return nil, fmt.Errorf("unknown direction %q", req.Direction)
	}
}
