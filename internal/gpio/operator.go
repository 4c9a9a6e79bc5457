package gpio

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/homegw/homegw-rt/internal/config"
)

// Operator owns every acquired line. It is built once at startup and after
// that only touched by the control loop thread.
type Operator struct {
	chips      []Chip
	resetLines map[string]Line
	resetIDs   map[string]LineID
	blinkLines []Line
}

// NewOperator probes chips starting at index 0 until one fails to open, then
// acquires each configured pin. A pin that cannot be acquired is logged and
// skipped; it never prevents the others from being used.
func NewOperator(hw Hardware, pins []config.Pin, logger *slog.Logger) *Operator {
	o := &Operator{
		resetLines: make(map[string]Line),
		resetIDs:   make(map[string]LineID),
	}

	for i := 0; ; i++ {
		chip, err := hw.OpenChip(i)
		if err != nil {
			break
		}
		info := chip.Info()
		logger.Info("new gpio chip",
			slog.String("name", info.Name),
			slog.String("label", info.Label),
			slog.Int("lines", info.Lines),
		)
		o.chips = append(o.chips, chip)
	}

	for _, pin := range pins {
		logger := logger.With(slog.String("pin_name", pin.Name))

		if int(pin.Chip) >= len(o.chips) {
			logger.Error("invalid gpio chip", slog.Int("chip", int(pin.Chip)), slog.Int("chips", len(o.chips)))
			continue
		}
		line, err := o.chips[pin.Chip].RequestLine(int(pin.Offset), newLineRequest(pin.PinConfig))
		if err != nil {
			logger.Error("failed to request gpio line", slog.String("error", err.Error()))
			continue
		}

		switch pin.Function {
		case config.FunctionLivenessBlink:
			o.blinkLines = append(o.blinkLines, line)
		default:
			if old, ok := o.resetLines[pin.Name]; ok {
				_ = old.Close()
			}
			o.resetLines[pin.Name] = line
			o.resetIDs[pin.Name] = LineID{Chip: pin.Chip, Offset: pin.Offset}
		}
		logger.Info("opened gpio line", slog.String("pin_config", pin.PinConfig.String()))
	}
	return o
}

// ResetLine looks up an external-reset line by its configured name.
func (o *Operator) ResetLine(name string) (Line, bool) {
	l, ok := o.resetLines[name]
	return l, ok
}

// ResetLineID returns the physical identity of a reset line.
func (o *Operator) ResetLineID(name string) (LineID, bool) {
	id, ok := o.resetIDs[name]
	return id, ok
}

func (o *Operator) ResetLineNames() []string {
	return slices.Sorted(maps.Keys(o.resetLines))
}

func (o *Operator) BlinkLines() []Line {
	return o.blinkLines
}

func (o *Operator) NumChips() int {
	return len(o.chips)
}

// Close releases every line and chip.
func (o *Operator) Close() error {
	var errs []error
	for _, l := range o.resetLines {
		errs = append(errs, l.Close())
	}
	for _, l := range o.blinkLines {
		errs = append(errs, l.Close())
	}
	for _, c := range o.chips {
		errs = append(errs, c.Close())
	}
	o.resetLines = map[string]Line{}
	o.resetIDs = map[string]LineID{}
	o.blinkLines = nil
	o.chips = nil
	return errors.Join(errs...)
}
