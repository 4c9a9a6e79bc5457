// Package config loads the process configuration from the environment and
// the GPIO pin document handed over by the bootstrap process.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/goccy/go-yaml"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d *Direction) UnmarshalText(b []byte) error {
	switch v := Direction(b); v {
	case DirectionIn, DirectionOut:
		*d = v
		return nil
	default:
		return fmt.Errorf("unknown direction %q", string(b))
	}
}

type Drive string

const (
	DrivePushPull  Drive = "push_pull"
	DriveOpenDrain Drive = "open_drain"
)

func (d *Drive) UnmarshalText(b []byte) error {
	switch v := Drive(b); v {
	case DrivePushPull, DriveOpenDrain:
		*d = v
		return nil
	default:
		return fmt.Errorf("unknown drive %q", string(b))
	}
}

type Level string

const (
	LevelHigh Level = "high"
	LevelLow  Level = "low"
)

func (l *Level) UnmarshalText(b []byte) error {
	switch v := Level(b); v {
	case LevelHigh, LevelLow:
		*l = v
		return nil
	default:
		return fmt.Errorf("unknown level %q", string(b))
	}
}

// Function is the role an acquired line plays.
type Function string

const (
	FunctionExtReset      Function = "ext_reset"
	FunctionLivenessBlink Function = "liveness_blink"
)

func (f *Function) UnmarshalText(b []byte) error {
	switch v := Function(b); v {
	case FunctionExtReset, FunctionLivenessBlink:
		*f = v
		return nil
	default:
		return fmt.Errorf("unknown function %q", string(b))
	}
}

// PinConfig describes one GPIO line. Optional fields are normalised to their
// defaults by ParsePinConfig.
type PinConfig struct {
	Chip         uint8     `json:"chip"`
	Offset       uint8     `json:"offset"`
	Direction    Direction `json:"direction"`
	Drive        Drive     `json:"drive"`
	InitialLevel Level     `json:"initial_level"`
	Function     Function  `json:"function"`
}

// InitialValue is the output value requested together with the line.
func (c PinConfig) InitialValue() int {
	if c.InitialLevel == LevelHigh {
		return 1
	}
	return 0
}

func (c PinConfig) String() string {
	return fmt.Sprintf("chip=%d offset=%d direction=%s drive=%s initial_level=%s function=%s",
		c.Chip, c.Offset, c.Direction, c.Drive, c.InitialLevel, c.Function)
}

// ParsePinConfig decodes and validates a single pin entry.
func ParsePinConfig(raw []byte) (PinConfig, error) {
	var entry struct {
		Chip         *uint8     `json:"chip"`
		Offset       *uint8     `json:"offset"`
		Direction    *Direction `json:"direction"`
		Drive        *Drive     `json:"drive"`
		InitialLevel *Level     `json:"initial_level"`
		Function     *Function  `json:"function"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return PinConfig{}, err
	}

	var missing []string
	if entry.Chip == nil {
		missing = append(missing, "chip")
	}
	if entry.Offset == nil {
		missing = append(missing, "offset")
	}
	if entry.Direction == nil {
		missing = append(missing, "direction")
	}
	if len(missing) > 0 {
		return PinConfig{}, fmt.Errorf("missing field(s): %s", strings.Join(missing, ", "))
	}

	cfg := PinConfig{
		Chip:         *entry.Chip,
		Offset:       *entry.Offset,
		Direction:    *entry.Direction,
		Drive:        DrivePushPull,
		InitialLevel: LevelLow,
		Function:     FunctionExtReset,
	}
	if entry.Drive != nil {
		cfg.Drive = *entry.Drive
	}
	// Open drain is an output mode; the kernel rejects it on inputs.
	if cfg.Direction == DirectionIn && cfg.Drive == DriveOpenDrain {
		return PinConfig{}, fmt.Errorf("drive %q needs direction %q", cfg.Drive, DirectionOut)
	}
	if entry.InitialLevel != nil {
		cfg.InitialLevel = *entry.InitialLevel
	}
	if entry.Function != nil {
		cfg.Function = *entry.Function
	}
	return cfg, nil
}

// Document is the configuration handed over by the bootstrap process. Only
// the gpio section is consumed here; other top-level keys are ignored.
type Document struct {
	GPIO *GPIOSection `json:"gpio"`
}

type GPIOSection struct {
	// Pins are kept raw so a malformed entry only disables that pin.
	Pins map[string]json.RawMessage `json:"pins"`
}

// Pin is a named, validated pin entry.
type Pin struct {
	Name string
	PinConfig
}

// ParseDocument parses a JSON document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid configuration document: %w", err)
	}
	return &doc, nil
}

// ParseYAMLDocument parses a YAML document into the same model as
// ParseDocument.
func ParseYAMLDocument(data []byte) (*Document, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("invalid configuration document: %w", err)
	}
	if tree == nil {
		return &Document{}, nil
	}
	asJSON, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration document: %w", err)
	}
	return ParseDocument(asJSON)
}

// ReadDocument reads a whole document from r. An empty input is an empty
// document.
func ReadDocument(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &Document{}, nil
	}
	return ParseDocument(data)
}

// LoadDocumentFile reads a document from a file, choosing the YAML parser for
// .yaml and .yml files.
func LoadDocumentFile(p *paths.Path) (*Document, error) {
	if p == nil {
		return nil, errors.New("no configuration file given")
	}
	data, err := p.ReadFile()
	if err != nil {
		return nil, err
	}
	switch p.Ext() {
	case ".yaml", ".yml":
		return ParseYAMLDocument(data)
	default:
		return ParseDocument(data)
	}
}

// Pins decodes every pin entry of the document, sorted by name. Malformed
// entries are logged and left out.
func (d *Document) Pins(logger *slog.Logger) []Pin {
	if d == nil || d.GPIO == nil {
		return nil
	}

	names := make([]string, 0, len(d.GPIO.Pins))
	for name := range d.GPIO.Pins {
		names = append(names, name)
	}
	slices.Sort(names)

	pins := make([]Pin, 0, len(names))
	for _, name := range names {
		cfg, err := ParsePinConfig(d.GPIO.Pins[name])
		if err != nil {
			logger.Error("invalid gpio pin configuration", slog.String("pin_name", name), slog.String("error", err.Error()))
			continue
		}
		pins = append(pins, Pin{Name: name, PinConfig: cfg})
	}
	return pins
}
