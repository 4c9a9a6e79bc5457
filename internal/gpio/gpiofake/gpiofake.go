// Package gpiofake is an in-memory gpio.Hardware for tests.
package gpiofake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/homegw/homegw-rt/internal/gpio"
)

var (
	ErrNoSuchChip = errors.New("no such gpio chip")
	ErrBusy       = errors.New("line busy")
	ErrClosed     = errors.New("line closed")
)

type Hardware struct {
	Chips []*Chip
}

// New builds hardware with one chip per entry of lines, each with that many
// lines.
func New(lines ...int) *Hardware {
	h := &Hardware{}
	for i, n := range lines {
		h.Chips = append(h.Chips, &Chip{
			info:  gpio.ChipInfo{Name: fmt.Sprintf("gpiochip%d", i), Label: fmt.Sprintf("fake-%d", i), Lines: n},
			lines: make(map[int]*Line),
		})
	}
	return h
}

func (h *Hardware) OpenChip(index int) (gpio.Chip, error) {
	if index < 0 || index >= len(h.Chips) {
		return nil, fmt.Errorf("open gpiochip%d: %w", index, ErrNoSuchChip)
	}
	return h.Chips[index], nil
}

// Line returns the line held at offset on chip, or nil.
func (h *Hardware) Line(chip, offset int) *Line {
	return h.Chips[chip].Line(offset)
}

type Chip struct {
	mu     sync.Mutex
	info   gpio.ChipInfo
	lines  map[int]*Line
	closed bool
}

func (c *Chip) Info() gpio.ChipInfo {
	return c.info
}

func (c *Chip) RequestLine(offset int, req gpio.LineRequest) (gpio.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset < 0 || offset >= c.info.Lines {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	if l, ok := c.lines[offset]; ok && !l.Closed() {
		return nil, ErrBusy
	}
	l := &Line{Request: req, values: []int{req.InitialValue}}
	c.lines[offset] = l
	return l, nil
}

func (c *Chip) Line(offset int) *Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[offset]
}

func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Line records every value written to it.
type Line struct {
	Request gpio.LineRequest

	mu      sync.Mutex
	values  []int
	failing bool
	closed  bool
}

func (l *Line) SetValue(value int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.failing {
		return errors.New("injected write failure")
	}
	l.values = append(l.values, value)
	return nil
}

func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Line) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Value is the level the line is currently driven to.
func (l *Line) Value() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values[len(l.values)-1]
}

// Values is the full write history, starting with the initial value.
func (l *Line) Values() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.values...)
}

// SetFailing makes subsequent writes fail.
func (l *Line) SetFailing(failing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing = failing
}
