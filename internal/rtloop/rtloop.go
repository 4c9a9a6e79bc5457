// Package rtloop is the GPIO control loop.
//
// The loop runs on a single OS thread under SCHED_DEADLINE and is the only
// code that ever touches the acquired lines, the pending reset heap and the
// iteration counter. None of that state is locked: confinement to the loop
// thread is what keeps it consistent. Other goroutines reach the loop only
// through the request bridge.
//
// Every iteration runs three phases in order:
//
//  1. toggle every liveness blink line,
//  2. release every reset whose hold has expired,
//  3. answer queued bridge requests until none is left or DrainBudget is spent.
package rtloop

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/homegw/homegw-rt/internal/bridge"
	"github.com/homegw/homegw-rt/internal/deadlines"
	"github.com/homegw/homegw-rt/internal/gpio"
	"github.com/homegw/homegw-rt/internal/kmsg"
	"github.com/homegw/homegw-rt/internal/metrics"
	"github.com/homegw/homegw-rt/internal/sched"
)

const (
	Runtime = 5 * time.Millisecond
	Period  = 100 * time.Millisecond

	// DrainBudget bounds phase 3 so the next iteration's blink and release
	// phases still fit in the runtime reservation.
	DrainBudget = 4 * time.Millisecond

	// MaxPendingResets is the capacity of the reset heap. Requests beyond it
	// are rejected.
	MaxPendingResets = 8
)

// Reset lines are active low.
const (
	ResetAsserted = 0
	ResetReleased = 1
)

// Lines is the part of the GPIO operator the loop drives.
type Lines interface {
	ResetLine(name string) (gpio.Line, bool)
	ResetLineNames() []string
	BlinkLines() []gpio.Line
}

// Receiver is the loop end of the request bridge.
type Receiver interface {
	TryRecv() (*bridge.Request, bool)
	Shutdown()
}

// Pacer sets up the loop thread and spaces iterations out.
type Pacer interface {
	// Start runs once on the locked loop thread before the first iteration.
	Start() error
	// Wait returns when the next iteration is due.
	Wait()
}

// DeadlinePacer reserves Runtime every Period for the loop thread and yields
// the rest of the budget after each iteration.
type DeadlinePacer struct{}

func (DeadlinePacer) Start() error {
	return sched.EnableDeadline(sched.DeadlineParams{Runtime: Runtime, Period: Period})
}

func (DeadlinePacer) Wait() {
	sched.Yield()
}

type pendingReset struct {
	pin  string
	line gpio.Line
}

type Loop struct {
	lines   Lines
	recv    Receiver
	clock   clockwork.Clock
	kmsg    *kmsg.Writer
	metrics *metrics.Metrics

	pending    *deadlines.Heap[pendingReset]
	iterations uint64
}

type Option func(*Loop)

func WithClock(c clockwork.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithKmsg sets where transient hardware and request failures are reported.
func WithKmsg(k *kmsg.Writer) Option {
	return func(l *Loop) { l.kmsg = k }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

func New(lines Lines, recv Receiver, opts ...Option) *Loop {
	l := &Loop{
		lines:   lines,
		recv:    recv,
		clock:   clockwork.NewRealClock(),
		pending: deadlines.New[pendingReset](MaxPendingResets),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.Discard()
	}
	return l
}

// Run locks the calling goroutine to its thread, starts the pacer and
// iterates until ctx is done. The thread is never unlocked, so it exits with
// the goroutine instead of going back to the Go scheduler with a real-time
// policy attached.
//
// On return every pending reset is released and the bridge is shut down.
func (l *Loop) Run(ctx context.Context, pacer Pacer) error {
	runtime.LockOSThread()
	defer l.stop()

	if err := pacer.Start(); err != nil {
		return fmt.Errorf("start control loop: %w", err)
	}
	for ctx.Err() == nil {
		l.Step()
		pacer.Wait()
	}
	return nil
}

// Step runs one iteration.
func (l *Loop) Step() {
	l.blink()
	l.expire(l.clock.Now())
	l.drain()
}

func (l *Loop) Iterations() uint64 {
	return l.iterations
}

// Pending is the number of resets currently held.
func (l *Loop) Pending() int {
	return l.pending.Len()
}

func (l *Loop) blink() {
	l.iterations++
	l.metrics.LoopIterations.Inc()

	value := int(l.iterations % 2)
	for i, line := range l.lines.BlinkLines() {
		if err := line.SetValue(value); err != nil {
			l.metrics.BlinkWriteErrors.Inc()
			l.kmsg.Printf("blink line %d: %v", i, err)
		}
	}
}

func (l *Loop) expire(now time.Time) {
	for {
		e, ok := l.pending.PopExpired(now)
		if !ok {
			break
		}
		l.release(e.Value)
	}
	l.metrics.PendingResets.Set(float64(l.pending.Len()))
}

func (l *Loop) release(p pendingReset) {
	l.metrics.ResetsReleased.Inc()
	if err := p.line.SetValue(ResetReleased); err != nil {
		l.metrics.ReleaseWriteErrors.Inc()
		l.kmsg.Printf("release %s: %v", p.pin, err)
	}
}

func (l *Loop) drain() {
	start := l.clock.Now()
	for {
		req, ok := l.recv.TryRecv()
		if !ok {
			return
		}
		l.handle(req)
		if l.clock.Since(start) >= DrainBudget {
			l.metrics.DrainBudgetHits.Inc()
			return
		}
	}
}

func (l *Loop) handle(req *bridge.Request) {
	switch op := req.Op.(type) {
	case bridge.ResetOp:
		err := l.reset(op)
		l.resetCounter(err).Inc()
		req.Complete(nil, err)
	case bridge.StatusOp:
		l.metrics.Handled.StatusOK.Inc()
		req.Complete(l.status(), nil)
	default:
		l.metrics.Handled.Unsupported.Inc()
		req.Complete(nil, fmt.Errorf("%s: %w", req.Op, bridge.ErrUnsupportedOp))
	}
}

func (l *Loop) reset(op bridge.ResetOp) error {
	line, ok := l.lines.ResetLine(op.Pin)
	if !ok {
		l.kmsg.Printf("reset %s: unknown pin", op.Pin)
		return fmt.Errorf("%q: %w", op.Pin, bridge.ErrUnknownPin)
	}
	if l.pending.Any(func(e deadlines.Entry[pendingReset]) bool { return e.Value.line == line }) {
		l.kmsg.Printf("reset %s: already in reset", op.Pin)
		return fmt.Errorf("%q: %w", op.Pin, bridge.ErrAlreadyResetting)
	}
	// Checked before asserting so a rejected request never leaves a line
	// held without a pending release.
	if l.pending.Full() {
		l.kmsg.Printf("reset %s: %d resets already pending", op.Pin, l.pending.Len())
		return fmt.Errorf("%q: %w", op.Pin, bridge.ErrHeapFull)
	}
	if err := line.SetValue(ResetAsserted); err != nil {
		l.kmsg.Printf("reset %s: %v", op.Pin, err)
		return fmt.Errorf("%q: %w: %w", op.Pin, bridge.ErrLineWrite, err)
	}
	if err := l.pending.Push(l.clock.Now().Add(op.Hold), pendingReset{pin: op.Pin, line: line}); err != nil {
		// Unreachable after the Full check; undo the assert anyway.
		l.release(pendingReset{pin: op.Pin, line: line})
		return fmt.Errorf("%q: %w", op.Pin, bridge.ErrHeapFull)
	}
	l.metrics.PendingResets.Set(float64(l.pending.Len()))
	return nil
}

func (l *Loop) status() bridge.Status {
	now := l.clock.Now()
	s := bridge.Status{
		ResetPins:  l.lines.ResetLineNames(),
		BlinkLines: len(l.lines.BlinkLines()),
		Iterations: l.iterations,
	}
	for e := range l.pending.All() {
		s.Pending = append(s.Pending, bridge.PendingReset{
			Pin:       e.Value.pin,
			Remaining: max(e.At.Sub(now), 0),
		})
	}
	slices.SortFunc(s.Pending, func(a, b bridge.PendingReset) int {
		return strings.Compare(a.Pin, b.Pin)
	})
	return s
}

func (l *Loop) stop() {
	for {
		e, ok := l.pending.Pop()
		if !ok {
			break
		}
		l.release(e.Value)
	}
	l.metrics.PendingResets.Set(0)
	l.recv.Shutdown()
}

func (l *Loop) resetCounter(err error) prometheus.Counter {
	c := &l.metrics.Handled
	switch {
	case err == nil:
		return c.ResetOK
	case errors.Is(err, bridge.ErrUnknownPin):
		return c.ResetUnknownPin
	case errors.Is(err, bridge.ErrAlreadyResetting):
		return c.ResetAlreadyResetting
	case errors.Is(err, bridge.ErrHeapFull):
		return c.ResetHeapFull
	case errors.Is(err, bridge.ErrLineWrite):
		return c.ResetLineWrite
	default:
		return c.ResetError
	}
}
