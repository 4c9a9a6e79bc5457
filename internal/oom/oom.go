// Package oom kills unprivileged processes when the kernel reports sustained
// memory stalls.
//
// The guardian registers a PSI trigger on the memory pressure file and
// blocks on it from a SCHED_FIFO thread. There is no degraded mode: if the
// trigger cannot be armed, or the kernel reports anything but a pressure
// event, Run returns an error and the daemon exits.
package oom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/homegw/homegw-rt/internal/kmsg"
	"github.com/homegw/homegw-rt/internal/metrics"
	"github.com/homegw/homegw-rt/internal/sched"
)

const (
	// Trigger fires once all tasks were stalled on memory for 150ms within
	// any 1s window.
	Trigger = "full 150000 1000000"

	// Priority is the lowest SCHED_FIFO priority, so the guardian never
	// preempts the SCHED_DEADLINE control loop.
	Priority = sched.MinFIFOPriority

	// MinUnprivilegedUID is the first uid of a regular user account.
	MinUnprivilegedUID = 1000

	killedMessage = "killed all non-root processes"
)

var (
	// ErrMonitorGone means the pressure file reported POLLERR, which the
	// kernel does when the trigger's cgroup or file goes away.
	ErrMonitorGone     = errors.New("memory pressure trigger is gone")
	ErrUnexpectedEvent = errors.New("unexpected memory pressure event")
)

// ProcessTable lists and kills processes.
type ProcessTable interface {
	Pids(ctx context.Context) ([]int32, error)
	OwnerUID(ctx context.Context, pid int32) (uint32, error)
	Kill(ctx context.Context, pid int32) error
}

// Monitor waits for memory pressure events.
type Monitor interface {
	// Wait blocks until the trigger fires and returns nil. It returns
	// ctx.Err() once ctx is done and another error for any event that is not
	// a pressure notification.
	Wait(ctx context.Context) error
	Close() error
}

type Guardian struct {
	psiPath string
	procs   ProcessTable
	kmsg    *kmsg.Writer
	metrics *metrics.Metrics
	self    int32

	openMonitor func(path, trigger string) (Monitor, error)
	enableRT    func() error
}

type Option func(*Guardian)

func WithKmsg(k *kmsg.Writer) Option {
	return func(g *Guardian) { g.kmsg = k }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guardian) { g.metrics = m }
}

// WithMonitorOpener replaces the PSI trigger with another event source.
func WithMonitorOpener(open func(path, trigger string) (Monitor, error)) Option {
	return func(g *Guardian) { g.openMonitor = open }
}

// WithScheduler replaces the switch to SCHED_FIFO.
func WithScheduler(enable func() error) Option {
	return func(g *Guardian) { g.enableRT = enable }
}

func New(psiPath string, procs ProcessTable, opts ...Option) *Guardian {
	g := &Guardian{
		psiPath:     psiPath,
		procs:       procs,
		self:        int32(os.Getpid()),
		openMonitor: OpenPSI,
		enableRT:    func() error { return sched.EnableFIFO(Priority) },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.Discard()
	}
	return g
}

// Run arms the trigger, switches the calling thread to SCHED_FIFO and then
// handles pressure events until ctx is done. Like the control loop it keeps
// its OS thread locked for good.
func (g *Guardian) Run(ctx context.Context) error {
	runtime.LockOSThread()

	mon, err := g.openMonitor(g.psiPath, Trigger)
	if err != nil {
		return fmt.Errorf("arm memory pressure trigger: %w", err)
	}
	defer mon.Close()

	// Fail now rather than on the first event if the process table cannot
	// be read.
	if _, err := g.procs.Pids(ctx); err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	if err := g.enableRT(); err != nil {
		return fmt.Errorf("start oom guardian: %w", err)
	}

	for {
		if err := mon.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("memory pressure monitor: %w", err)
		}
		g.metrics.OOMEvents.Inc()
		g.KillUnprivileged(ctx)
		g.kmsg.Printf(killedMessage)
	}
}

// KillUnprivileged sends SIGKILL to every process owned by a uid of at least
// MinUnprivilegedUID, except the calling process. Processes that vanish or
// cannot be inspected are skipped. It returns how many were killed.
func (g *Guardian) KillUnprivileged(ctx context.Context) int {
	pids, err := g.procs.Pids(ctx)
	if err != nil {
		g.kmsg.Printf("list processes: %v", err)
		return 0
	}

	killed := 0
	for _, pid := range pids {
		if pid == g.self {
			continue
		}
		uid, err := g.procs.OwnerUID(ctx, pid)
		if err != nil || uid < MinUnprivilegedUID {
			continue
		}
		if err := g.procs.Kill(ctx, pid); err != nil {
			continue
		}
		killed++
	}
	g.metrics.OOMKilled.Add(float64(killed))
	return killed
}
