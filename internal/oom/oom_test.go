package oom

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/homegw/homegw-rt/internal/kmsg"
	"github.com/homegw/homegw-rt/internal/metrics"
)

type fakeProcs struct {
	mu      sync.Mutex
	uids    map[int32]uint32
	uidErr  map[int32]error
	killErr map[int32]error
	listErr error
	killed  []int32
}

func (p *fakeProcs) Pids(context.Context) ([]int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	var pids []int32
	for pid := range p.uids {
		pids = append(pids, pid)
	}
	for pid := range p.uidErr {
		pids = append(pids, pid)
	}
	return pids, nil
}

func (p *fakeProcs) OwnerUID(_ context.Context, pid int32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.uidErr[pid]; ok {
		return 0, err
	}
	return p.uids[pid], nil
}

func (p *fakeProcs) Kill(_ context.Context, pid int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.killErr[pid]; ok {
		return err
	}
	p.killed = append(p.killed, pid)
	return nil
}

func (p *fakeProcs) Killed() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int32(nil), p.killed...)
}

type fakeMonitor struct {
	path, trigger string
	events        chan error
	closed        chan struct{}
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{events: make(chan error), closed: make(chan struct{})}
}

func (m *fakeMonitor) open(path, trigger string) (Monitor, error) {
	m.path, m.trigger = path, trigger
	return m, nil
}

func (m *fakeMonitor) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-m.events:
		return err
	}
}

func (m *fakeMonitor) Close() error {
	close(m.closed)
	return nil
}

func mixedTable() *fakeProcs {
	return &fakeProcs{
		uids: map[int32]uint32{
			int32(os.Getpid()): 1000,
			1:                  0,
			100:                999,
			200:                1000,
			300:                65534,
			500:                1001,
		},
		uidErr:  map[int32]error{400: os.ErrNotExist},
		killErr: map[int32]error{500: errors.New("no such process")},
	}
}

func TestKillUnprivileged(t *testing.T) {
	procs := mixedTable()
	m := metrics.New(prometheus.NewRegistry())
	g := New("/proc/pressure/memory", procs, WithMetrics(m))

	killed := g.KillUnprivileged(t.Context())
	require.Equal(t, 2, killed)
	require.ElementsMatch(t, []int32{200, 300}, procs.Killed())
	require.InDelta(t, 2, testutil.ToFloat64(m.OOMKilled), 0)
}

func TestKillUnprivilegedListFailure(t *testing.T) {
	var log bytes.Buffer
	g := New("", &fakeProcs{listErr: errors.New("proc is gone")}, WithKmsg(kmsg.New(&log, "homegw-rt")))

	require.Zero(t, g.KillUnprivileged(t.Context()))
	require.Equal(t, "homegw-rt: list processes: proc is gone\n", log.String())
}

func TestRunKillsOnPressure(t *testing.T) {
	procs := mixedTable()
	mon := newFakeMonitor()
	var log bytes.Buffer
	m := metrics.New(prometheus.NewRegistry())
	rtEnabled := false

	g := New("/proc/pressure/memory", procs,
		WithKmsg(kmsg.New(&log, "homegw-rt")),
		WithMetrics(m),
		WithMonitorOpener(mon.open),
		WithScheduler(func() error { rtEnabled = true; return nil }),
	)

	done := make(chan error, 1)
	go func() { done <- g.Run(t.Context()) }()

	mon.events <- nil
	mon.events <- ErrUnexpectedEvent

	err := <-done
	require.ErrorIs(t, err, ErrUnexpectedEvent)
	require.True(t, rtEnabled)
	require.Equal(t, "/proc/pressure/memory", mon.path)
	require.Equal(t, "full 150000 1000000", mon.trigger)
	require.ElementsMatch(t, []int32{200, 300}, procs.Killed())
	require.Equal(t, "homegw-rt: killed all non-root processes\n", log.String())
	require.InDelta(t, 1, testutil.ToFloat64(m.OOMEvents), 0)

	select {
	case <-mon.closed:
	case <-time.After(time.Second):
		t.Fatal("monitor was not closed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	mon := newFakeMonitor()
	procs := mixedTable()
	g := New("", procs, WithMonitorOpener(mon.open), WithScheduler(func() error { return nil }))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
	require.Empty(t, procs.Killed())
}

func TestRunStartupFailures(t *testing.T) {
	errBoom := errors.New("boom")

	testCases := []struct {
		name      string
		open      func(string, string) (Monitor, error)
		procs     *fakeProcs
		scheduler func() error
		wantErr   string
	}{
		{
			name:      "trigger cannot be armed",
			open:      func(string, string) (Monitor, error) { return nil, errBoom },
			procs:     mixedTable(),
			scheduler: func() error { return nil },
			wantErr:   "arm memory pressure trigger: boom",
		},
		{
			name:      "process table unreadable",
			open:      newFakeMonitor().open,
			procs:     &fakeProcs{listErr: errBoom},
			scheduler: func() error { return nil },
			wantErr:   "list processes: boom",
		},
		{
			name:      "fifo scheduling refused",
			open:      newFakeMonitor().open,
			procs:     mixedTable(),
			scheduler: func() error { return errBoom },
			wantErr:   "start oom guardian: boom",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := New("", tc.procs, WithMonitorOpener(tc.open), WithScheduler(tc.scheduler))

			done := make(chan error, 1)
			go func() { done <- g.Run(t.Context()) }()

			err := <-done
			require.ErrorIs(t, err, errBoom)
			require.EqualError(t, err, tc.wantErr)
			require.Empty(t, tc.procs.Killed())
		})
	}
}
