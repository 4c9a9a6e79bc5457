package oom

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/common"
	"github.com/shirou/gopsutil/v4/process"
)

// HostProcesses is the ProcessTable of the running system, read from a procfs
// mount.
type HostProcesses struct {
	procDir string
}

func NewHostProcesses(procDir string) *HostProcesses {
	return &HostProcesses{procDir: procDir}
}

func (h *HostProcesses) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, common.EnvKey, common.EnvMap{common.HostProcEnvKey: h.procDir})
}

func (h *HostProcesses) Pids(ctx context.Context) ([]int32, error) {
	return process.PidsWithContext(h.context(ctx))
}

// OwnerUID returns the effective uid of pid.
func (h *HostProcesses) OwnerUID(ctx context.Context, pid int32) (uint32, error) {
	ctx = h.context(ctx)
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, err
	}
	uids, err := p.UidsWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if len(uids) < 2 {
		return 0, fmt.Errorf("pid %d: malformed uid list %v", pid, uids)
	}
	return uids[1], nil
}

func (h *HostProcesses) Kill(ctx context.Context, pid int32) error {
	p := &process.Process{Pid: pid}
	return p.KillWithContext(h.context(ctx))
}
