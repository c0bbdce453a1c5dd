package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const (
	// CompanionProcessName is the ShareX executable name without extension.
	CompanionProcessName = "ShareX"
	// CompanionSettleInterval is how long to wait after terminating ShareX
	// so it can flush its own config before we touch the file.
	CompanionSettleInterval = 3 * time.Second
)

// ProcessChecker finds and stops host processes by name.
type ProcessChecker interface {
	// Running returns the PIDs of processes called name.
	Running(ctx context.Context, name string) ([]int32, error)
	// Terminate stops the given processes.
	Terminate(ctx context.Context, pids []int32) error
}

// HostProcesses is the ProcessChecker backed by gopsutil.
type HostProcesses struct{}

// Running matches process names case-insensitively, ignoring ".exe".
func (HostProcesses) Running(ctx context.Context, name string) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	want := normalizeProcessName(name)
	var pids []int32
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes can exit, or be inaccessible, while we iterate.
			continue
		}
		if normalizeProcessName(n) == want {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

// Terminate asks each process to exit, then kills it if it has not.
func (HostProcesses) Terminate(ctx context.Context, pids []int32) error {
	for _, pid := range pids {
		p, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue // already gone
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			if kerr := p.KillWithContext(ctx); kerr != nil {
				return fmt.Errorf("stopping process %d: %w", pid, kerr)
			}
		}
	}
	return nil
}

func normalizeProcessName(n string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(n)), ".exe")
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
