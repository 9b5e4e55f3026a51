// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package liveness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is an opaque fingerprint of a process. Two snapshots of the
// same running process are equal; a snapshot of a different process
// which reuses the pid is not.
type Snapshot string

// Prober takes snapshots of processes.
type Prober interface {
	Probe(ctx context.Context, pid int32) (Snapshot, error)
}

// ProberFunc is a func variant of the [Prober] interface.
type ProberFunc func(context.Context, int32) (Snapshot, error)

// Probe implements the [Prober] interface.
func (f ProberFunc) Probe(ctx context.Context, pid int32) (Snapshot, error) {
	return f(ctx, pid)
}

// ParentUnreachableError occurs when the watched process can not be found.
type ParentUnreachableError struct {
	PID   int32
	Cause error
}

// Error implements the [error] interface.
func (e ParentUnreachableError) Error() string {
	return fmt.Sprintf("parent process %d is unreachable: %s", e.PID, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ParentUnreachableError) Unwrap() error {
	return e.Cause
}

type processInfo struct {
	PID        int32   `json:"pid"`
	PPID       int32   `json:"ppid"`
	Name       string  `json:"name"`
	Cmdline    string  `json:"cmdline"`
	CreateTime int64   `json:"createTime"`
	UIDs       []int32 `json:"uids"`
	GIDs       []int32 `json:"gids"`
}

// ProcessProber snapshots processes through the operating system's
// process table.
type ProcessProber struct{}

// Probe implements the [Prober] interface. Attributes which can not be
// read, e.g. for lack of permissions, are left empty so repeated probes
// of the same process stay comparable.
func (ProcessProber) Probe(ctx context.Context, pid int32) (Snapshot, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", ParentUnreachableError{PID: pid, Cause: err}
	}
	running, err := p.IsRunningWithContext(ctx)
	if err != nil {
		return "", ParentUnreachableError{PID: pid, Cause: err}
	}
	if !running {
		return "", ParentUnreachableError{PID: pid, Cause: process.ErrorProcessNotRunning}
	}

	info := processInfo{PID: pid}
	info.PPID, _ = p.PpidWithContext(ctx)
	info.Name, _ = p.NameWithContext(ctx)
	info.Cmdline, _ = p.CmdlineWithContext(ctx)
	info.CreateTime, _ = p.CreateTimeWithContext(ctx)
	info.UIDs, _ = p.UidsWithContext(ctx)
	info.GIDs, _ = p.GidsWithContext(ctx)

	b, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return Snapshot(b), nil
}
