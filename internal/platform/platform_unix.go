//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// unixAdapter signals processes with SIGTERM/SIGKILL. Children are
// started as leaders of a fresh process group so that a signal sent to
// the negative PID reaches the whole group.
type unixAdapter struct{}

// New creates the platform adapter. runAsService only affects Windows.
func New(runAsService bool) Adapter {
	_ = runAsService
	return &unixAdapter{}
}

// PreExec makes the child the leader of a new process group.
func (a *unixAdapter) PreExec(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Terminate sends SIGTERM to the process, or to its whole group when
// the process is the group leader.
func (a *unixAdapter) Terminate(pid int) error {
	return signalProc(pid, syscall.SIGTERM)
}

// Kill sends SIGKILL, with the same group handling as Terminate.
func (a *unixAdapter) Kill(pid int) error {
	return signalProc(pid, syscall.SIGKILL)
}

func signalProc(pid int, sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return fmt.Errorf("getpgid %d: %w", pid, err)
	}
	target := pid
	if pgid == pid {
		target = -pid
	}
	if err := syscall.Kill(target, sig); err != nil {
		return fmt.Errorf("signal %v to pid %d: %w", sig, target, err)
	}
	return nil
}

// IsAlive probes the PID with signal 0. EPERM means the process exists
// but belongs to another user; it still counts as alive.
func (a *unixAdapter) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
