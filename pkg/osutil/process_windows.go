//go:build windows

// Package osutil holds platform specific process control.
package osutil

import (
	"os"
	"os/exec"
	"syscall"
)

// SetProcessGroup starts cmd in a new process group.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Interrupt terminates the process. Windows has no SIGINT for other
// processes, so this is the same as Kill.
func Interrupt(cmd *exec.Cmd) error {
	return Kill(cmd)
}

// Kill terminates the process. Children may outlive it.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(os.Kill)
}

// ProcessAlive reports whether a process with pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
