//go:build !windows

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package process

import (
	"errors"
	"syscall"
)

// newProcessGroupAttr puts the child in a new process group whose id equals
// its pid, so the whole tree can be signalled through -pid.
func newProcessGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGTERM to every process in the group.
func terminateGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// killGroup sends SIGKILL to every process in the group.
func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// groupAlive reports whether any process of the group still exists.
func groupAlive(pid int) bool {
	err := syscall.Kill(-pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
