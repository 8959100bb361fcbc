//go:build windows

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

func newProcessGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminateGroup asks the tree to close. /T = include child processes.
func terminateGroup(pid int) error {
	return exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// killGroup forcibly terminates the tree. /F = force, /T = tree.
func killGroup(pid int) error {
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// groupAlive is always false: taskkill /T already covers the tree while the
// leader lives, and an orphaned tree cannot be addressed through its pid.
func groupAlive(int) bool {
	return false
}
