// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a container runtime and rewrites converter
// invocations so they run inside an image instead of on the host.
package container

import (
	"fmt"
	"os/exec"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime provides the container operations the conversion pipeline needs:
// availability checks and invocation wrapping.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Wrap returns the command and arguments that run command+args inside
	// image with the workspace bind-mounted at the same path and used as
	// the working directory. The container is removed on exit.
	Wrap(image, workspace, command string, args []string) (string, []string)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Wrap(image, workspace, command string, args []string) (string, []string) {
	wrapped := make([]string, 0, 8+len(args))
	wrapped = append(wrapped,
		"run", "--rm", "-i",
		"-v", workspace+":"+workspace,
		"-w", workspace,
		image, command,
	)
	wrapped = append(wrapped, args...)
	return r.bin, wrapped
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

// Select returns the runtime named by preference: "docker", "podman", or
// "auto"/"" to detect one.
func Select(preference string) (Runtime, error) {
	return selectRuntime(&osExecutor{}, preference)
}

func selectRuntime(exec executor, preference string) (Runtime, error) {
	switch preference {
	case "", "auto":
		return detectRuntime(exec)
	case binDocker, binPodman:
		rt := newDockerRuntime(exec)
		if preference == binPodman {
			rt = newPodmanRuntime(exec)
		}
		if !rt.Available() {
			return nil, fmt.Errorf("container runtime %s not found or not operational", preference)
		}
		return rt, nil
	default:
		return nil, fmt.Errorf("unknown container runtime %q (want docker, podman, or auto)", preference)
	}
}

// detectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
