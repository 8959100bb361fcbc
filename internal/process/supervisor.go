// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package process runs external converter tools under a deadline. A tool
// that outlives its deadline is asked to stop, then killed together with
// every process it spawned.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// DefaultGracePeriod is the wait between the graceful and the forced kill.
const DefaultGracePeriod = 5 * time.Second

// groupPollInterval is how often a terminated group is checked for
// survivors after its leader has exited.
const groupPollInterval = 25 * time.Millisecond

// Status is the terminal state of a supervised process.
type Status int

const (
	// StatusCompleted means the process exited with code 0.
	StatusCompleted Status = iota
	// StatusFailed means the process exited with a non-zero code.
	StatusFailed
	// StatusTimedOut means the deadline elapsed and the process was terminated.
	StatusTimedOut
	// StatusSpawnFailed means the process could not be started.
	StatusSpawnFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed-out"
	case StatusSpawnFailed:
		return "spawn-failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Invocation describes one process to run.
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the service environment
	Timeout time.Duration
}

// Outcome is the result of one supervised run.
type Outcome struct {
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error // spawn error, or the wait error for failures
	Duration time.Duration
}

// Supervisor spawns processes and enforces their deadlines. It holds no
// per-run state and is safe for concurrent use.
type Supervisor struct {
	grace time.Duration
	log   zerolog.Logger
}

// NewSupervisor returns a Supervisor that waits grace between the graceful
// termination signal and the forced kill. A non-positive grace uses
// DefaultGracePeriod.
func NewSupervisor(grace time.Duration, log zerolog.Logger) *Supervisor {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Supervisor{grace: grace, log: log}
}

// Run starts inv and waits for it to exit, for its timeout to elapse, or
// for ctx to be done. In the latter two cases the whole process group is
// terminated and the outcome is StatusTimedOut. A zero timeout means no
// deadline beyond ctx.
func (s *Supervisor) Run(ctx context.Context, inv Invocation) Outcome {
	start := time.Now()

	// Output goes to files rather than pipes so that Wait returns when the
	// tool exits, even if a descendant still holds the streams open.
	stdout, err := newCapture("stdout")
	if err != nil {
		return spawnFailed(inv, start, err)
	}
	defer stdout.discard(s.log)
	stderr, err := newCapture("stderr")
	if err != nil {
		return spawnFailed(inv, start, err)
	}
	defer stderr.discard(s.log)

	cmd := exec.Command(inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(cmd.Environ(), inv.Env...)
	}
	cmd.Stdout = stdout.f
	cmd.Stderr = stderr.f
	cmd.SysProcAttr = newProcessGroupAttr()

	if err := cmd.Start(); err != nil {
		return spawnFailed(inv, start, err)
	}
	pid := cmd.Process.Pid
	log := s.log.With().Str("command", inv.Command).Int("pid", pid).Logger()
	log.Debug().Strs("args", inv.Args).Str("dir", inv.Dir).Msg("process started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if inv.Timeout > 0 {
		timer := time.NewTimer(inv.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var (
		waitErr  error
		timedOut bool
		reason   string
	)
	select {
	case waitErr = <-done:
	case <-deadline:
		reason = fmt.Sprintf("deadline of %s exceeded", inv.Timeout)
		timedOut, waitErr = s.terminate(log, pid, done, reason)
	case <-ctx.Done():
		reason = ctx.Err().Error()
		timedOut, waitErr = s.terminate(log, pid, done, reason)
	}

	out := Outcome{
		Stdout:   stdout.read(),
		Stderr:   stderr.read(),
		Duration: time.Since(start),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	switch {
	case timedOut:
		out.Status = StatusTimedOut
		out.Err = fmt.Errorf("%s terminated: %s", inv.Command, reason)
	case waitErr == nil:
		out.Status = StatusCompleted
	default:
		out.Status = StatusFailed
		out.Err = waitErr
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && out.ExitCode == 0 {
			out.ExitCode = -1
		}
	}
	return out
}

func spawnFailed(inv Invocation, start time.Time, err error) Outcome {
	return Outcome{
		Status:   StatusSpawnFailed,
		ExitCode: -1,
		Err:      fmt.Errorf("starting %s: %w", inv.Command, err),
		Duration: time.Since(start),
	}
}

// terminate stops the process group rooted at pid. It is only ever called
// from Run's select, so a process is signalled by a single path. If the
// process has already exited the exit is reported as natural.
//
// Once the graceful signal is sent, the group is killed when the grace
// period ends unless every member is gone by then. The leader exiting early
// does not end the wait; its descendants may be ignoring the signal.
func (s *Supervisor) terminate(log zerolog.Logger, pid int, done <-chan error, reason string) (bool, error) {
	select {
	case err := <-done:
		return false, err
	default:
	}

	log.Warn().Str("reason", reason).Dur("grace", s.grace).Msg("terminating process group")
	if err := terminateGroup(pid); err != nil {
		log.Debug().Err(err).Msg("graceful termination signal failed")
	}

	grace := time.NewTimer(s.grace)
	defer grace.Stop()
	poll := time.NewTicker(groupPollInterval)
	defer poll.Stop()

	var (
		waitErr error
		exited  bool
	)
	for {
		select {
		case waitErr = <-done:
			exited = true
			done = nil
			if !groupAlive(pid) {
				return true, waitErr
			}
		case <-poll.C:
			if exited && !groupAlive(pid) {
				return true, waitErr
			}
		case <-grace.C:
			log.Warn().Bool("leader_exited", exited).Msg("grace period elapsed, killing process group")
			if err := killGroup(pid); err != nil {
				log.Debug().Err(err).Msg("kill signal failed")
			}
			if !exited {
				waitErr = <-done
			}
			return true, waitErr
		}
	}
}
