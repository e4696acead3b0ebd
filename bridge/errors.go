package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotReady is returned by Play when no child process is ready to take a command,
	// either because the session was never started, it was stopped, or the child crashed.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrAlreadyStarted is returned when Start is called on a session that has already been started.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrStoppedDuringStartup is wrapped by a StartupError when Stop interrupts the handshake.
	ErrStoppedDuringStartup = errors.New("session stopped during startup")
)

// StartupError means the child process never became ready, usually because it exited before printing its first prompt.
type StartupError struct {
	// Output is everything the child printed before it failed.
	Output string
	// ExitCode is the exit code of the child, or -1 if it is unknown or the child never ran.
	ExitCode int
	Err      error
}

func (e *StartupError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("child process failed to start (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("child process failed to start: %v", e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// ChildExitedError means the child process went away while a response was being read.
type ChildExitedError struct {
	// Output is the partial response read before the child's output closed.
	Output   string
	ExitCode int
	Err      error
}

func (e *ChildExitedError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("child process exited with code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("child process exited: %v", e.Err)
}

func (e *ChildExitedError) Unwrap() error { return e.Err }
