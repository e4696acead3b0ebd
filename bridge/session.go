package bridge

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transcript is one command together with the response it produced.
type Transcript struct {
	ID       string
	Request  string
	Response string
}

// String returns the request followed by the response, both verbatim.
func (t Transcript) String() string {
	return t.Request + t.Response
}

// Session is the goroutine-safe front of a Process.
// It runs at most one command at a time; concurrent callers of Play queue on a lock.
type Session struct {
	log  *zap.SugaredLogger
	proc *Process

	playMut sync.Mutex
}

// NewSession builds a session for the executable at path. Nothing is spawned until Start is called.
func NewSession(path string, args []string, opts ...Option) *Session {
	proc := NewProcess(path, args, opts...)
	return &Session{
		log:  proc.cfg.log.Named("session"),
		proc: proc,
	}
}

// Start spawns the child and waits for its first prompt.
func (s *Session) Start() error {
	return s.proc.Start()
}

// Stop terminates the child. It does not take the play lock, so it interrupts a Play that is stuck waiting on the child.
func (s *Session) Stop() error {
	return s.proc.Stop()
}

func (s *Session) State() State { return s.proc.State() }

func (s *Session) PID() int { return s.proc.PID() }

func (s *Session) Banner() string { return s.proc.Banner() }

// Play sends command to the child and returns the transcript of the exchange.
// The command must include its line ending.
//
// If the child exits mid-response, the returned error is a *ChildExitedError and the transcript holds the partial response.
// Once that has happened, or if the session is not running, Play returns ErrSessionNotReady without touching the child.
func (s *Session) Play(command string) (Transcript, error) {
	t := Transcript{ID: uuid.NewString(), Request: command}

	// fail fast instead of queueing behind a command that will never finish
	if s.proc.State() != Ready {
		return t, ErrSessionNotReady
	}

	s.playMut.Lock()
	defer s.playMut.Unlock()

	s.log.Debugw("playing command", "ID", t.ID, "Command", command)
	resp, err := s.proc.sendAndAwait(command)
	t.Response = resp
	if err != nil {
		var exitedErr *ChildExitedError
		if errors.As(err, &exitedErr) {
			s.log.Warnw("child exited during command", "ID", t.ID, "ExitCode", exitedErr.ExitCode)
		} else if !errors.Is(err, ErrSessionNotReady) {
			s.log.Warnw("command failed", "ID", t.ID, "Error", err)
		}
		return t, err
	}
	s.log.Debugw("command done", "ID", t.ID, "ResponseBytes", len(resp))
	return t, nil
}
