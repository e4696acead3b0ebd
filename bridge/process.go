package bridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a child process.
type State int

const (
	NotStarted State = iota
	Starting
	Ready
	Stopping
	Stopped
	// Failed means the child exited before its first prompt.
	Failed
	// Crashed means the child exited, or its streams broke, after it was ready.
	Crashed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	case Crashed:
		return "crashed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Process owns one child process and its streams.
// Nothing else may signal the child or touch its stdin and output.
type Process struct {
	log  *zap.SugaredLogger
	cfg  config
	path string
	args []string

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	out      *os.File
	ch       *Channel
	exited   chan struct{}
	exitCode int
	banner   string
}

func NewProcess(path string, args []string, opts ...Option) *Process {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Process{
		log:      cfg.log.Named("process"),
		cfg:      cfg,
		path:     path,
		args:     args,
		exitCode: -1,
	}
}

// Start spawns the child and blocks until it prints its first prompt.
// If the child exits first, a *StartupError is returned and the process moves to Failed.
func (p *Process) Start() error {
	p.mu.Lock()
	if p.state != NotStarted {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.state = Starting
	p.mu.Unlock()

	cmd := exec.Command(p.path, p.args...)
	cmd.Dir = p.cfg.dir
	if len(p.cfg.env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.env...)
	}

	// stdout and stderr share one pipe, the prompt can show up between diagnostics
	outR, outW, err := os.Pipe()
	if err != nil {
		p.setState(Failed)
		return &StartupError{ExitCode: -1, Err: fmt.Errorf("creating output pipe: %w", err)}
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	stdin, err := cmd.StdinPipe()
	if err != nil {
		outR.Close()
		outW.Close()
		p.setState(Failed)
		return &StartupError{ExitCode: -1, Err: fmt.Errorf("creating stdin pipe: %w", err)}
	}

	p.log.Debugw("starting child process", "Path", p.path, "Args", p.args)
	err = cmd.Start()
	// the child has its own copy now, ours must go so that EOF shows up when the child exits
	outW.Close()
	if err != nil {
		outR.Close()
		p.setState(Failed)
		return &StartupError{ExitCode: -1, Err: fmt.Errorf("starting %s: %w", p.path, err)}
	}

	exited := make(chan struct{})
	ch := &Channel{
		In:        stdin,
		Out:       outR,
		Marker:    p.cfg.marker,
		ChunkSize: p.cfg.chunkSize,
		Exited:    exited,
		Log:       p.log.Named("channel"),
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.out = outR
	p.ch = ch
	p.exited = exited
	stopped := p.state != Starting
	p.mu.Unlock()

	go p.wait(cmd, exited)

	if stopped {
		p.kill()
		return &StartupError{ExitCode: -1, Err: ErrStoppedDuringStartup}
	}

	banner, err := ch.Await()
	if err != nil {
		p.mu.Lock()
		if p.state == Starting {
			p.state = Failed
		}
		code := p.exitCode
		p.mu.Unlock()
		p.log.Debugw("handshake failed", "Error", err, "ExitCode", code)
		p.kill()
		return &StartupError{Output: banner, ExitCode: code, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Starting {
		return &StartupError{Output: banner, ExitCode: p.exitCode, Err: ErrStoppedDuringStartup}
	}
	p.state = Ready
	p.banner = banner
	p.log.Infow("child process ready", "PID", cmd.Process.Pid)
	return nil
}

func (p *Process) wait(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	code := cmd.ProcessState.ExitCode()

	p.mu.Lock()
	p.exitCode = code
	crashed := p.state == Ready
	if crashed {
		p.state = Crashed
	}
	p.mu.Unlock()

	if crashed {
		p.log.Warnw("child process exited unexpectedly", "ExitCode", code, "Error", err)
	} else {
		p.log.Debugw("child process exited", "ExitCode", code, "Error", err)
	}
	close(exited)
}

// kill forcibly ends a child that is not going to become ready.
func (p *Process) kill() {
	p.mu.Lock()
	cmd, exited := p.cmd, p.exited
	p.mu.Unlock()
	if cmd == nil {
		return
	}
	select {
	case <-exited:
	default:
		_ = cmd.Process.Kill()
		<-exited
	}
	p.closeStreams()
}

func (p *Process) closeStreams() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.out != nil {
		p.out.Close()
	}
}

// Stop terminates the child. It first sends SIGTERM, then kills the child if it is still running after the stop timeout.
// Stop never waits longer than twice the stop timeout, and it is safe to call at any time and more than once.
func (p *Process) Stop() error {
	p.mu.Lock()
	switch p.state {
	case Stopping, Stopped:
		p.mu.Unlock()
		return nil
	case NotStarted:
		p.state = Stopped
		p.mu.Unlock()
		return nil
	}
	p.state = Stopping
	cmd, exited := p.cmd, p.exited
	p.mu.Unlock()

	defer p.setState(Stopped)

	if cmd == nil {
		// Start failed before spawning anything
		return nil
	}

	// closing stdin is enough for most interactive programs to exit
	p.mu.Lock()
	p.stdin.Close()
	p.mu.Unlock()

	var err error
	select {
	case <-exited:
	default:
		p.log.Debugw("terminating child process", "PID", cmd.Process.Pid)
		if sigErr := cmd.Process.Signal(syscall.SIGTERM); sigErr != nil {
			p.log.Debugf("error sending SIGTERM, killing instead: %s", sigErr)
			_ = cmd.Process.Kill()
		}
		if !waitTimeout(exited, p.cfg.stopTimeout) {
			p.log.Warnw("child process ignored SIGTERM, killing it", "PID", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			if !waitTimeout(exited, p.cfg.stopTimeout) {
				err = fmt.Errorf("child process %d did not exit after kill", cmd.Process.Pid)
			}
		}
	}

	// unblocks any read still waiting on the output pipe
	p.closeStreams()
	return err
}

func waitTimeout(ch <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PID returns the PID of the child, or 0 if it was never spawned.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitCode returns the exit code of the child, or -1 if it has not exited.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Banner returns what the child printed before its first prompt.
func (p *Process) Banner() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.banner
}

// sendAndAwait runs one command cycle. Callers must serialize calls.
func (p *Process) sendAndAwait(command string) (string, error) {
	p.mu.Lock()
	if p.state != Ready {
		p.mu.Unlock()
		return "", ErrSessionNotReady
	}
	ch, exited := p.ch, p.exited
	p.mu.Unlock()

	resp, err := ch.SendAndAwait(command)
	if err == nil {
		return resp, nil
	}

	// whatever happened, the stream is out of sync now
	p.mu.Lock()
	if p.state == Ready {
		p.state = Crashed
	}
	p.mu.Unlock()

	var exitedErr *ChildExitedError
	if errors.As(err, &exitedErr) {
		select {
		case <-exited:
			exitedErr.ExitCode = p.ExitCode()
		default:
		}
	}
	return resp, err
}
