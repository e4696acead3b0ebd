package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPromptMarker is the prompt printed by "tttool play" when it waits for the next OID.
	DefaultPromptMarker = "Next OID touched?"

	// DefaultChunkSize is the size of a single read from the child's output.
	DefaultChunkSize = 4096

	// exitGrace is how long a failed read or write waits for the exit notification of the child
	// before reporting it as exited anyway.
	exitGrace = 500 * time.Millisecond
)

// Channel frames the unframed output of a child process into responses ending with Marker.
// A Channel is not goroutine-safe, callers must make sure only one SendAndAwait runs at a time.
type Channel struct {
	// In is the child's stdin.
	In io.Writer
	// Out is the child's output. Reads on it should block until data is available.
	Out io.Reader
	// Marker is the prompt that terminates each response.
	Marker string
	// ChunkSize is the read size. It is raised to len(Marker) if smaller.
	ChunkSize int
	// Exited is closed once the child process has exited. It may be nil.
	Exited <-chan struct{}
	Log    *zap.SugaredLogger
}

func (c *Channel) log() *zap.SugaredLogger {
	if c.Log == nil {
		return zap.NewNop().Sugar()
	}
	return c.Log
}

// SendAndAwait writes command to the child and returns everything it printed up to and including the next prompt.
// The command is written as-is, so it must carry its own line ending.
func (c *Channel) SendAndAwait(command string) (string, error) {
	c.log().Debugw("writing command", "Bytes", len(command))
	_, err := io.WriteString(c.In, command)
	if err != nil {
		if c.waitExited() {
			return "", &ChildExitedError{ExitCode: -1, Err: fmt.Errorf("writing command: %w", err)}
		}
		return "", fmt.Errorf("writing command: %w", err)
	}
	return c.Await()
}

// Await reads from the child until the accumulated output contains the prompt, and returns it.
// It is used on its own for the startup banner.
func (c *Channel) Await() (string, error) {
	marker := []byte(c.Marker)
	if len(marker) == 0 {
		return "", errors.New("empty prompt marker")
	}
	size := c.ChunkSize
	if size < len(marker) {
		size = len(marker)
	}

	buf := make([]byte, size)
	var acc []byte
	for {
		n, err := c.Out.Read(buf)
		if n > 0 {
			// only rescan the part that could hold a marker we have not seen yet
			from := len(acc) - len(marker) + 1
			if from < 0 {
				from = 0
			}
			acc = append(acc, buf[:n]...)
			if bytes.Contains(acc[from:], marker) {
				c.log().Debugw("found prompt", "Bytes", len(acc))
				return string(acc), nil
			}
		}
		if err != nil {
			return string(acc), c.readFailed(string(acc), err)
		}
	}
}

// readFailed decides whether a read error means the child is gone.
// A short read is never taken as an exit, only a read error is, and only when the process exit is observed or the stream hit EOF.
func (c *Channel) readFailed(partial string, err error) error {
	exited := c.waitExited()
	c.log().Debugw("read from child failed", "Error", err, "Exited", exited, "PartialBytes", len(partial))
	if exited || errors.Is(err, io.EOF) {
		return &ChildExitedError{Output: partial, ExitCode: -1, Err: fmt.Errorf("reading response: %w", err)}
	}
	return fmt.Errorf("reading response: %w", err)
}

func (c *Channel) waitExited() bool {
	if c.Exited == nil {
		return false
	}
	timer := time.NewTimer(exitGrace)
	defer timer.Stop()
	select {
	case <-c.Exited:
		return true
	case <-timer.C:
		return false
	}
}
