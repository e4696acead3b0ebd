package bridge

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// chunkReader returns one chunk per Read, then err.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(b []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(b, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

type errWriter struct{ err error }

func (w *errWriter) Write(b []byte) (int, error) { return 0, w.err }

// callCounter counts calls to Read and Write.
type callCounter struct {
	mu     sync.Mutex
	reads  int
	writes int
}

func (c *callCounter) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return 0, io.EOF
}

func (c *callCounter) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return len(b), nil
}

func (c *callCounter) calls() (reads, writes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads, c.writes
}

func TestChannelAwait(t *testing.T) {
	cases := []struct {
		name      string
		chunks    []string
		chunkSize int
		exp       string
	}{
		{
			name:   "marker in one read",
			chunks: []string{"clicked region 1\nNext OID touched?"},
			exp:    "clicked region 1\nNext OID touched?",
		},
		{
			name:   "marker split across reads",
			chunks: []string{"clicked region 1\nNext O", "ID touched?"},
			exp:    "clicked region 1\nNext OID touched?",
		},
		{
			name:   "marker split into many reads",
			chunks: []string{"clicked", " region 1\n", "N", "ext OID t", "ouched", "?"},
			exp:    "clicked region 1\nNext OID touched?",
		},
		{
			name:      "trailing bytes in the same read",
			chunks:    []string{"clicked region 1\nNext OID touched? "},
			chunkSize: 64,
			exp:       "clicked region 1\nNext OID touched? ",
		},
		{
			name:      "chunk size smaller than the marker",
			chunks:    []string{"clicked region 1\nNext OID touched?"},
			chunkSize: 2,
			exp:       "clicked region 1\nNext OID touched?",
		},
		{
			name:   "only the marker",
			chunks: []string{"Next OID touched?"},
			exp:    "Next OID touched?",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ch := &Channel{
				Out:       &chunkReader{chunks: c.chunks, err: io.EOF},
				Marker:    DefaultPromptMarker,
				ChunkSize: c.chunkSize,
				Log:       zaptest.NewLogger(t).Sugar(),
			}
			resp, err := ch.Await()
			require.NoError(t, err)
			assert.Equal(t, c.exp, resp)
			assert.Equal(t, 1, strings.Count(resp, DefaultPromptMarker))
		})
	}
}

func TestChannelAwaitOneByteReads(t *testing.T) {
	ch := &Channel{
		Out:    iotest.OneByteReader(strings.NewReader("banner\nNext OID touched?")),
		Marker: DefaultPromptMarker,
	}
	resp, err := ch.Await()
	require.NoError(t, err)
	assert.Equal(t, "banner\nNext OID touched?", resp)
}

func TestChannelAwaitReadEndsAtMarker(t *testing.T) {
	// the default read size of len(marker) splits this chunk right after the marker
	out := &chunkReader{chunks: []string{"clicked region 1\nNext OID touched? "}, err: io.EOF}
	ch := &Channel{Out: out, Marker: DefaultPromptMarker}

	resp, err := ch.Await()
	require.NoError(t, err)
	assert.Equal(t, "clicked region 1\nNext OID touched?", resp)
	assert.Equal(t, []string{" "}, out.chunks)
}

func TestChannelAwaitLeavesNextResponseUnread(t *testing.T) {
	out := &chunkReader{
		chunks: []string{"first\nNext OID touched?", "second\nNext OID touched?"},
		err:    io.EOF,
	}
	ch := &Channel{Out: out, Marker: DefaultPromptMarker}

	resp, err := ch.Await()
	require.NoError(t, err)
	assert.Equal(t, "first\nNext OID touched?", resp)

	resp, err = ch.Await()
	require.NoError(t, err)
	assert.Equal(t, "second\nNext OID touched?", resp)
}

func TestChannelAwaitEOF(t *testing.T) {
	exited := make(chan struct{})
	close(exited)
	ch := &Channel{
		Out:    &chunkReader{chunks: []string{"clicked reg"}, err: io.EOF},
		Marker: DefaultPromptMarker,
		Exited: exited,
	}
	resp, err := ch.Await()

	var exitedErr *ChildExitedError
	require.ErrorAs(t, err, &exitedErr)
	assert.Equal(t, "clicked reg", exitedErr.Output)
	assert.Equal(t, "clicked reg", resp)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChannelAwaitReadErrorWithoutExit(t *testing.T) {
	boom := errors.New("boom")
	ch := &Channel{
		Out:    &chunkReader{err: boom},
		Marker: DefaultPromptMarker,
		Exited: make(chan struct{}),
	}
	_, err := ch.Await()
	require.ErrorIs(t, err, boom)

	var exitedErr *ChildExitedError
	assert.False(t, errors.As(err, &exitedErr))
}

func TestChannelAwaitEmptyMarker(t *testing.T) {
	ch := &Channel{Out: strings.NewReader("x")}
	_, err := ch.Await()
	require.Error(t, err)
}

func TestChannelSendAndAwait(t *testing.T) {
	in := &bytes.Buffer{}
	ch := &Channel{
		In:     in,
		Out:    &chunkReader{chunks: []string{"clicked region 1\nNext OID touched?"}, err: io.EOF},
		Marker: DefaultPromptMarker,
	}
	resp, err := ch.SendAndAwait("1\n")
	require.NoError(t, err)
	assert.Equal(t, "1\n", in.String())
	assert.Equal(t, "clicked region 1\nNext OID touched?", resp)
}

func TestChannelSendAndAwaitWriteError(t *testing.T) {
	exited := make(chan struct{})
	close(exited)
	ch := &Channel{
		In:     &errWriter{err: errors.New("broken pipe")},
		Out:    strings.NewReader(""),
		Marker: DefaultPromptMarker,
		Exited: exited,
	}
	_, err := ch.SendAndAwait("1\n")
	var exitedErr *ChildExitedError
	require.ErrorAs(t, err, &exitedErr)
}
