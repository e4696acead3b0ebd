package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client talks to a running Server.
type Client struct {
	Logger     *zap.SugaredLogger
	HTTPClient *http.Client

	baseURL                  string
	customizeRetryableClient func(*retryablehttp.Client)
	waitInterval             time.Duration
}

type ClientOption func(c *Client)

func WithClientWaitInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.waitInterval = d
	}
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l == nil {
			return
		}
		c.Logger = l.Named("client").Sugar()
	}
}

func WithCustomizeRetryableClient(f func(r *retryablehttp.Client)) ClientOption {
	return func(c *Client) {
		c.customizeRetryableClient = f
	}
}

type logAdapter struct {
	*zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) { a.Debugf(msg, args...) }

// NewClient builds a client for the server at baseURL, e.g. "http://localhost:8000".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		Logger:       zap.NewNop().Sugar(),
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		waitInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 5
	retryClient.RetryWaitMin = 10 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	// Only transport errors are retried. A 500 from /play means the child is gone, and retrying
	// would not bring it back.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	retryClient.Logger = &logAdapter{SugaredLogger: c.Logger}

	if c.customizeRetryableClient != nil {
		c.customizeRetryableClient(retryClient)
	}

	c.HTTPClient = retryClient.StandardClient()
	return c
}

// Play sends command to the server and returns the transcript.
func (c *Client) Play(ctx context.Context, command string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/play", strings.NewReader(command))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending command over HTTP: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("non-200 HTTP status code %d received when playing: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return string(b), nil
}

// Session returns the status of the server's session.
func (c *Client) Session(ctx context.Context) (*SessionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected session status code %d", resp.StatusCode)
	}

	var status SessionStatus
	err = json.NewDecoder(resp.Body).Decode(&status)
	if err != nil {
		return nil, fmt.Errorf("decoding session status: %w", err)
	}
	return &status, nil
}

// WaitForServer polls the session status until the server answers.
func (c *Client) WaitForServer(ctx context.Context) error {
	ticker := time.NewTicker(c.waitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := c.Session(ctx)
			if err == nil {
				c.Logger.Debugw("server is up", "State", status.State)
				return nil
			}
			c.Logger.Debugf("got session status error: %s", err)
		}
	}
}

// Stream opens a WebSocket to the server for playing commands without a request per command.
func (c *Client) Stream(ctx context.Context) (*Stream, error) {
	u := c.baseURL + "/ws"
	c.Logger.Debugw("dialing WebSocket", "URL", u)
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient:      c.HTTPClient,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing WebSocket conn: %w", err)
	}
	return &Stream{conn: conn, log: c.Logger.Named("stream")}, nil
}

// Stream plays commands over one WebSocket connection. It is not goroutine-safe.
type Stream struct {
	log  *zap.SugaredLogger
	conn *websocket.Conn
}

// Play sends command and waits for its response. A failed command is reported in PlayResponse.Error, not as an error.
func (s *Stream) Play(ctx context.Context, command string) (*PlayResponse, error) {
	err := wsjson.Write(ctx, s.conn, PlayRequest{Command: command})
	if err != nil {
		return nil, fmt.Errorf("writing play request: %w", err)
	}
	var resp PlayResponse
	err = wsjson.Read(ctx, s.conn, &resp)
	if err != nil {
		return nil, fmt.Errorf("reading play response: %w", err)
	}
	s.log.Debugw("played command", "ID", resp.ID, "Error", resp.Error)
	return &resp, nil
}

func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
