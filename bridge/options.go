package bridge

import (
	"time"

	"go.uber.org/zap"
)

type config struct {
	log         *zap.SugaredLogger
	marker      string
	chunkSize   int
	stopTimeout time.Duration
	dir         string
	env         []string
}

func defaultConfig() config {
	return config{
		log:         zap.NewNop().Sugar(),
		marker:      DefaultPromptMarker,
		chunkSize:   DefaultChunkSize,
		stopTimeout: 3 * time.Second,
	}
}

type Option func(c *config)

// WithLogger sets the logger. A nil logger keeps the default, which discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l == nil {
			return
		}
		c.log = l.Sugar()
	}
}

// WithPromptMarker sets the prompt that the child prints when it is ready for the next command.
func WithPromptMarker(m string) Option {
	return func(c *config) {
		c.marker = m
	}
}

func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

// WithStopTimeout sets how long Stop waits after SIGTERM before killing the child, and then again after killing it.
func WithStopTimeout(d time.Duration) Option {
	return func(c *config) {
		c.stopTimeout = d
	}
}

func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithEnv adds environment variables, in "KEY=value" form, on top of the current environment.
func WithEnv(env ...string) Option {
	return func(c *config) {
		c.env = append(c.env, env...)
	}
}
