package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ttsim/ttsim/bridge"
	"github.com/ttsim/ttsim/internal/files"
	"github.com/ttsim/ttsim/server"
	"github.com/ttsim/ttsim/svgpatterns"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "ttsim",
		Usage: "simulate a tiptoi pen on an SVG page in the browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "One of [debug,info,warn,error].",
				Value:   "info",
				EnvVars: []string{"TTSIM_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			playCommand,
			injectPatternsCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(ctx *cli.Context) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

var serveCommand = &cli.Command{
	Name:      "serve",
	Usage:     "serve SVG_FILE and play the clicked OIDs with GME_FILE",
	ArgsUsage: "SVG_FILE GME_FILE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen-addr",
			Usage:   "The address for the HTTP server to listen on.",
			Value:   "localhost:8000",
			EnvVars: []string{"TTSIM_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:    "tttool",
			Usage:   "The tttool executable, either a path or a name to look up in PATH.",
			Value:   "tttool",
			EnvVars: []string{"TTSIM_TTTOOL"},
		},
		&cli.StringFlag{
			Name:    "prompt",
			Usage:   "The prompt tttool prints when it waits for the next OID.",
			Value:   bridge.DefaultPromptMarker,
			EnvVars: []string{"TTSIM_PROMPT"},
		},
		&cli.StringFlag{
			Name:    "resource-dir",
			Usage:   "Serve the index template and assets from this directory instead of the packaged ones.",
			EnvVars: []string{"TTSIM_RESOURCE_DIR"},
		},
		&cli.DurationFlag{
			Name:  "stop-timeout",
			Usage: "How long to wait for tttool to exit on shutdown before killing it.",
			Value: 3 * time.Second,
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Size of a single read from tttool's output.",
			Value: bridge.DefaultChunkSize,
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.Exit("expected SVG_FILE and GME_FILE", 2)
		}
		svgFile := ctx.Args().Get(0)
		gmeFile := ctx.Args().Get(1)

		logger, err := newLogger(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync()
		log := logger.Named("ttsim").Sugar()

		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting wd: %w", err)
		}
		tttool, err := files.ResolveExecutable(ctx.String("tttool"), wd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(svgFile); err != nil {
			return fmt.Errorf("SVG file: %w", err)
		}

		session := bridge.NewSession(
			tttool,
			[]string{"play", gmeFile},
			bridge.WithLogger(logger),
			bridge.WithPromptMarker(ctx.String("prompt")),
			bridge.WithChunkSize(ctx.Int("chunk-size")),
			bridge.WithStopTimeout(ctx.Duration("stop-timeout")),
		)
		log.Infow("starting tttool", "Path", tttool, "GME", gmeFile)
		err = session.Start()
		if err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		defer session.Stop()

		opts := []server.Option{
			server.WithLogger(logger),
			server.WithListenAddr(ctx.String("listen-addr")),
		}
		if dir := ctx.String("resource-dir"); dir != "" {
			opts = append(opts, server.WithResourceRoot(os.DirFS(dir)))
		}
		srv := server.New(session, svgFile, opts...)

		sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		group, groupCtx := errgroup.WithContext(sigCtx)
		group.Go(srv.Run)
		group.Go(func() error {
			<-groupCtx.Done()
			log.Info("closing...")
			if err := srv.Stop(); err != nil {
				log.Debugf("error closing HTTP server: %s", err)
			}
			return session.Stop()
		})
		log.Infof("serving %s, press Ctrl-C to quit", filepath.Base(svgFile))
		return group.Wait()
	},
}

var playCommand = &cli.Command{
	Name:      "play",
	Usage:     "send OIDs to a running ttsim server and print the transcripts",
	ArgsUsage: "COMMAND...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "The base URL of the server.",
			Value:   "http://localhost:8000",
			EnvVars: []string{"TTSIM_ADDR"},
		},
		&cli.BoolFlag{
			Name:  "ws",
			Usage: "Send all commands over one WebSocket instead of one request each.",
		},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "How long to wait for the server to come up.",
			Value: 10 * time.Second,
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return cli.Exit("expected at least one COMMAND", 2)
		}
		logger, err := newLogger(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync()

		client := server.NewClient(ctx.String("addr"), server.WithClientLogger(logger))

		waitCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration("wait"))
		defer cancel()
		err = client.WaitForServer(waitCtx)
		if err != nil {
			return fmt.Errorf("waiting for server: %w", err)
		}

		var commands []string
		for _, arg := range ctx.Args().Slice() {
			if !strings.HasSuffix(arg, "\n") {
				arg += "\n"
			}
			commands = append(commands, arg)
		}

		if !ctx.Bool("ws") {
			for _, c := range commands {
				transcript, err := client.Play(ctx.Context, c)
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, transcript)
			}
			return nil
		}

		stream, err := client.Stream(ctx.Context)
		if err != nil {
			return err
		}
		defer stream.Close()
		for _, c := range commands {
			resp, err := stream.Play(ctx.Context, c)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, resp.Transcript())
			if resp.Error != "" {
				return fmt.Errorf("playing %q: %s", strings.TrimSpace(c), resp.Error)
			}
		}
		return nil
	},
}

var injectPatternsCommand = &cli.Command{
	Name:      "inject-patterns",
	Usage:     "copy the OID patterns of PATTERN_FILE into TARGET_FILE",
	ArgsUsage: "PATTERN_FILE TARGET_FILE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Usage: "Write the result here instead of overwriting TARGET_FILE.",
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.Exit("expected PATTERN_FILE and TARGET_FILE", 2)
		}
		patternFile := ctx.Args().Get(0)
		targetFile := ctx.Args().Get(1)
		outFile := ctx.String("output")
		if outFile == "" {
			outFile = targetFile
		}

		logger, err := newLogger(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync()
		log := logger.Named("inject").Sugar()

		log.Infof("injecting patterns from %q into %q", patternFile, targetFile)
		patterns, err := svgpatterns.Inject(patternFile, targetFile, outFile)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(patterns))
		for _, p := range patterns {
			ids = append(ids, p.ID)
		}
		log.Infow("wrote patterns", "File", outFile, "Patterns", ids)
		return nil
	},
}
