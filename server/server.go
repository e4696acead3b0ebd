package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/julienschmidt/httprouter"
	"github.com/ttsim/ttsim/resources"
	"go.uber.org/zap"
)

// Server is the HTTP front of a session. It serves the surface document and its assets, and forwards
// POST /play bodies to the session.
type Server struct {
	log *zap.SugaredLogger

	player  Player
	svgPath string
	// roots are searched in order for static files, first match wins
	roots []fs.FS

	listenAddr      string
	maxCommandBytes int64

	httpServer *http.Server
}

type Option func(s *Server)

func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// WithLogger sets the logger. Passing nil keeps the current one.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l == nil {
			return
		}
		s.log = l.Named("server").Sugar()
	}
}

// WithResourceRoot replaces the packaged resources with root. The directory of the surface document is still searched after it.
func WithResourceRoot(root fs.FS) Option {
	return func(s *Server) {
		s.roots[0] = root
	}
}

// WithMaxCommandBytes limits the size of a single command.
func WithMaxCommandBytes(n int64) Option {
	return func(s *Server) {
		s.maxCommandBytes = n
	}
}

// New builds a server for player, showing the SVG document at svgPath.
func New(player Player, svgPath string, opts ...Option) *Server {
	s := &Server{
		log:             zap.NewNop().Sugar(),
		player:          player,
		svgPath:         svgPath,
		roots:           []fs.FS{resources.FS(), os.DirFS(filepath.Dir(svgPath))},
		listenAddr:      "localhost:8000",
		maxCommandBytes: 64 * 1024,
	}
	for _, o := range opts {
		o(s)
	}
	s.httpServer = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/", s.index)
	router.HEAD("/", s.index)
	router.GET("/config.json", s.config)
	router.HEAD("/config.json", s.config)
	router.GET("/session", s.session)
	router.HEAD("/session", s.session)
	router.GET("/ws", s.playWS)
	router.POST("/play", s.play)
	// the surface document and everything else are looked up by name
	router.NotFound = http.HandlerFunc(s.static)
	return router
}

// Run listens on the configured address and serves until Stop is called.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}
	s.log.Infof("listening on http://%s/", listener.Addr())

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) session(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	status := SessionStatus{
		State:  s.player.State().String(),
		PID:    s.player.PID(),
		Banner: s.player.Banner(),
	}
	b, err := json.Marshal(status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

// play sends the raw request body to the session as one command.
func (s *Server) play(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxCommandBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, fmt.Sprintf("command longer than %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := s.player.Play(string(body))
	if err != nil {
		s.log.Infow("play failed", "ID", t.ID, "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Transcript-Id", t.ID)
	w.WriteHeader(http.StatusOK)
	_, err = io.WriteString(w, t.String())
	if err != nil {
		s.log.Debugf("error sending transcript: %s", err)
	}
}
