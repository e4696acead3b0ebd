package server

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/julienschmidt/httprouter"
)

// ErrResourceNotFound is returned when no resource root has the requested file.
var ErrResourceNotFound = errors.New("resource not found")

const indexTemplate = "index.html.tmpl"

type indexData struct {
	Title string
	// SVG is inlined verbatim, which is why the index is rendered with text/template
	SVG string
}

func (s *Server) index(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	svg, err := s.readSVG()
	if err != nil {
		s.fail(w, err)
		return
	}
	root, err := s.find(indexTemplate)
	if err != nil {
		s.fail(w, err)
		return
	}
	tmpl, err := template.ParseFS(root, indexTemplate)
	if err != nil {
		s.fail(w, fmt.Errorf("parsing index template: %w", err))
		return
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, indexData{Title: filepath.Base(s.svgPath), SVG: svg})
	if err != nil {
		s.fail(w, fmt.Errorf("rendering index: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) config(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.serveResource(w, r, "config.json")
}

// static serves the surface document by its base name, and anything else from the resource roots.
func (s *Server) static(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == filepath.Base(s.svgPath) {
		s.svg(w, r)
		return
	}
	s.serveResource(w, r, name)
}

func (s *Server) svg(w http.ResponseWriter, r *http.Request) {
	svg, err := s.readSVG()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(svg))
}

// readSVG reads the document on every request so edits show up on reload.
func (s *Server) readSVG() (string, error) {
	b, err := os.ReadFile(s.svgPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, s.svgPath)
	}
	if err != nil {
		return "", fmt.Errorf("reading SVG: %w", err)
	}
	return string(b), nil
}

// serveResource serves name from the resource roots. The index template is only ever served rendered.
func (s *Server) serveResource(w http.ResponseWriter, r *http.Request, name string) {
	if name == indexTemplate {
		s.fail(w, fmt.Errorf("%w: %s", ErrResourceNotFound, name))
		return
	}
	root, err := s.find(name)
	if err != nil {
		s.fail(w, err)
		return
	}
	http.ServeFileFS(w, r, root, name)
}

// find returns the first root containing the regular file name.
func (s *Server) find(name string) (fs.FS, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}
	for _, root := range s.roots {
		info, err := fs.Stat(root, name)
		if err == nil && info.Mode().IsRegular() {
			return root, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrResourceNotFound) {
		s.log.Debugw("not found", "Error", err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Warnw("request failed", "Error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
