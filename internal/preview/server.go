// Package preview serves the built site from the project's dist directory
// on an ephemeral local port.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/desktop"
	"github.com/starford/sitedesk/internal/project"
)

// Sink receives human-readable log lines.
type Sink interface {
	Log(message string)
}

type nopSink struct{}

func (nopSink) Log(string) {}

// Server is a single static file server. Once started it keeps serving the
// dist directory it was started with until Close.
type Server struct {
	host   string
	opener desktop.Opener
	sink   Sink
	logger *slog.Logger

	mu  sync.Mutex
	srv *http.Server
	url string
}

// Option configures a Server.
type Option func(*Server)

// WithHost sets the listen host. The port is always chosen by the OS.
func WithHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithOpener opens the preview URL in a browser after each Start.
func WithOpener(o desktop.Opener) Option {
	return func(s *Server) { s.opener = o }
}

// WithSink routes log lines to sink.
func WithSink(sink Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a stopped Server.
func NewServer(opts ...Option) *Server {
	s := &Server{
		host:   "127.0.0.1",
		sink:   nopSink{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves root/dist. A missing dist fails with
// apperr.ErrBuildFirst. When already running it returns the existing URL and
// alreadyRunning=true.
func (s *Server) Start(root string) (url string, alreadyRunning bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		s.sink.Log("preview server already running: " + s.url)
		s.openBrowser(s.url)
		return s.url, true, nil
	}

	dist := filepath.Join(root, project.DistDir)
	if !isDir(dist) {
		s.sink.Log("dist directory not found, run a build first")
		return "", false, fmt.Errorf("preview: %s: %w", dist, apperr.ErrBuildFirst)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, "0"))
	if err != nil {
		return "", false, fmt.Errorf("preview: listen: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Use(middleware.Recoverer)
	r.Handle("/*", http.FileServer(http.Dir(dist)))

	srv := &http.Server{Handler: r}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("preview: serve failed", slog.String("error", err.Error()))
		}
	}()

	s.srv = srv
	s.url = "http://" + ln.Addr().String()
	s.logger.Info("preview: started", slog.String("url", s.url), slog.String("dist", dist))
	s.sink.Log("preview server started: " + s.url)
	s.openBrowser(s.url)
	return s.url, false, nil
}

// URL returns the address of the running server, or "".
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Close shuts the server down. It is a no-op when not running.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.url = nil, ""
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) openBrowser(url string) {
	if s.opener == nil {
		return
	}
	if err := s.opener.Open(url); err != nil {
		s.logger.Warn("preview: open browser failed", slog.String("error", err.Error()))
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
