// Package server is the browser surface of the explorer: an embedded page,
// a small JSON/SVG API over one explorer session, a pass-through to the
// analysis backend and a server-sent events channel that tells open pages
// to refresh.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/loader"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Session explorer.Options
	// Backend is the analysis backend client. When nil the load, ask and
	// images endpoints answer 503.
	Backend *loader.Client
	Title   string
	// Logger receives warnings. Defaults to the standard logger.
	Logger *log.Logger
}

// Server holds one explorer session shared by every connected page.
type Server struct {
	mu        sync.Mutex
	session   *explorer.Session
	analysis  string // markdown
	objective string

	backend *loader.Client
	seq     loader.Sequencer
	hub     *Hub
	title   string
	logger  *log.Logger
}

// New creates a server with an empty session.
func New(opts Options) *Server {
	title := opts.Title
	if title == "" {
		title = "treescope"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		session: explorer.New(opts.Session),
		backend: opts.Backend,
		hub:     NewHub(),
		title:   title,
		logger:  logger,
	}
}

// Load replaces the tree with the given payload and notifies open pages.
// A malformed payload leaves the current tree in place.
func (s *Server) Load(data []byte) error {
	s.mu.Lock()
	_, err := s.session.Load(data)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hub.Broadcast(EventFrame)
	return nil
}

// SetAnalysis replaces the markdown analysis shown next to the tree.
func (s *Server) SetAnalysis(markdown, objective string) {
	s.mu.Lock()
	s.analysis, s.objective = markdown, objective
	s.mu.Unlock()
	s.hub.Broadcast(EventAnalysis)
}

// Hub returns the SSE hub.
func (s *Server) Hub() *Hub { return s.hub }

// withSession runs fn with the session locked.
func (s *Server) withSession(fn func(*explorer.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.session)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, when non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if ready != nil {
		ready(ln.Addr())
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	debug.Log("server: listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// SSE streams never finish on their own.
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
