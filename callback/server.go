// Package callback implements the short-lived HTTP listener that receives the
// OAuth provider's redirect on the local machine.
package callback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Server limits
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// Handler serves one registered path. It receives the fully buffered request
// body and the parsed query parameters, and must write the whole response
// itself. For a repeated key params.Get returns the first value; all values
// are available in order as params[key].
type Handler func(w http.ResponseWriter, r *http.Request, body string, params url.Values)

// Options configures a Server.
type Options struct {
	// Port to bind. Zero asks the kernel for a free port, see Addr.
	Port int
	// Hostname to bind. Empty binds all interfaces.
	Hostname string
}

// Server is a single-port listener that dispatches on exact request paths.
// It is meant to be created, used and discarded per authorization attempt.
type Server struct {
	opts Options

	mu       sync.RWMutex
	handlers map[string]Handler
	server   *http.Server
	listener net.Listener
}

// New creates a Server. Nothing is bound until Listen is called.
func New(opts Options) *Server {
	return &Server{
		opts:     opts,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for path, replacing any handler already registered there.
func (s *Server) Handle(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// ClearHandlers removes every registered handler.
func (s *Server) ClearHandlers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[string]Handler)
}

// Listen binds the socket and starts serving in the background. It returns
// as soon as the port is bound.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("callback server already listening")
	}

	addr := net.JoinHostPort(s.opts.Hostname, strconv.Itoa(s.opts.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.listener = listener
	s.server = server

	go func() {
		_ = server.Serve(listener)
	}()

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting connections and releases the port. In-flight
// responses get a short grace period to flush. Calling Close before Listen
// or more than once is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		// Grace period expired; drop whatever is still open.
		return server.Close()
	}
	return nil
}

// ServeHTTP dispatches r to the handler registered for its exact path.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL == nil || r.URL.Path == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[r.URL.Path]
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	handler(w, r, string(body), r.URL.Query())
}
