package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the patterns it serves.
type Handler interface {
	http.Handler
	Routes() []string // Routes returns [http.ServeMux] patterns, e.g. "GET /callback"
}

// CallbackServer serves a handler on a local address until shut down.
type CallbackServer struct {
	srv  *http.Server
	ln   net.Listener
	errs chan error
}

// Listen binds addr and starts serving h in the background. The listener is
// open when Listen returns, so callers can hand out the address immediately.
func Listen(addr string, h http.Handler) (*CallbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &CallbackServer{
		srv:  &http.Server{Handler: h},
		ln:   ln,
		errs: make(chan error, 1),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()
	return s, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *CallbackServer) Addr() string {
	return s.ln.Addr().String()
}

// Errors yields a serve failure, then closes once the server stops.
func (s *CallbackServer) Errors() <-chan error {
	return s.errs
}

// Shutdown stops accepting connections and waits for active requests.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// CallbackAddr splits a redirect URI into the address to listen on and the
// callback path.
func CallbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect uri %q: %w", redirectURI, err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return "", "", fmt.Errorf("redirect uri %q must be a local http address", redirectURI)
	}

	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Host, path, nil
}
