package services

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/shared"
	"golang.org/x/oauth2"
)

// Middleware wraps a transport. Layers compose in [Chain].
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripFunc adapts a function to [http.RoundTripper].
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base with mws. The first middleware is the outermost layer.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// BearerAuth sets the Authorization header from ts on every request.
func BearerAuth(ts oauth2.TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			tok, err := ts.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
			}
			req = req.Clone(req.Context())
			tok.SetAuthHeader(req)
			return next.RoundTrip(req)
		})
	}
}

// StaticHeaders adds fixed headers to every request.
func StaticHeaders(headers map[string]string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			return next.RoundTrip(req)
		})
	}
}

// RequestLogger logs each request with its status and duration at debug level.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			elapsed := time.Since(start)
			if err != nil {
				logger.Debug("request failed", "method", req.Method, "path", req.URL.Path, "duration", elapsed, "error", err)
				return resp, err
			}
			logger.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration", elapsed)
			return resp, nil
		})
	}
}

// TranslateErrors turns non-2xx responses into [*APIError] and closes their body.
func TranslateErrors() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				defer resp.Body.Close()
				body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
				return nil, newAPIError(req.Method, req.URL.String(), resp.StatusCode, body)
			}
			return resp, nil
		})
	}
}
