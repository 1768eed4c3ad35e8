package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

var (
	errInvalidState    = errors.New("invalid state parameter")
	errCallbackRepeat  = errors.New("callback already processed")
	errMissingAuthCode = errors.New("authorization code missing")
)

type oauthResult struct {
	token *oauth2.Token
	err   error
}

// OAuthHandler completes the authorization code flow on a redirect callback.
// It accepts exactly one callback and exchanges its code for a token.
type OAuthHandler struct {
	config *oauth2.Config
	state  string
	path   string

	result chan oauthResult
	once   sync.Once

	mu  sync.Mutex
	hit bool
}

// NewOAuthHandler creates a handler for callbacks on path. state must be
// unguessable; callbacks carrying any other state are rejected.
func NewOAuthHandler(config *oauth2.Config, state, path string) *OAuthHandler {
	return &OAuthHandler{
		config: config,
		state:  state,
		path:   path,
		result: make(chan oauthResult, 1),
	}
}

// AuthCodeURL returns the consent page URL to open in a browser.
func (h *OAuthHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state)
}

func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, errCallbackRepeat.Error(), http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.send(oauthResult{err: errInvalidState})
		http.Error(w, errInvalidState.Error(), http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s %s", errMissingAuthCode, query.Get("error"), query.Get("error_description"))
		h.send(oauthResult{err: err})
		http.Error(w, "authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.send(oauthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	h.send(oauthResult{token: token})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Authorization complete. You can close this window.")
}

func (h *OAuthHandler) send(result oauthResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Wait blocks until the callback has been handled or ctx ends.
func (h *OAuthHandler) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case res, ok := <-h.result:
		if !ok {
			return nil, errCallbackRepeat
		}
		return res.token, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
}
