package shared

import (
	"context"
	"fmt"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// SpotifyScopes covers reading the library and rewriting playlist contents.
var SpotifyScopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserFollowRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// OAuthConfig builds the [oauth2.Config] for the Spotify accounts service.
func OAuthConfig(c SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// NewTokenSource returns the bearer token supplier for API requests.
//
// With a refresh token and client credentials the source renews the access
// token before it expires. Otherwise the configured access token is used as-is.
func NewTokenSource(ctx context.Context, c SpotifyConfig) (oauth2.TokenSource, error) {
	if c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != "" {
		// A stored access token has no known expiry, so the first request refreshes.
		tok := &oauth2.Token{RefreshToken: c.RefreshToken}
		return oauth2.ReuseTokenSource(nil, OAuthConfig(c).TokenSource(ctx, tok)), nil
	}
	if c.AccessToken == "" {
		return nil, fmt.Errorf("%w: spotify access token", ErrMissingCredentials)
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"}), nil
}
