// Spotify Web API implementation of the catalog interfaces
//
// Response shapes follow https://developer.spotify.com/documentation/web-api/reference/

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/oauth2"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	playlistPageSize    = 100
	libraryPageSize     = 50
	maxTracksPerRequest = 100
	defaultTimeout      = 30 * time.Second

	playlistTrackFields = "items(track(id,name,duration_ms,explicit,popularity,uri,href,external_urls,artists,album,is_local,disc_number,track_number,preview_url)),next"
)

// ClientOpts configures a [SpotifyClient]. Zero values fall back to defaults.
type ClientOpts struct {
	BaseURL          string
	Timeout          time.Duration
	TokenSource      oauth2.TokenSource // nil sends unauthenticated requests
	Transport        http.RoundTripper  // innermost transport, defaults to [http.DefaultTransport]
	Middleware       []Middleware       // extra layers between logging and auth
	Logger           *log.Logger
	PlaylistPageSize int
	ChunkSize        int
}

// SpotifyClient talks to the Spotify Web API.
//
// Authentication, logging and error translation are transport middleware; the
// client itself only builds requests and decodes responses. It never retries.
type SpotifyClient struct {
	baseURL          string
	httpClient       *http.Client
	logger           *log.Logger
	playlistPageSize int
	chunkSize        int
}

// NewSpotifyClient creates a client from opts.
func NewSpotifyClient(opts ClientOpts) *SpotifyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.PlaylistPageSize <= 0 || opts.PlaylistPageSize > playlistPageSize {
		opts.PlaylistPageSize = playlistPageSize
	}
	if opts.ChunkSize <= 0 || opts.ChunkSize > maxTracksPerRequest {
		opts.ChunkSize = maxTracksPerRequest
	}

	mws := []Middleware{RequestLogger(opts.Logger)}
	mws = append(mws, opts.Middleware...)
	if opts.TokenSource != nil {
		mws = append(mws, BearerAuth(opts.TokenSource))
	}
	mws = append(mws, TranslateErrors())

	return &SpotifyClient{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: Chain(opts.Transport, mws...),
		},
		logger:           opts.Logger,
		playlistPageSize: opts.PlaylistPageSize,
		chunkSize:        opts.ChunkSize,
	}
}

// doRequest performs a request against the API and decodes a JSON response into result.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func pageQuery(limit, offset int) url.Values {
	return url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
}

// PlaylistTracksPage fetches one page of playlist items.
func (c *SpotifyClient) PlaylistTracksPage(ctx context.Context, playlistID string, limit, offset int) (*Page, error) {
	query := pageQuery(limit, offset)
	query.Set("fields", playlistTrackFields)

	var page Page
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := c.doRequest(ctx, http.MethodGet, endpoint, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListPlaylistTracks returns every track of a playlist in remote order.
//
// Items whose track is missing or has no id (removed or local-only entries) are skipped.
func (c *SpotifyClient) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Record, error) {
	tracks := []models.Record{}
	offset := 0

	for {
		page, err := c.PlaylistTracksPage(ctx, playlistID, c.playlistPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list tracks of playlist %s: %w", playlistID, err)
		}

		for _, item := range page.Items {
			track := item.Map("track")
			if track == nil || track.ID() == "" {
				continue
			}
			tracks = append(tracks, track)
		}

		if !page.HasNext() {
			break
		}
		offset += c.playlistPageSize
	}

	return tracks, nil
}

// ReplacePlaylistTracks replaces the playlist contents with uris in order.
//
// The first chunk of up to 100 URIs replaces the contents and the remaining
// chunks are appended. An empty list clears the playlist. The returned snapshot
// is the one acknowledging the replace. A failure after the replace returns a
// [*PartialPushError] together with that snapshot.
func (c *SpotifyClient) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) (*Snapshot, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	if len(uris) == 0 {
		var snap Snapshot
		if err := c.doRequest(ctx, http.MethodPut, endpoint, nil, map[string]any{"uris": []string{}}, &snap); err != nil {
			return nil, fmt.Errorf("failed to clear playlist %s: %w", playlistID, err)
		}
		return &snap, nil
	}

	chunks := lo.Chunk(uris, c.chunkSize)

	var first Snapshot
	if err := c.doRequest(ctx, http.MethodPut, endpoint, nil, map[string]any{"uris": chunks[0]}, &first); err != nil {
		return nil, fmt.Errorf("failed to replace tracks of playlist %s: %w", playlistID, err)
	}

	committed := len(chunks[0])
	for _, chunk := range chunks[1:] {
		if err := c.doRequest(ctx, http.MethodPost, endpoint, nil, map[string]any{"uris": chunk}, nil); err != nil {
			return &first, &PartialPushError{Committed: committed, Total: len(uris), Err: err}
		}
		committed += len(chunk)
	}

	return &first, nil
}

// UpdatePlaylistDetails changes a playlist's name, description and visibility.
func (c *SpotifyClient) UpdatePlaylistDetails(ctx context.Context, playlistID string, details map[string]any) error {
	if len(details) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	if err := c.doRequest(ctx, http.MethodPut, endpoint, nil, details, nil); err != nil {
		return fmt.Errorf("failed to update playlist %s: %w", playlistID, err)
	}
	return nil
}

// SearchTracks runs a track search and returns the first page of matches.
func (c *SpotifyClient) SearchTracks(ctx context.Context, query string, limit int) ([]models.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	params := pageQuery(limit, 0)
	params.Set("q", query)
	params.Set("type", "track")

	var response struct {
		Tracks Page `json:"tracks"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/search", params, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}

	results := make([]models.Record, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		if item != nil {
			results = append(results, item)
		}
	}
	return results, nil
}

func clampLibraryLimit(limit int) int {
	if limit <= 0 || limit > libraryPageSize {
		return libraryPageSize
	}
	return limit
}

func (c *SpotifyClient) libraryPage(ctx context.Context, endpoint string, limit, offset int) (*Page, error) {
	var page Page
	if err := c.doRequest(ctx, http.MethodGet, endpoint, pageQuery(clampLibraryLimit(limit), offset), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SavedTracks retrieves a page of the user's saved tracks. Items wrap the track under "track".
func (c *SpotifyClient) SavedTracks(ctx context.Context, limit, offset int) (*Page, error) {
	return c.libraryPage(ctx, "/me/tracks", limit, offset)
}

// SavedAlbums retrieves a page of the user's saved albums. Items wrap the album under "album".
func (c *SpotifyClient) SavedAlbums(ctx context.Context, limit, offset int) (*Page, error) {
	return c.libraryPage(ctx, "/me/albums", limit, offset)
}

// UserPlaylists retrieves a page of the current user's playlists.
func (c *SpotifyClient) UserPlaylists(ctx context.Context, limit, offset int) (*Page, error) {
	return c.libraryPage(ctx, "/me/playlists", limit, offset)
}

// FollowedArtists retrieves a page of followed artists. The listing is cursor
// paged: pass the previous page's Cursors.After to continue.
func (c *SpotifyClient) FollowedArtists(ctx context.Context, limit int, after string) (*Page, error) {
	query := url.Values{
		"type":  {"artist"},
		"limit": {strconv.Itoa(clampLibraryLimit(limit))},
	}
	if after != "" {
		query.Set("after", after)
	}

	var response struct {
		Artists Page `json:"artists"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/me/following", query, nil, &response); err != nil {
		return nil, err
	}
	return &response.Artists, nil
}
