package services

import (
	"context"

	"github.com/desertthunder/spotsync/internal/models"
)

// PlaylistReader fetches the full ordered track list of a remote playlist.
type PlaylistReader interface {
	ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Record, error)
}

// PlaylistWriter rewrites the contents and details of a remote playlist.
type PlaylistWriter interface {
	// ReplacePlaylistTracks replaces the playlist with uris, preserving order.
	ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) (*Snapshot, error)

	// UpdatePlaylistDetails changes name, description and visibility.
	UpdatePlaylistDetails(ctx context.Context, playlistID string, details map[string]any) error
}

// TrackSearcher runs a free-text track search.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Record, error)
}

// LibraryReader pages through the current user's library.
type LibraryReader interface {
	SavedTracks(ctx context.Context, limit, offset int) (*Page, error)
	SavedAlbums(ctx context.Context, limit, offset int) (*Page, error)
	FollowedArtists(ctx context.Context, limit int, after string) (*Page, error)
	UserPlaylists(ctx context.Context, limit, offset int) (*Page, error)
}

// Catalog is everything the sync jobs need from the remote service.
type Catalog interface {
	PlaylistReader
	PlaylistWriter
	TrackSearcher
	LibraryReader
}

// Page is one page of a paginated listing. Items stay raw until persisted.
type Page struct {
	Items   []models.Record `json:"items"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	Next    *string         `json:"next"`
	Cursors *Cursors        `json:"cursors,omitempty"`
}

// Cursors carries the position for cursor-paged listings.
type Cursors struct {
	After string `json:"after"`
}

// HasNext reports whether another page follows. Only a null or missing next
// ends the listing; an empty page with a next link is skipped over.
func (p *Page) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// Snapshot acknowledges a playlist write.
type Snapshot struct {
	SnapshotID string `json:"snapshot_id"`
}

var (
	_ PlaylistReader = (*SpotifyClient)(nil)
	_ PlaylistWriter = (*SpotifyClient)(nil)
	_ TrackSearcher  = (*SpotifyClient)(nil)
	_ LibraryReader  = (*SpotifyClient)(nil)
	_ Catalog        = (*SpotifyClient)(nil)
)
