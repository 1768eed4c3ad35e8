// package models defines the catalog entities and the records that feed them
package models

import (
	"errors"
	"time"
)

var errMissingSpotifyID = errors.New("spotify id is required")
var errMissingName = errors.New("name is required")

// Entity is implemented by every persisted catalog row.
type Entity interface {
	LocalID() int64   // LocalID returns the autoincrement primary key
	RemoteID() string // RemoteID returns the unique remote identifier
	Validate() error  // Validate checks required fields before a write
}

// Timestamps is embedded by persisted entities.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Track is a persisted track. Nullable columns are pointers.
type Track struct {
	ID               int64    `json:"id"`
	SpotifyID        string   `json:"spotify_id"`
	Name             string   `json:"name"`
	DurationMS       int      `json:"duration_ms"`
	Explicit         bool     `json:"explicit"`
	DiscNumber       int      `json:"disc_number"`
	TrackNumber      *int     `json:"track_number,omitempty"`
	Popularity       *int     `json:"popularity,omitempty"`
	PreviewURL       *string  `json:"preview_url,omitempty"`
	URI              *string  `json:"uri,omitempty"`
	Href             *string  `json:"href,omitempty"`
	ExternalURL      *string  `json:"external_url,omitempty"`
	IsLocal          bool     `json:"is_local"`
	IsInteresting    bool     `json:"is_interesting"`
	AvailableMarkets []string `json:"available_markets,omitempty"`
	Timestamps
}

func (t *Track) LocalID() int64   { return t.ID }
func (t *Track) RemoteID() string { return t.SpotifyID }

func (t *Track) Validate() error {
	if t.SpotifyID == "" {
		return errMissingSpotifyID
	}
	if t.Name == "" {
		return errMissingName
	}
	return nil
}

// CanonicalURI returns the stored URI or the synthesized spotify:track:<id> form.
func (t *Track) CanonicalURI() string {
	if t.URI != nil && *t.URI != "" {
		return *t.URI
	}
	return TrackURI(t.SpotifyID)
}

// Artist is a persisted artist.
type Artist struct {
	ID            int64    `json:"id"`
	SpotifyID     string   `json:"spotify_id"`
	Name          string   `json:"name"`
	Popularity    *int     `json:"popularity,omitempty"`
	Followers     *int     `json:"followers,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	URI           *string  `json:"uri,omitempty"`
	Href          *string  `json:"href,omitempty"`
	ExternalURL   *string  `json:"external_url,omitempty"`
	IsInteresting bool     `json:"is_interesting"`
	Timestamps
}

func (a *Artist) LocalID() int64   { return a.ID }
func (a *Artist) RemoteID() string { return a.SpotifyID }

func (a *Artist) Validate() error {
	if a.SpotifyID == "" {
		return errMissingSpotifyID
	}
	if a.Name == "" {
		return errMissingName
	}
	return nil
}

// Album is a persisted album.
type Album struct {
	ID                   int64    `json:"id"`
	SpotifyID            string   `json:"spotify_id"`
	Name                 string   `json:"name"`
	AlbumType            *string  `json:"album_type,omitempty"`
	ReleaseDate          *string  `json:"release_date,omitempty"`
	ReleaseDatePrecision *string  `json:"release_date_precision,omitempty"`
	TotalTracks          int      `json:"total_tracks"`
	URI                  *string  `json:"uri,omitempty"`
	Href                 *string  `json:"href,omitempty"`
	ExternalURL          *string  `json:"external_url,omitempty"`
	AvailableMarkets     []string `json:"available_markets,omitempty"`
	Timestamps
}

func (a *Album) LocalID() int64   { return a.ID }
func (a *Album) RemoteID() string { return a.SpotifyID }

func (a *Album) Validate() error {
	if a.SpotifyID == "" {
		return errMissingSpotifyID
	}
	if a.Name == "" {
		return errMissingName
	}
	return nil
}

// Playlist is a persisted playlist.
type Playlist struct {
	ID            int64   `json:"id"`
	SpotifyID     string  `json:"spotify_id"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	Public        bool    `json:"public"`
	Collaborative bool    `json:"collaborative"`
	OwnerID       *string `json:"owner_id,omitempty"`
	OwnerName     *string `json:"owner_name,omitempty"`
	SnapshotID    *string `json:"snapshot_id,omitempty"`
	TotalTracks   int     `json:"total_tracks"`
	URI           *string `json:"uri,omitempty"`
	Href          *string `json:"href,omitempty"`
	ExternalURL   *string `json:"external_url,omitempty"`
	Timestamps
}

func (p *Playlist) LocalID() int64   { return p.ID }
func (p *Playlist) RemoteID() string { return p.SpotifyID }

func (p *Playlist) Validate() error {
	if p.SpotifyID == "" {
		return errMissingSpotifyID
	}
	if p.Name == "" {
		return errMissingName
	}
	return nil
}

// SyncRecordFrom seeds a sync record for p with its details as metadata.
func (p *Playlist) SyncRecordFrom(tracks []Record) SyncRecord {
	meta := map[string]any{
		"name":          p.Name,
		"public":        p.Public,
		"collaborative": p.Collaborative,
		"total_tracks":  p.TotalTracks,
	}
	if p.Description != nil {
		meta["description"] = *p.Description
	}
	return NewSyncRecord(p.ID, p.SpotifyID, tracks, meta)
}

// PlaylistTrack is a track together with its position in a playlist.
type PlaylistTrack struct {
	Track    Track `json:"track"`
	Position int   `json:"position"`
}
