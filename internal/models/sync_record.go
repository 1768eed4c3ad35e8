package models

import "slices"

// SyncRecord is the unit of work that flows through the pipeline.
//
// It is an immutable value: stages derive new records with [SyncRecord.WithTracks]
// and never change the one they were given.
type SyncRecord struct {
	playlistID int64
	spotifyID  string
	tracks     []Record
	metadata   map[string]any
}

// NewSyncRecord copies tracks and metadata into a new record.
// playlistID is the local playlist id, or zero for catalog records.
func NewSyncRecord(playlistID int64, spotifyID string, tracks []Record, metadata map[string]any) SyncRecord {
	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return SyncRecord{
		playlistID: playlistID,
		spotifyID:  spotifyID,
		tracks:     slices.Clone(tracks),
		metadata:   meta,
	}
}

func (r SyncRecord) PlaylistID() int64 { return r.playlistID }
func (r SyncRecord) SpotifyID() string { return r.spotifyID }
func (r SyncRecord) Len() int          { return len(r.tracks) }

// Tracks returns a copy of the ordered track list.
func (r SyncRecord) Tracks() []Record {
	return slices.Clone(r.tracks)
}

// Metadata returns the value stored under key.
func (r SyncRecord) Metadata(key string) (any, bool) {
	v, ok := r.metadata[key]
	return v, ok
}

// WithTracks returns a copy of r holding tracks in place of the current list.
func (r SyncRecord) WithTracks(tracks []Record) SyncRecord {
	return SyncRecord{
		playlistID: r.playlistID,
		spotifyID:  r.spotifyID,
		tracks:     slices.Clone(tracks),
		metadata:   r.metadata,
	}
}

// URIs maps the track list to canonical track URIs in order.
func (r SyncRecord) URIs() []string {
	uris := make([]string, len(r.tracks))
	for i, t := range r.tracks {
		uris[i] = t.TrackURI()
	}
	return uris
}

// Payload builds the remote playlist-details body from metadata.
func (r SyncRecord) Payload() map[string]any {
	payload := map[string]any{}
	for _, key := range []string{"name", "description", "public", "collaborative"} {
		if v, ok := r.metadata[key]; ok && v != nil {
			payload[key] = v
		}
	}
	return payload
}
