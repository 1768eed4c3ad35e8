// Package repositories implements SQLite persistence for the catalog entities.
//
// Every entity is keyed by its remote id. CreateOrUpdate inserts a new row or
// updates the existing one in place, so repeated calls with the same payload are
// idempotent and return the same local id. Absent optional fields are stored as
// NULL while present zero values are kept as zero.
//
// Key Implementations:
//   - [TrackRepository] : tracks plus their artist and album links
//   - [ArtistRepository] : artists; simplified payloads never clear richer stored fields
//   - [AlbumRepository] : albums plus their artist and track links
//   - [PlaylistRepository] : playlists plus ordered track membership
//   - [Store] : groups the repositories over one connection or transaction
//
// Association Sync methods replace the whole related set. Links missing from the
// new set are removed, new ones are inserted and existing ones are kept, all in one
// transaction. Playlist membership also carries a 0-based position that is
// rewritten on every sync.
package repositories
