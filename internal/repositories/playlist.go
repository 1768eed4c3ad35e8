package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/samber/lo"
)

const playlistColumns = `id, spotify_id, name, description, public, collaborative, owner_id, owner_name,
	snapshot_id, total_tracks, uri, href, external_url, created_at, updated_at`

// PlaylistRepository upserts playlists and maintains their ordered track links.
type PlaylistRepository struct {
	db DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

func playlistFromRecord(rec models.Record) *models.Playlist {
	owner := rec.Map("owner")
	return &models.Playlist{
		SpotifyID:     rec.ID(),
		Name:          rec.String("name"),
		Description:   rec.OptString("description"),
		Public:        rec.BoolOr("public", true),
		Collaborative: rec.BoolOr("collaborative", false),
		OwnerID:       owner.OptString("id"),
		OwnerName:     owner.OptString("display_name"),
		SnapshotID:    rec.OptString("snapshot_id"),
		TotalTracks:   rec.Map("tracks").IntOr("total", 0),
		URI:           rec.OptString("uri"),
		Href:          rec.OptString("href"),
		ExternalURL:   rec.Map("external_urls").OptString("spotify"),
	}
}

// CreateOrUpdate inserts the playlist or updates the row with the same remote id.
func (r *PlaylistRepository) CreateOrUpdate(ctx context.Context, rec models.Record) (*models.Playlist, error) {
	playlist := playlistFromRecord(rec)
	if err := playlist.Validate(); err != nil {
		return nil, fmt.Errorf("%w: playlist %q: %v", shared.ErrInvalidInput, playlist.SpotifyID, err)
	}

	query := `
		INSERT INTO playlists (spotify_id, name, description, public, collaborative, owner_id, owner_name,
			snapshot_id, total_tracks, uri, href, external_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			public = excluded.public,
			collaborative = excluded.collaborative,
			owner_id = excluded.owner_id,
			owner_name = excluded.owner_name,
			snapshot_id = excluded.snapshot_id,
			total_tracks = excluded.total_tracks,
			uri = excluded.uri,
			href = excluded.href,
			external_url = excluded.external_url,
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		playlist.SpotifyID,
		playlist.Name,
		nullable(playlist.Description),
		playlist.Public,
		playlist.Collaborative,
		nullable(playlist.OwnerID),
		nullable(playlist.OwnerName),
		nullable(playlist.SnapshotID),
		playlist.TotalTracks,
		nullable(playlist.URI),
		nullable(playlist.Href),
		nullable(playlist.ExternalURL),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert playlist %s: %w", playlist.SpotifyID, err)
	}

	return r.Get(ctx, id)
}

// Get retrieves a playlist by local id.
func (r *PlaylistRepository) Get(ctx context.Context, id int64) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySpotifyID retrieves a playlist by remote id.
func (r *PlaylistRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, spotifyID))
}

// List retrieves all playlists ordered by name.
func (r *PlaylistRepository) List(ctx context.Context) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// UpdateSnapshot records the snapshot acknowledged by the last remote write.
func (r *PlaylistRepository) UpdateSnapshot(ctx context.Context, id int64, snapshotID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE playlists SET snapshot_id = ?, updated_at = ? WHERE id = ?`, snapshotID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update playlist snapshot: %w", err)
	}
	return nil
}

// SyncTracks makes the playlist's track links equal positions, a map of local
// track id to 0-based position. Links not in the map are removed, new ones are
// inserted and kept ones get their new position, all in one transaction.
func (r *PlaylistRepository) SyncTracks(ctx context.Context, playlistID int64, positions map[int64]int) error {
	keep, err := json.Marshal(lo.Keys(positions))
	if err != nil {
		return fmt.Errorf("failed to encode track ids: %w", err)
	}

	return inTx(ctx, r.db, func(tx DBTX) error {
		del := `DELETE FROM playlist_track WHERE playlist_id = ? AND track_id NOT IN (SELECT value FROM json_each(?))`
		if _, err := tx.ExecContext(ctx, del, playlistID, string(keep)); err != nil {
			return fmt.Errorf("failed to detach playlist tracks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO playlist_track (playlist_id, track_id, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(playlist_id, track_id) DO UPDATE SET
				position = excluded.position,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare playlist track upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for trackID, position := range positions {
			if _, err := stmt.ExecContext(ctx, playlistID, trackID, position, now, now); err != nil {
				return fmt.Errorf("failed to link track %d: %w", trackID, err)
			}
		}
		return nil
	})
}

// Tracks returns the playlist's tracks ordered by position.
func (r *PlaylistRepository) Tracks(ctx context.Context, playlistID int64) ([]models.PlaylistTrack, error) {
	query := `
		SELECT pt.position, t.id, t.spotify_id, t.name, t.duration_ms, t.explicit, t.disc_number, t.track_number,
			t.popularity, t.preview_url, t.uri, t.href, t.external_url, t.is_local, t.is_interesting,
			t.available_markets, t.created_at, t.updated_at
		FROM playlist_track pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.PlaylistTrack
	for rows.Next() {
		var position int
		track, err := scanTrack(positionScanner{rows: rows, position: &position})
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, models.PlaylistTrack{Track: *track, Position: position})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// TrackURIs returns the canonical URIs of the playlist's tracks in position order.
func (r *PlaylistRepository) TrackURIs(ctx context.Context, playlistID int64) ([]string, error) {
	tracks, err := r.Tracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return lo.Map(tracks, func(pt models.PlaylistTrack, _ int) string {
		return pt.Track.CanonicalURI()
	}), nil
}

// TrackCount returns the number of tracks linked to the playlist.
func (r *PlaylistRepository) TrackCount(ctx context.Context, playlistID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlist_track WHERE playlist_id = ?`, playlistID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count playlist tracks: %w", err)
	}
	return count, nil
}

// positionScanner reads the leading position column before the track columns.
type positionScanner struct {
	rows     *sql.Rows
	position *int
}

func (p positionScanner) Scan(dest ...any) error {
	return p.rows.Scan(append([]any{p.position}, dest...)...)
}

func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.Playlist, error) {
	playlist, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPlaylistNotFound
	}
	return playlist, err
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var (
		playlist    models.Playlist
		description sql.NullString
		ownerID     sql.NullString
		ownerName   sql.NullString
		snapshotID  sql.NullString
		uri         sql.NullString
		href        sql.NullString
		externalURL sql.NullString
	)

	err := s.Scan(&playlist.ID, &playlist.SpotifyID, &playlist.Name, &description, &playlist.Public,
		&playlist.Collaborative, &ownerID, &ownerName, &snapshotID, &playlist.TotalTracks,
		&uri, &href, &externalURL, &playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist.Description = strPtr(description)
	playlist.OwnerID = strPtr(ownerID)
	playlist.OwnerName = strPtr(ownerName)
	playlist.SnapshotID = strPtr(snapshotID)
	playlist.URI = strPtr(uri)
	playlist.Href = strPtr(href)
	playlist.ExternalURL = strPtr(externalURL)
	return &playlist, nil
}
