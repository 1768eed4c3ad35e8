package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const trackColumns = `id, spotify_id, name, duration_ms, explicit, disc_number, track_number, popularity,
	preview_url, uri, href, external_url, is_local, is_interesting, available_markets, created_at, updated_at`

// TrackRepository upserts tracks and their artist and album links.
type TrackRepository struct {
	db DBTX
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db DBTX) *TrackRepository {
	return &TrackRepository{db: db}
}

// trackFromRecord maps a raw payload, applying the persisted defaults for absent fields.
func trackFromRecord(rec models.Record) *models.Track {
	track := &models.Track{
		SpotifyID:        rec.ID(),
		Name:             rec.String("name"),
		DurationMS:       rec.IntOr("duration_ms", 0),
		Explicit:         rec.BoolOr("explicit", false),
		DiscNumber:       rec.IntOr("disc_number", 1),
		TrackNumber:      rec.OptInt("track_number"),
		Popularity:       rec.OptInt("popularity"),
		PreviewURL:       rec.OptString("preview_url"),
		URI:              rec.OptString("uri"),
		Href:             rec.OptString("href"),
		ExternalURL:      rec.Map("external_urls").OptString("spotify"),
		IsLocal:          rec.BoolOr("is_local", false),
		AvailableMarkets: rec.Strings("available_markets"),
	}
	return track
}

// CreateOrUpdate inserts the track or updates the row with the same remote id.
//
// The is_interesting flag is local curation and is never overwritten.
func (r *TrackRepository) CreateOrUpdate(ctx context.Context, rec models.Record) (*models.Track, error) {
	track := trackFromRecord(rec)
	if err := track.Validate(); err != nil {
		return nil, fmt.Errorf("%w: track %q: %v", shared.ErrInvalidInput, track.SpotifyID, err)
	}

	query := `
		INSERT INTO tracks (spotify_id, name, duration_ms, explicit, disc_number, track_number, popularity,
			preview_url, uri, href, external_url, is_local, available_markets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			name = excluded.name,
			duration_ms = excluded.duration_ms,
			explicit = excluded.explicit,
			disc_number = excluded.disc_number,
			track_number = excluded.track_number,
			popularity = excluded.popularity,
			preview_url = excluded.preview_url,
			uri = excluded.uri,
			href = excluded.href,
			external_url = excluded.external_url,
			is_local = excluded.is_local,
			available_markets = excluded.available_markets,
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		track.SpotifyID,
		track.Name,
		track.DurationMS,
		track.Explicit,
		track.DiscNumber,
		nullable(track.TrackNumber),
		nullable(track.Popularity),
		nullable(track.PreviewURL),
		nullable(track.URI),
		nullable(track.Href),
		nullable(track.ExternalURL),
		track.IsLocal,
		marshalStrings(track.AvailableMarkets),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert track %s: %w", track.SpotifyID, err)
	}

	return r.Get(ctx, id)
}

// Get retrieves a track by local id.
func (r *TrackRepository) Get(ctx context.Context, id int64) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySpotifyID retrieves a track by remote id.
func (r *TrackRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, spotifyID))
}

// List retrieves tracks matching the given criteria ordered by id.
//
// Supported criteria: "interesting" (bool) and "album_id" (int64).
func (r *TrackRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1 = 1`
	args := []any{}

	if interesting, ok := criteria["interesting"].(bool); ok {
		query += " AND is_interesting = ?"
		args = append(args, interesting)
	}

	if albumID, ok := criteria["album_id"].(int64); ok {
		query += " AND id IN (SELECT track_id FROM album_track WHERE album_id = ?)"
		args = append(args, albumID)
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// SetInteresting flags a track for later review.
func (r *TrackRepository) SetInteresting(ctx context.Context, id int64, interesting bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tracks SET is_interesting = ?, updated_at = ? WHERE id = ?`, interesting, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", shared.ErrTrackNotFound, id)
	}
	return nil
}

// SyncArtists replaces the track's artist set with artistIDs.
func (r *TrackRepository) SyncArtists(ctx context.Context, trackID int64, artistIDs []int64) error {
	return syncPivot(ctx, r.db, "artist_track", "track_id", "artist_id", trackID, artistIDs)
}

// SyncAlbums replaces the track's album set with albumIDs.
func (r *TrackRepository) SyncAlbums(ctx context.Context, trackID int64, albumIDs []int64) error {
	return syncPivot(ctx, r.db, "album_track", "track_id", "album_id", trackID, albumIDs)
}

// scanOne scans a single [sql.Row] into a [models.Track]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	return track, err
}

func scanTrack(s scanner) (*models.Track, error) {
	var (
		track       models.Track
		trackNumber sql.NullInt64
		popularity  sql.NullInt64
		previewURL  sql.NullString
		uri         sql.NullString
		href        sql.NullString
		externalURL sql.NullString
		markets     sql.NullString
	)

	err := s.Scan(
		&track.ID, &track.SpotifyID, &track.Name, &track.DurationMS, &track.Explicit, &track.DiscNumber,
		&trackNumber, &popularity, &previewURL, &uri, &href, &externalURL,
		&track.IsLocal, &track.IsInteresting, &markets, &track.CreatedAt, &track.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.TrackNumber = intPtr(trackNumber)
	track.Popularity = intPtr(popularity)
	track.PreviewURL = strPtr(previewURL)
	track.URI = strPtr(uri)
	track.Href = strPtr(href)
	track.ExternalURL = strPtr(externalURL)
	track.AvailableMarkets = unmarshalStrings(markets)

	return &track, nil
}
