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

const artistColumns = `id, spotify_id, name, popularity, followers, genres, uri, href, external_url, is_interesting, created_at, updated_at`

// ArtistRepository upserts artists and their track and album links.
type ArtistRepository struct {
	db DBTX
}

func NewArtistRepository(db DBTX) *ArtistRepository {
	return &ArtistRepository{db: db}
}

func artistFromRecord(rec models.Record) *models.Artist {
	return &models.Artist{
		SpotifyID:   rec.ID(),
		Name:        rec.String("name"),
		Popularity:  rec.OptInt("popularity"),
		Followers:   rec.Map("followers").OptInt("total"),
		Genres:      rec.Strings("genres"),
		URI:         rec.OptString("uri"),
		Href:        rec.OptString("href"),
		ExternalURL: rec.Map("external_urls").OptString("spotify"),
	}
}

// CreateOrUpdate inserts the artist or updates the row with the same remote id.
//
// Artists embedded in track and album payloads are simplified objects without
// popularity, followers or genres, so those columns keep their stored value
// when the payload omits them.
func (r *ArtistRepository) CreateOrUpdate(ctx context.Context, rec models.Record) (*models.Artist, error) {
	artist := artistFromRecord(rec)
	if err := artist.Validate(); err != nil {
		return nil, fmt.Errorf("%w: artist %q: %v", shared.ErrInvalidInput, artist.SpotifyID, err)
	}

	query := `
		INSERT INTO artists (spotify_id, name, popularity, followers, genres, uri, href, external_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			name = excluded.name,
			popularity = COALESCE(excluded.popularity, artists.popularity),
			followers = COALESCE(excluded.followers, artists.followers),
			genres = COALESCE(excluded.genres, artists.genres),
			uri = COALESCE(excluded.uri, artists.uri),
			href = COALESCE(excluded.href, artists.href),
			external_url = COALESCE(excluded.external_url, artists.external_url),
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		artist.SpotifyID,
		artist.Name,
		nullable(artist.Popularity),
		nullable(artist.Followers),
		marshalStrings(artist.Genres),
		nullable(artist.URI),
		nullable(artist.Href),
		nullable(artist.ExternalURL),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert artist %s: %w", artist.SpotifyID, err)
	}

	return r.Get(ctx, id)
}

// Get retrieves an artist by local id.
func (r *ArtistRepository) Get(ctx context.Context, id int64) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySpotifyID retrieves an artist by remote id.
func (r *ArtistRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, spotifyID))
}

// ForTrack lists the artists linked to a track ordered by name.
func (r *ArtistRepository) ForTrack(ctx context.Context, trackID int64) ([]*models.Artist, error) {
	query := `
		SELECT ` + artistColumns + ` FROM artists
		WHERE id IN (SELECT artist_id FROM artist_track WHERE track_id = ?)
		ORDER BY name ASC
	`
	return r.list(ctx, query, trackID)
}

// ForAlbum lists the artists linked to an album ordered by name.
func (r *ArtistRepository) ForAlbum(ctx context.Context, albumID int64) ([]*models.Artist, error) {
	query := `
		SELECT ` + artistColumns + ` FROM artists
		WHERE id IN (SELECT artist_id FROM artist_album WHERE album_id = ?)
		ORDER BY name ASC
	`
	return r.list(ctx, query, albumID)
}

// SyncTracks replaces the artist's track set with trackIDs.
func (r *ArtistRepository) SyncTracks(ctx context.Context, artistID int64, trackIDs []int64) error {
	return syncPivot(ctx, r.db, "artist_track", "artist_id", "track_id", artistID, trackIDs)
}

// SyncAlbums replaces the artist's album set with albumIDs.
func (r *ArtistRepository) SyncAlbums(ctx context.Context, artistID int64, albumIDs []int64) error {
	return syncPivot(ctx, r.db, "artist_album", "artist_id", "album_id", artistID, albumIDs)
}

func (r *ArtistRepository) list(ctx context.Context, query string, args ...any) ([]*models.Artist, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

func (r *ArtistRepository) scanOne(row *sql.Row) (*models.Artist, error) {
	artist, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artist", shared.ErrNotFound)
	}
	return artist, err
}

func scanArtist(s scanner) (*models.Artist, error) {
	var (
		artist      models.Artist
		popularity  sql.NullInt64
		followers   sql.NullInt64
		genres      sql.NullString
		uri         sql.NullString
		href        sql.NullString
		externalURL sql.NullString
	)

	err := s.Scan(&artist.ID, &artist.SpotifyID, &artist.Name, &popularity, &followers, &genres,
		&uri, &href, &externalURL, &artist.IsInteresting, &artist.CreatedAt, &artist.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	artist.Popularity = intPtr(popularity)
	artist.Followers = intPtr(followers)
	artist.Genres = unmarshalStrings(genres)
	artist.URI = strPtr(uri)
	artist.Href = strPtr(href)
	artist.ExternalURL = strPtr(externalURL)
	return &artist, nil
}
