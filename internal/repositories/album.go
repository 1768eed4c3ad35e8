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

const albumColumns = `id, spotify_id, name, album_type, release_date, release_date_precision, total_tracks,
	uri, href, external_url, available_markets, created_at, updated_at`

// AlbumRepository upserts albums and their artist and track links.
type AlbumRepository struct {
	db DBTX
}

func NewAlbumRepository(db DBTX) *AlbumRepository {
	return &AlbumRepository{db: db}
}

func albumFromRecord(rec models.Record) *models.Album {
	return &models.Album{
		SpotifyID:            rec.ID(),
		Name:                 rec.String("name"),
		AlbumType:            rec.OptString("album_type"),
		ReleaseDate:          rec.OptString("release_date"),
		ReleaseDatePrecision: rec.OptString("release_date_precision"),
		TotalTracks:          rec.IntOr("total_tracks", 0),
		URI:                  rec.OptString("uri"),
		Href:                 rec.OptString("href"),
		ExternalURL:          rec.Map("external_urls").OptString("spotify"),
		AvailableMarkets:     rec.Strings("available_markets"),
	}
}

// CreateOrUpdate inserts the album or updates the row with the same remote id.
func (r *AlbumRepository) CreateOrUpdate(ctx context.Context, rec models.Record) (*models.Album, error) {
	album := albumFromRecord(rec)
	if err := album.Validate(); err != nil {
		return nil, fmt.Errorf("%w: album %q: %v", shared.ErrInvalidInput, album.SpotifyID, err)
	}

	query := `
		INSERT INTO albums (spotify_id, name, album_type, release_date, release_date_precision, total_tracks,
			uri, href, external_url, available_markets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			name = excluded.name,
			album_type = excluded.album_type,
			release_date = excluded.release_date,
			release_date_precision = excluded.release_date_precision,
			total_tracks = excluded.total_tracks,
			uri = excluded.uri,
			href = excluded.href,
			external_url = excluded.external_url,
			available_markets = excluded.available_markets,
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		album.SpotifyID,
		album.Name,
		nullable(album.AlbumType),
		nullable(album.ReleaseDate),
		nullable(album.ReleaseDatePrecision),
		album.TotalTracks,
		nullable(album.URI),
		nullable(album.Href),
		nullable(album.ExternalURL),
		marshalStrings(album.AvailableMarkets),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert album %s: %w", album.SpotifyID, err)
	}

	return r.Get(ctx, id)
}

// Get retrieves an album by local id.
func (r *AlbumRepository) Get(ctx context.Context, id int64) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySpotifyID retrieves an album by remote id.
func (r *AlbumRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE spotify_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, spotifyID))
}

// SyncArtists replaces the album's artist set with artistIDs.
func (r *AlbumRepository) SyncArtists(ctx context.Context, albumID int64, artistIDs []int64) error {
	return syncPivot(ctx, r.db, "artist_album", "album_id", "artist_id", albumID, artistIDs)
}

// SyncTracks replaces the album's track set with trackIDs.
func (r *AlbumRepository) SyncTracks(ctx context.Context, albumID int64, trackIDs []int64) error {
	return syncPivot(ctx, r.db, "album_track", "album_id", "track_id", albumID, trackIDs)
}

func (r *AlbumRepository) scanOne(row *sql.Row) (*models.Album, error) {
	var (
		album       models.Album
		albumType   sql.NullString
		releaseDate sql.NullString
		precision   sql.NullString
		uri         sql.NullString
		href        sql.NullString
		externalURL sql.NullString
		markets     sql.NullString
	)

	err := row.Scan(&album.ID, &album.SpotifyID, &album.Name, &albumType, &releaseDate, &precision,
		&album.TotalTracks, &uri, &href, &externalURL, &markets, &album.CreatedAt, &album.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: album", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	album.AlbumType = strPtr(albumType)
	album.ReleaseDate = strPtr(releaseDate)
	album.ReleaseDatePrecision = strPtr(precision)
	album.URI = strPtr(uri)
	album.Href = strPtr(href)
	album.ExternalURL = strPtr(externalURL)
	album.AvailableMarkets = unmarshalStrings(markets)
	return &album, nil
}
