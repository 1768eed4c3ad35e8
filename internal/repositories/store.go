package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/spotsync/internal/models"
)

// Store groups the catalog repositories over one connection or transaction.
type Store struct {
	db        DBTX
	Tracks    *TrackRepository
	Artists   *ArtistRepository
	Albums    *AlbumRepository
	Playlists *PlaylistRepository
}

// NewStore creates a Store bound to db.
func NewStore(db DBTX) *Store {
	return &Store{
		db:        db,
		Tracks:    NewTrackRepository(db),
		Artists:   NewArtistRepository(db),
		Albums:    NewAlbumRepository(db),
		Playlists: NewPlaylistRepository(db),
	}
}

// WithTx runs fn with a Store bound to a single transaction. When the Store is
// already transactional fn joins the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	if _, ok := s.db.(*sql.Tx); ok {
		return fn(s)
	}
	return inTx(ctx, s.db, func(tx DBTX) error {
		return fn(NewStore(tx))
	})
}

// SaveTrack upserts a track payload with its artists and album and replaces the
// track's artist and album links.
//
// An embedded album without an id or name is ignored.
func (s *Store) SaveTrack(ctx context.Context, rec models.Record) (*models.Track, error) {
	var saved *models.Track
	err := s.WithTx(ctx, func(tx *Store) error {
		track, err := tx.Tracks.CreateOrUpdate(ctx, rec)
		if err != nil {
			return err
		}

		artistIDs, err := tx.saveArtists(ctx, rec.Records("artists"))
		if err != nil {
			return err
		}
		if err := tx.Tracks.SyncArtists(ctx, track.ID, artistIDs); err != nil {
			return fmt.Errorf("failed to sync artists of track %s: %w", track.SpotifyID, err)
		}

		if album := rec.Map("album"); album.ID() != "" && album.String("name") != "" {
			albumRow, err := tx.saveAlbum(ctx, album)
			if err != nil {
				return err
			}
			if err := tx.Tracks.SyncAlbums(ctx, track.ID, []int64{albumRow.ID}); err != nil {
				return fmt.Errorf("failed to sync album of track %s: %w", track.SpotifyID, err)
			}
		}

		saved = track
		return nil
	})
	return saved, err
}

// SaveAlbum upserts an album payload with its artists and, when the payload
// embeds a track listing, its tracks. Both link sets are replaced.
func (s *Store) SaveAlbum(ctx context.Context, rec models.Record) (*models.Album, error) {
	var saved *models.Album
	err := s.WithTx(ctx, func(tx *Store) error {
		album, err := tx.saveAlbum(ctx, rec)
		if err != nil {
			return err
		}

		listing := rec.Map("tracks")
		if listing != nil {
			items := listing.Records("items")
			trackIDs := make([]int64, 0, len(items))
			for _, item := range items {
				track, err := tx.Tracks.CreateOrUpdate(ctx, item)
				if err != nil {
					return err
				}
				artistIDs, err := tx.saveArtists(ctx, item.Records("artists"))
				if err != nil {
					return err
				}
				if err := tx.Tracks.SyncArtists(ctx, track.ID, artistIDs); err != nil {
					return fmt.Errorf("failed to sync artists of track %s: %w", track.SpotifyID, err)
				}
				trackIDs = append(trackIDs, track.ID)
			}
			if err := tx.Albums.SyncTracks(ctx, album.ID, trackIDs); err != nil {
				return fmt.Errorf("failed to sync tracks of album %s: %w", album.SpotifyID, err)
			}
		}

		saved = album
		return nil
	})
	return saved, err
}

// saveAlbum upserts the album and replaces its artist links.
func (s *Store) saveAlbum(ctx context.Context, rec models.Record) (*models.Album, error) {
	album, err := s.Albums.CreateOrUpdate(ctx, rec)
	if err != nil {
		return nil, err
	}

	artistIDs, err := s.saveArtists(ctx, rec.Records("artists"))
	if err != nil {
		return nil, err
	}
	if err := s.Albums.SyncArtists(ctx, album.ID, artistIDs); err != nil {
		return nil, fmt.Errorf("failed to sync artists of album %s: %w", album.SpotifyID, err)
	}
	return album, nil
}

func (s *Store) saveArtists(ctx context.Context, recs []models.Record) ([]int64, error) {
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		artist, err := s.Artists.CreateOrUpdate(ctx, rec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, artist.ID)
	}
	return ids, nil
}

// ReplacePlaylistTracks persists an ordered track list as the playlist's contents.
//
// Positions are contiguous over distinct local tracks. A remote id that appears
// more than once keeps its first position, while its stored fields come from the
// last record written, since every repeat upserts the same row.
func (s *Store) ReplacePlaylistTracks(ctx context.Context, playlistID int64, recs []models.Record) ([]*models.Track, error) {
	var ordered []*models.Track
	err := s.WithTx(ctx, func(tx *Store) error {
		positions := make(map[int64]int, len(recs))
		ordered = make([]*models.Track, 0, len(recs))
		for _, rec := range recs {
			track, err := tx.SaveTrack(ctx, rec)
			if err != nil {
				return err
			}
			if pos, seen := positions[track.ID]; seen {
				ordered[pos] = track
				continue
			}
			positions[track.ID] = len(ordered)
			ordered = append(ordered, track)
		}
		return tx.Playlists.SyncTracks(ctx, playlistID, positions)
	})
	if err != nil {
		return nil, err
	}
	return ordered, nil
}
