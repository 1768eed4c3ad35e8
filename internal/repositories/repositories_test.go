package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestTrackRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateOrUpdate", func(t *testing.T) {
		t.Run("applies defaults for absent fields", func(t *testing.T) {
			db := tu.NewTestDB(t)
			repo := NewTrackRepository(db)

			track, err := repo.CreateOrUpdate(ctx, models.Record{"id": "t1", "name": "Song", "duration_ms": 1000.0})
			if err != nil {
				t.Fatalf("failed to upsert track: %v", err)
			}

			if track.ID == 0 {
				t.Error("expected local id to be assigned")
			}
			if track.Explicit || track.IsLocal {
				t.Error("expected explicit and is_local to default to false")
			}
			if track.DiscNumber != 1 {
				t.Errorf("expected disc number 1, got %d", track.DiscNumber)
			}
			if track.TrackNumber != nil || track.Popularity != nil || track.PreviewURL != nil {
				t.Error("expected absent nullable fields to stay null")
			}
			if track.CanonicalURI() != "spotify:track:t1" {
				t.Errorf("expected synthesized uri, got %s", track.CanonicalURI())
			}
		})

		t.Run("keeps present zero distinct from absent", func(t *testing.T) {
			db := tu.NewTestDB(t)
			repo := NewTrackRepository(db)

			track, err := repo.CreateOrUpdate(ctx, models.Record{"id": "t1", "name": "Song", "popularity": 0.0})
			if err != nil {
				t.Fatalf("failed to upsert track: %v", err)
			}
			if track.Popularity == nil || *track.Popularity != 0 {
				t.Errorf("expected popularity 0, got %v", track.Popularity)
			}
		})

		t.Run("is idempotent by remote id", func(t *testing.T) {
			db := tu.NewTestDB(t)
			repo := NewTrackRepository(db)

			rec := models.Record{
				"id":                "t1",
				"name":              "Song",
				"duration_ms":       200000.0,
				"external_urls":     map[string]any{"spotify": "https://open.spotify.com/track/t1"},
				"available_markets": []any{"US", "GB"},
			}

			first, err := repo.CreateOrUpdate(ctx, rec)
			if err != nil {
				t.Fatalf("first upsert failed: %v", err)
			}

			if err := repo.SetInteresting(ctx, first.ID, true); err != nil {
				t.Fatalf("failed to flag track: %v", err)
			}

			updated := rec.Clone()
			updated["name"] = "Song (Remastered)"
			second, err := repo.CreateOrUpdate(ctx, updated)
			if err != nil {
				t.Fatalf("second upsert failed: %v", err)
			}

			if second.ID != first.ID {
				t.Errorf("expected same local id %d, got %d", first.ID, second.ID)
			}
			if second.Name != "Song (Remastered)" {
				t.Errorf("expected name to be updated, got %s", second.Name)
			}
			if !second.IsInteresting {
				t.Error("expected local curation flag to survive the update")
			}
			if second.ExternalURL == nil || *second.ExternalURL != "https://open.spotify.com/track/t1" {
				t.Errorf("unexpected external url %v", second.ExternalURL)
			}
			if len(second.AvailableMarkets) != 2 {
				t.Errorf("expected markets to round trip, got %v", second.AvailableMarkets)
			}
			if n := countRows(t, db, "SELECT COUNT(*) FROM tracks"); n != 1 {
				t.Errorf("expected 1 row, got %d", n)
			}
		})

		t.Run("rejects missing id", func(t *testing.T) {
			db := tu.NewTestDB(t)
			_, err := NewTrackRepository(db).CreateOrUpdate(ctx, models.Record{"name": "Song"})
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("Get missing", func(t *testing.T) {
		db := tu.NewTestDB(t)
		_, err := NewTrackRepository(db).Get(ctx, 42)
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Fatalf("expected ErrTrackNotFound, got %v", err)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected track miss to match ErrNotFound, got %v", err)
		}
	})

	t.Run("SyncArtists replaces the full set", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)

		track, _ := store.Tracks.CreateOrUpdate(ctx, models.Record{"id": "t1", "name": "Song"})
		a, _ := store.Artists.CreateOrUpdate(ctx, tu.ArtistRecord("a", "A"))
		b, _ := store.Artists.CreateOrUpdate(ctx, tu.ArtistRecord("b", "B"))
		c, _ := store.Artists.CreateOrUpdate(ctx, tu.ArtistRecord("c", "C"))

		if err := store.Tracks.SyncArtists(ctx, track.ID, []int64{a.ID, b.ID}); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}
		if err := store.Tracks.SyncArtists(ctx, track.ID, []int64{b.ID, c.ID, c.ID}); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}

		artists, err := store.Artists.ForTrack(ctx, track.ID)
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 2 || artists[0].SpotifyID != "b" || artists[1].SpotifyID != "c" {
			t.Errorf("expected artists [b c], got %v", artists)
		}

		if err := store.Tracks.SyncArtists(ctx, track.ID, nil); err != nil {
			t.Fatalf("empty sync failed: %v", err)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM artist_track WHERE track_id = ?", track.ID); n != 0 {
			t.Errorf("expected empty set to detach all, got %d", n)
		}
	})
}

func TestArtistRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("simplified payload keeps richer stored fields", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewArtistRepository(db)

		full := models.Record{
			"id":         "a1",
			"name":       "Artist",
			"popularity": 70.0,
			"followers":  map[string]any{"total": 1234.0},
			"genres":     []any{"rock"},
		}
		if _, err := repo.CreateOrUpdate(ctx, full); err != nil {
			t.Fatalf("failed to upsert full artist: %v", err)
		}

		artist, err := repo.CreateOrUpdate(ctx, tu.ArtistRecord("a1", "Artist Renamed"))
		if err != nil {
			t.Fatalf("failed to upsert simplified artist: %v", err)
		}

		if artist.Name != "Artist Renamed" {
			t.Errorf("expected name update, got %s", artist.Name)
		}
		if artist.Popularity == nil || *artist.Popularity != 70 {
			t.Errorf("expected popularity kept, got %v", artist.Popularity)
		}
		if artist.Followers == nil || *artist.Followers != 1234 {
			t.Errorf("expected followers kept, got %v", artist.Followers)
		}
		if len(artist.Genres) != 1 {
			t.Errorf("expected genres kept, got %v", artist.Genres)
		}
	})

	t.Run("SyncTracks and SyncAlbums", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)

		artist, _ := store.Artists.CreateOrUpdate(ctx, tu.ArtistRecord("a1", "Artist"))
		t1, _ := store.Tracks.CreateOrUpdate(ctx, models.Record{"id": "t1", "name": "One"})
		t2, _ := store.Tracks.CreateOrUpdate(ctx, models.Record{"id": "t2", "name": "Two"})
		album, _ := store.Albums.CreateOrUpdate(ctx, models.Record{"id": "al1", "name": "Album"})

		if err := store.Artists.SyncTracks(ctx, artist.ID, []int64{t1.ID, t2.ID}); err != nil {
			t.Fatalf("sync tracks failed: %v", err)
		}
		if err := store.Artists.SyncTracks(ctx, artist.ID, []int64{t2.ID}); err != nil {
			t.Fatalf("sync tracks failed: %v", err)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM artist_track WHERE artist_id = ?", artist.ID); n != 1 {
			t.Errorf("expected 1 link, got %d", n)
		}

		if err := store.Artists.SyncAlbums(ctx, artist.ID, []int64{album.ID}); err != nil {
			t.Fatalf("sync albums failed: %v", err)
		}
		artists, err := store.Artists.ForAlbum(ctx, album.ID)
		if err != nil || len(artists) != 1 {
			t.Errorf("expected album artist, got %v (%v)", artists, err)
		}
	})
}

func TestAlbumRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateOrUpdate maps album fields", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewAlbumRepository(db)

		album, err := repo.CreateOrUpdate(ctx, models.Record{
			"id":                     "al1",
			"name":                   "Album",
			"album_type":             "album",
			"release_date":           "1999-01-01",
			"release_date_precision": "day",
			"total_tracks":           12.0,
		})
		if err != nil {
			t.Fatalf("failed to upsert album: %v", err)
		}

		if album.TotalTracks != 12 || album.AlbumType == nil || *album.AlbumType != "album" {
			t.Errorf("unexpected album %+v", album)
		}

		again, err := repo.CreateOrUpdate(ctx, models.Record{"id": "al1", "name": "Album"})
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if again.ID != album.ID || again.TotalTracks != 0 {
			t.Errorf("expected in-place update with defaults, got %+v", again)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		db := tu.NewTestDB(t)
		if _, err := NewAlbumRepository(db).Get(ctx, 9); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateOrUpdate defaults", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewPlaylistRepository(db)

		playlist, err := repo.CreateOrUpdate(ctx, models.Record{"id": "p1", "name": "Mix"})
		if err != nil {
			t.Fatalf("failed to upsert playlist: %v", err)
		}

		if !playlist.Public || playlist.Collaborative || playlist.TotalTracks != 0 {
			t.Errorf("unexpected defaults %+v", playlist)
		}

		withOwner, err := repo.CreateOrUpdate(ctx, tu.PlaylistRecord("p1", "Mix", 7))
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if withOwner.ID != playlist.ID || withOwner.TotalTracks != 7 {
			t.Errorf("expected update in place, got %+v", withOwner)
		}
		if withOwner.OwnerName == nil || *withOwner.OwnerName != "Owner" {
			t.Errorf("expected owner name, got %v", withOwner.OwnerName)
		}
	})

	t.Run("SyncTracks reconciles positions", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)

		playlist, _ := store.Playlists.CreateOrUpdate(ctx, tu.PlaylistRecord("p1", "Mix", 3))
		var ids []int64
		for _, sid := range tu.Seq("t", 4) {
			track, err := store.Tracks.CreateOrUpdate(ctx, models.Record{"id": sid, "name": sid})
			if err != nil {
				t.Fatalf("failed to upsert track: %v", err)
			}
			ids = append(ids, track.ID)
		}

		if err := store.Playlists.SyncTracks(ctx, playlist.ID, map[int64]int{ids[0]: 0, ids[1]: 1, ids[2]: 2}); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}
		if err := store.Playlists.SyncTracks(ctx, playlist.ID, map[int64]int{ids[2]: 0, ids[3]: 1, ids[0]: 2}); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}

		tracks, err := store.Playlists.Tracks(ctx, playlist.ID)
		if err != nil {
			t.Fatalf("failed to read playlist tracks: %v", err)
		}

		want := []string{"t2", "t3", "t0"}
		if len(tracks) != len(want) {
			t.Fatalf("expected %d tracks, got %d", len(want), len(tracks))
		}
		for i, pt := range tracks {
			if pt.Track.SpotifyID != want[i] || pt.Position != i {
				t.Errorf("position %d: expected %s, got %s@%d", i, want[i], pt.Track.SpotifyID, pt.Position)
			}
		}

		uris, err := store.Playlists.TrackURIs(ctx, playlist.ID)
		if err != nil || len(uris) != 3 || uris[0] != "spotify:track:t2" {
			t.Errorf("unexpected uris %v (%v)", uris, err)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		db := tu.NewTestDB(t)
		_, err := NewPlaylistRepository(db).Get(ctx, 1)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected playlist miss to match ErrNotFound, got %v", err)
		}
	})
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveTrack links artists and album", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)

		rec := tu.TrackRecord("t1", "Song", 1000, tu.ArtistRecord("a1", "A"), tu.ArtistRecord("a2", "B"))
		rec["album"] = map[string]any{
			"id":      "al1",
			"name":    "Album",
			"artists": []any{map[string]any{"id": "a1", "name": "A"}},
		}

		track, err := store.SaveTrack(ctx, rec)
		if err != nil {
			t.Fatalf("failed to save track: %v", err)
		}

		if n := countRows(t, db, "SELECT COUNT(*) FROM artist_track WHERE track_id = ?", track.ID); n != 2 {
			t.Errorf("expected 2 artist links, got %d", n)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM album_track WHERE track_id = ?", track.ID); n != 1 {
			t.Errorf("expected 1 album link, got %d", n)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM artist_album"); n != 1 {
			t.Errorf("expected 1 album artist link, got %d", n)
		}
	})

	t.Run("SaveAlbum stores track listing", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)

		rec := models.Record{
			"id":      "al1",
			"name":    "Album",
			"artists": []any{map[string]any{"id": "a1", "name": "A"}},
			"tracks": map[string]any{
				"items": []any{
					map[string]any(tu.TrackRecord("t1", "One", 1000, tu.ArtistRecord("a1", "A"))),
					map[string]any(tu.TrackRecord("t2", "Two", 1000, tu.ArtistRecord("a1", "A"))),
				},
			},
		}

		album, err := store.SaveAlbum(ctx, rec)
		if err != nil {
			t.Fatalf("failed to save album: %v", err)
		}

		tracks, err := store.Tracks.List(ctx, map[string]any{"album_id": album.ID})
		if err != nil || len(tracks) != 2 {
			t.Errorf("expected 2 album tracks, got %d (%v)", len(tracks), err)
		}
	})

	t.Run("ReplacePlaylistTracks keeps first position of repeats", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)
		playlist, _ := store.Playlists.CreateOrUpdate(ctx, tu.PlaylistRecord("p1", "Mix", 3))

		recs := []models.Record{
			tu.TrackRecord("x", "X", 1000),
			tu.TrackRecord("y", "Y", 1000),
			tu.TrackRecord("x", "X", 2000),
			tu.TrackRecord("z", "Z", 1000),
		}

		ordered, err := store.ReplacePlaylistTracks(ctx, playlist.ID, recs)
		if err != nil {
			t.Fatalf("failed to replace tracks: %v", err)
		}
		if len(ordered) != 3 {
			t.Fatalf("expected 3 distinct tracks, got %d", len(ordered))
		}

		uris, _ := store.Playlists.TrackURIs(ctx, playlist.ID)
		want := []string{"spotify:track:x", "spotify:track:y", "spotify:track:z"}
		for i := range want {
			if uris[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], uris[i])
			}
		}
	})

	t.Run("ReplacePlaylistTracks repeats take fields from the last record", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)
		playlist, _ := store.Playlists.CreateOrUpdate(ctx, tu.PlaylistRecord("p1", "Mix", 3))

		recs := []models.Record{
			tu.TrackRecord("x", "Take One", 1000),
			tu.TrackRecord("y", "Y", 1000),
			tu.TrackRecord("x", "Take Two", 2000),
		}

		ordered, err := store.ReplacePlaylistTracks(ctx, playlist.ID, recs)
		if err != nil {
			t.Fatalf("failed to replace tracks: %v", err)
		}
		if ordered[0].Name != "Take Two" || ordered[0].DurationMS != 2000 {
			t.Errorf("expected returned track to match the stored row, got %+v", ordered[0])
		}

		stored, err := store.Playlists.Tracks(ctx, playlist.ID)
		if err != nil {
			t.Fatalf("failed to read playlist tracks: %v", err)
		}
		if len(stored) != 2 {
			t.Fatalf("expected 2 stored tracks, got %d", len(stored))
		}
		if stored[0].Position != 0 || stored[0].Track.SpotifyID != "x" || stored[0].Track.Name != "Take Two" {
			t.Errorf("expected x at position 0 with last fields, got %+v", stored[0])
		}
		if stored[1].Position != 1 || stored[1].Track.SpotifyID != "y" {
			t.Errorf("expected y at position 1, got %+v", stored[1])
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM tracks WHERE spotify_id = 'x'"); n != 1 {
			t.Errorf("expected one row for x, got %d", n)
		}
	})

	t.Run("WithTx rolls back on error", func(t *testing.T) {
		db := tu.NewTestDB(t)
		store := NewStore(db)
		boom := errors.New("boom")

		err := store.WithTx(ctx, func(tx *Store) error {
			if _, err := tx.Tracks.CreateOrUpdate(ctx, models.Record{"id": "t1", "name": "Song"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM tracks"); n != 0 {
			t.Errorf("expected rollback, found %d tracks", n)
		}
	})
}
