package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/samber/lo"
)

// PersistResult summarizes what a [SyncTarget] wrote.
type PersistResult struct {
	Persisted int      // distinct local rows written
	URIs      []string // final order as track URIs, empty for non-playlist targets
}

// SyncTarget writes a transformed record to the store. The store it receives is
// bound to the transaction that spans the whole Persisting state.
type SyncTarget interface {
	Persist(ctx context.Context, store *repositories.Store, rec models.SyncRecord) (*PersistResult, error)
}

// PlaylistTarget persists a record as the full, ordered contents of its playlist.
type PlaylistTarget struct{}

func (PlaylistTarget) Persist(ctx context.Context, store *repositories.Store, rec models.SyncRecord) (*PersistResult, error) {
	if rec.PlaylistID() == 0 {
		return nil, fmt.Errorf("playlist target needs a local playlist id")
	}

	ordered, err := store.ReplacePlaylistTracks(ctx, rec.PlaylistID(), rec.Tracks())
	if err != nil {
		return nil, err
	}

	return &PersistResult{
		Persisted: len(ordered),
		URIs:      lo.Map(ordered, func(t *models.Track, _ int) string { return t.CanonicalURI() }),
	}, nil
}

// TrackTarget upserts every track with its artists and album without any
// playlist membership. Catalog population uses it.
type TrackTarget struct{}

func (TrackTarget) Persist(ctx context.Context, store *repositories.Store, rec models.SyncRecord) (*PersistResult, error) {
	seen := make(map[int64]struct{}, rec.Len())
	for _, track := range rec.Tracks() {
		saved, err := store.SaveTrack(ctx, track)
		if err != nil {
			return nil, err
		}
		seen[saved.ID] = struct{}{}
	}
	return &PersistResult{Persisted: len(seen)}, nil
}
