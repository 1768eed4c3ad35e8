package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
)

// PushResult describes a completed remote push.
type PushResult struct {
	PlaylistID int64
	SpotifyID  string
	Tracks     int
	SnapshotID string
}

// Pusher writes a stored playlist's order back to the remote service.
type Pusher struct {
	store  *repositories.Store
	writer services.PlaylistWriter
	logger *log.Logger
}

// NewPusher creates a Pusher.
func NewPusher(store *repositories.Store, writer services.PlaylistWriter, logger *log.Logger) *Pusher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pusher{store: store, writer: writer, logger: logger}
}

// Push replaces the remote playlist with uris. A nil uris reads the current
// order from the store. With details set the playlist's name, description and
// visibility are pushed first.
//
// When only the first chunk was committed the returned error is a
// [*services.PartialPushError] and the first chunk's snapshot is still recorded.
func (p *Pusher) Push(ctx context.Context, playlistID int64, uris []string, details bool) (*PushResult, error) {
	logger := shared.WithLogger(p.logger, "playlist", playlistID)

	if p.writer == nil {
		return nil, fmt.Errorf("%w: no playlist writer", shared.ErrServiceUnavailable)
	}

	playlist, err := p.store.Playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	if uris == nil {
		if uris, err = p.store.Playlists.TrackURIs(ctx, playlistID); err != nil {
			return nil, err
		}
	}

	if details {
		payload := playlist.SyncRecordFrom(nil).Payload()
		if err := p.writer.UpdatePlaylistDetails(ctx, playlist.SpotifyID, payload); err != nil {
			return nil, fmt.Errorf("failed to update playlist details: %w", err)
		}
	}

	result := &PushResult{PlaylistID: playlistID, SpotifyID: playlist.SpotifyID, Tracks: len(uris)}

	snapshot, pushErr := p.writer.ReplacePlaylistTracks(ctx, playlist.SpotifyID, uris)
	if snapshot != nil && snapshot.SnapshotID != "" {
		result.SnapshotID = snapshot.SnapshotID
		if err := p.store.Playlists.UpdateSnapshot(ctx, playlistID, snapshot.SnapshotID); err != nil {
			logger.Warn("failed to record snapshot", "snapshot_id", snapshot.SnapshotID, "error", err)
		}
	}

	if pushErr != nil {
		var partial *services.PartialPushError
		if errors.As(pushErr, &partial) {
			logger.Error("push left remote playlist partially replaced", "committed", partial.Committed, "total", partial.Total)
		}
		return result, pushErr
	}

	logger.Info("pushed playlist", "tracks", len(uris), "snapshot_id", result.SnapshotID)
	return result, nil
}
