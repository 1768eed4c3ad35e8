package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Populate runs one population driver. Playlist population also runs the
// sync jobs it queues.
func (r *Runner) Populate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("kind")
	if name == "" {
		return fmt.Errorf("%w: kind (tracks, artists, albums or playlists)", shared.ErrMissingArgument)
	}

	kind, err := tasks.PopulateKind(name)
	if err != nil {
		return err
	}

	r.logger.Info("populating library", "kind", kind)
	_, err = r.runJobs(ctx, cmd, tasks.Job{Kind: kind})
	return err
}

// Sync runs the sync pipeline for one stored playlist.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Int64("id")
	r.logger.Info("syncing playlist", "playlist", id, "resync", cmd.Bool("resync"), "push", cmd.Bool("push"))

	_, err := r.runJobs(ctx, cmd, tasks.Job{
		Kind:       tasks.KindSyncPlaylist,
		PlaylistID: id,
		Resync:     cmd.Bool("resync"),
		Push:       cmd.Bool("push"),
	})
	return err
}

// Push replaces the remote playlist with the stored order.
func (r *Runner) Push(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Int64("id")
	r.logger.Info("pushing playlist", "playlist", id)

	_, err := r.runJobs(ctx, cmd, tasks.Job{
		Kind:       tasks.KindPushPlaylist,
		PlaylistID: id,
		Details:    cmd.Bool("details"),
	})
	return err
}

type playlistRow struct {
	*models.Playlist
	StoredTracks int `json:"stored_tracks"`
}

// Playlists lists the stored playlists with the number of tracks stored for each.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore(cmd)
	if err != nil {
		return err
	}

	playlists, err := store.Playlists.List(ctx)
	if err != nil {
		return err
	}

	rows := make([]playlistRow, 0, len(playlists))
	for _, p := range playlists {
		count, err := store.Playlists.TrackCount(ctx, p.ID)
		if err != nil {
			return err
		}
		rows = append(rows, playlistRow{Playlist: p, StoredTracks: count})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if len(rows) == 0 {
		return r.writePlain("No playlists stored. Run 'spotsync populate playlists' first.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(rows)))
	for _, row := range rows {
		r.writePlain("%4d  %-40s %s\n", row.ID, row.Name,
			r.palette.Help(fmt.Sprintf("%d stored / %d remote", row.StoredTracks, row.TotalTracks)))
	}
	return nil
}

// Tracks prints or exports a stored playlist in order.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := r.openStore(cmd)
	if err != nil {
		return err
	}

	export, err := formatter.LoadPlaylistExport(ctx, store, cmd.Int64("id"))
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, export, format); err != nil {
			return err
		}
		return r.writePlain("%s Wrote %d tracks to %s\n", r.palette.OK("✓"), len(export.Tracks), path)
	}
	return formatter.Write(r.output, export, format)
}
