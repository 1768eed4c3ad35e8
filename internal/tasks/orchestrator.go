package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/pipeline"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
)

// Dispatcher hands a follow-up job to the queue.
type Dispatcher interface {
	Dispatch(job Job) (string, error)
}

// SyncOptions selects the behavior of one run.
type SyncOptions struct {
	Stages   []string              // pipeline stage names, in order
	Push     bool                  // queue a remote push after persisting
	Progress chan<- ProgressUpdate // optional, never blocks
}

// SyncResult describes a completed run.
type SyncResult struct {
	PlaylistID int64
	SpotifyID  string
	State      State
	Fetched    int      // tracks received from the remote
	Kept       int      // tracks left after the pipeline
	Persisted  int      // distinct local tracks written
	URIs       []string // persisted order, playlist runs only
	PushJobID  string   // set when a push was queued
}

// OrchestratorOpts configures an [Orchestrator].
type OrchestratorOpts struct {
	Store            *repositories.Store
	Reader           services.PlaylistReader
	Searcher         services.TrackSearcher
	Registry         *pipeline.Registry
	Dispatcher       Dispatcher
	LiveVersionLimit int
	Logger           *log.Logger
}

// Orchestrator drives a record through Fetching, Transforming, Persisting and
// optionally PushingRemote.
//
// Persisting runs in one transaction, so a failed run leaves the previous
// playlist contents intact. A push is queued as its own job; its failure never
// touches local state.
type Orchestrator struct {
	store      *repositories.Store
	reader     services.PlaylistReader
	registry   *pipeline.Registry
	deps       pipeline.Deps
	dispatcher Dispatcher
	logger     *log.Logger
}

// NewOrchestrator creates an Orchestrator from opts.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Registry == nil {
		opts.Registry = pipeline.NewRegistry()
	}

	return &Orchestrator{
		store:    opts.Store,
		reader:   opts.Reader,
		registry: opts.Registry,
		deps: pipeline.Deps{
			Searcher:         opts.Searcher,
			LiveVersionLimit: opts.LiveVersionLimit,
			Logger:           opts.Logger,
		},
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
	}
}

// SetDispatcher sets where push jobs are queued.
func (o *Orchestrator) SetDispatcher(d Dispatcher) {
	o.dispatcher = d
}

// SyncPlaylist fetches the remote tracks of a stored playlist and makes the
// local playlist match the pipeline's output.
func (o *Orchestrator) SyncPlaylist(ctx context.Context, playlistID int64, opts SyncOptions) (*SyncResult, error) {
	logger := shared.WithLogger(o.logger, "playlist", playlistID)

	playlist, err := o.store.Playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, o.fail(logger, opts, Fetching, err)
	}

	if o.reader == nil {
		return nil, o.fail(logger, opts, Fetching, fmt.Errorf("%w: no playlist reader", shared.ErrServiceUnavailable))
	}

	sendProgress(opts.Progress, fetchingUpdate(playlist.Name))
	logger.Info("fetching playlist tracks", "spotify_id", playlist.SpotifyID)

	tracks, err := o.reader.ListPlaylistTracks(ctx, playlist.SpotifyID)
	if err != nil {
		return nil, o.fail(logger, opts, Fetching, err)
	}

	return o.Run(ctx, playlist.SyncRecordFrom(tracks), opts, PlaylistTarget{})
}

// Run transforms rec with the configured stages and persists the result
// through target. rec is already fetched.
func (o *Orchestrator) Run(ctx context.Context, rec models.SyncRecord, opts SyncOptions, target SyncTarget) (*SyncResult, error) {
	logger := shared.WithLogger(o.logger, "playlist", rec.PlaylistID())
	result := &SyncResult{
		PlaylistID: rec.PlaylistID(),
		SpotifyID:  rec.SpotifyID(),
		Fetched:    rec.Len(),
	}

	result.State = Transforming
	sendProgress(opts.Progress, transformingUpdate(opts.Stages, rec.Len()))

	p, err := o.registry.NewFromNames(opts.Stages, o.deps)
	if err != nil {
		return nil, o.fail(logger, opts, Transforming, err)
	}

	out, err := p.Run(ctx, rec)
	if err != nil {
		return nil, o.fail(logger, opts, Transforming, err)
	}
	result.Kept = out.Len()
	logger.Debug("pipeline complete", "stages", p.Names(), "in", rec.Len(), "out", out.Len())

	result.State = Persisting
	sendProgress(opts.Progress, persistingUpdate(out.Len()))

	var persisted *PersistResult
	err = o.store.WithTx(ctx, func(tx *repositories.Store) error {
		var err error
		persisted, err = target.Persist(ctx, tx, out)
		return err
	})
	if err != nil {
		return nil, o.fail(logger, opts, Persisting, err)
	}
	result.Persisted = persisted.Persisted
	result.URIs = persisted.URIs

	if opts.Push && rec.PlaylistID() != 0 {
		result.State = PushingRemote
		sendProgress(opts.Progress, pushingUpdate(len(result.URIs)))

		if o.dispatcher == nil {
			return result, o.fail(logger, opts, PushingRemote, fmt.Errorf("%w: no job dispatcher for push", shared.ErrServiceUnavailable))
		}

		jobID, err := o.dispatcher.Dispatch(Job{
			Kind:       KindPushPlaylist,
			PlaylistID: rec.PlaylistID(),
			URIs:       result.URIs,
		})
		if err != nil {
			return result, o.fail(logger, opts, PushingRemote, err)
		}
		result.PushJobID = jobID
	}

	result.State = Done
	sendProgress(opts.Progress, doneUpdate(result))
	logger.Info("sync complete", "fetched", result.Fetched, "kept", result.Kept, "persisted", result.Persisted)
	return result, nil
}

func (o *Orchestrator) fail(logger *log.Logger, opts SyncOptions, state State, err error) error {
	syncErr := &SyncError{State: state, Err: err}
	logger.Error("sync failed", "state", state, "error", err)
	sendProgress(opts.Progress, failedUpdate(syncErr))
	return syncErr
}
