package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/pipeline"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
)

// EngineOpts contains the dependencies of an [Engine].
type EngineOpts struct {
	Store    *repositories.Store
	Client   services.Catalog
	Sync     shared.SyncConfig
	Queue    shared.QueueConfig
	PageSize int
	Progress chan<- ProgressUpdate
	Logger   *log.Logger
}

// Engine wires the orchestrator, population drivers and pusher behind a job
// queue and implements [Handler] for every job [Kind].
type Engine struct {
	Queue        *Queue
	Orchestrator *Orchestrator
	Populator    *Populator
	Pusher       *Pusher

	sync     shared.SyncConfig
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

// NewEngine creates an Engine from opts. Call [Engine.Start] before waiting on jobs.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	queue := NewQueue(QueueOpts{
		Workers:     opts.Queue.Workers,
		Size:        opts.Queue.Size,
		RateLimit:   opts.Queue.RateLimit,
		MaxAttempts: opts.Queue.MaxAttempts,
		Logger:      opts.Logger,
	})

	orchestrator := NewOrchestrator(OrchestratorOpts{
		Store:            opts.Store,
		Reader:           opts.Client,
		Searcher:         opts.Client,
		Registry:         pipeline.NewRegistry(),
		Dispatcher:       queue,
		LiveVersionLimit: opts.Sync.LiveVersionLimit,
		Logger:           opts.Logger,
	})

	populator := NewPopulator(PopulatorOpts{
		Store:         opts.Store,
		Library:       opts.Client,
		Orchestrator:  orchestrator,
		Dispatcher:    queue,
		CatalogStages: opts.Sync.CatalogStages,
		PageSize:      opts.PageSize,
		Progress:      opts.Progress,
		Logger:        opts.Logger,
	})

	return &Engine{
		Queue:        queue,
		Orchestrator: orchestrator,
		Populator:    populator,
		Pusher:       NewPusher(opts.Store, opts.Client, opts.Logger),
		sync:         opts.Sync,
		progress:     opts.Progress,
		logger:       opts.Logger,
	}
}

// Start runs queued jobs until ctx ends or [Engine.Shutdown] is called.
func (e *Engine) Start(ctx context.Context) {
	e.Queue.Start(ctx, e)
}

// Submit queues job.
func (e *Engine) Submit(job Job) (string, error) {
	return e.Queue.Dispatch(job)
}

// Shutdown waits for all jobs and stops the queue.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.Queue.Shutdown(ctx)
}

// Handle runs one job.
func (e *Engine) Handle(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindSyncPlaylist:
		stages := e.sync.Stages
		if job.Resync {
			stages = e.sync.ResyncStages
		}
		_, err := e.Orchestrator.SyncPlaylist(ctx, job.PlaylistID, SyncOptions{
			Stages:   stages,
			Push:     job.Push || e.sync.Push,
			Progress: e.progress,
		})
		return err
	case KindPushPlaylist:
		_, err := e.Pusher.Push(ctx, job.PlaylistID, job.URIs, job.Details)
		return err
	case KindPopulateTracks, KindPopulateArtists, KindPopulateAlbums, KindPopulatePlaylists:
		_, err := e.Populator.Populate(ctx, job.Kind)
		return err
	default:
		return fmt.Errorf("%w: %q", shared.ErrUnknownJob, job.Kind)
	}
}
