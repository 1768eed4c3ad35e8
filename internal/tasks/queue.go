package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Kind identifies what a job does.
type Kind string

const (
	KindSyncPlaylist      Kind = "sync_playlist"
	KindPushPlaylist      Kind = "push_playlist"
	KindPopulateTracks    Kind = "populate_tracks"
	KindPopulateArtists   Kind = "populate_artists"
	KindPopulateAlbums    Kind = "populate_albums"
	KindPopulatePlaylists Kind = "populate_playlists"
)

// PopulateKind maps a catalog name (tracks, artists, albums, playlists) to its job kind.
func PopulateKind(catalog string) (Kind, error) {
	switch catalog {
	case "tracks":
		return KindPopulateTracks, nil
	case "artists":
		return KindPopulateArtists, nil
	case "albums":
		return KindPopulateAlbums, nil
	case "playlists":
		return KindPopulatePlaylists, nil
	default:
		return "", fmt.Errorf("%w: unknown catalog %q", shared.ErrInvalidArgument, catalog)
	}
}

// Job is one unit of work. Playlist jobs are identified by the local playlist id.
type Job struct {
	ID         string
	Kind       Kind
	PlaylistID int64
	URIs       []string // push only; nil reads the stored order
	Resync     bool     // sync only; use the resync stage list
	Push       bool     // sync only; queue a push afterwards
	Details    bool     // push only; also push name and description
}

// Handler runs jobs.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function into a [Handler].
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// Status is the lifecycle of a queued job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JobStatus is a snapshot of a job's progress.
type JobStatus struct {
	Job        Job
	Status     Status
	Attempts   int
	Err        error
	QueuedAt   time.Time
	FinishedAt time.Time
}

// QueueOpts configures a [Queue]. Zero values fall back to defaults.
type QueueOpts struct {
	Workers     int     // concurrent jobs (default: 4)
	Size        int     // buffered jobs (default: 256)
	RateLimit   float64 // job starts per second (default: 5)
	MaxAttempts int     // runs per job including the first (default: 1)
	Logger      *log.Logger
}

// Queue runs jobs on a bounded pool of workers.
//
// Dispatch never blocks: a full buffer returns [shared.ErrQueueFull]. Job starts
// are rate limited so concurrent jobs do not burst the remote API. A failed job
// is retried wholesale up to MaxAttempts.
type Queue struct {
	jobs        chan Job
	limiter     *rate.Limiter
	workers     int
	maxAttempts int
	logger      *log.Logger

	mu       sync.Mutex
	closed   bool
	statuses map[string]*JobStatus
	order    []string

	pending  sync.WaitGroup
	group    *errgroup.Group
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// NewQueue creates a stopped Queue.
func NewQueue(opts QueueOpts) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Queue{
		jobs:        make(chan Job, opts.Size),
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		statuses:    make(map[string]*JobStatus),
		loopDone:    make(chan struct{}),
	}
}

// Start launches the dispatch loop. Jobs queued before Start run once it is called.
func (q *Queue) Start(ctx context.Context, handler Handler) {
	ctx, q.cancel = context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(q.workers)
	q.group = group

	go func() {
		defer close(q.loopDone)
		for job := range q.jobs {
			if err := q.limiter.Wait(gctx); err != nil {
				q.finish(job.ID, 0, err)
				continue
			}
			group.Go(func() error {
				q.run(gctx, handler, job)
				return nil
			})
		}
	}()
}

// Dispatch queues job and returns its id.
func (q *Queue) Dispatch(job Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", shared.ErrQueueClosed
	}
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}

	q.pending.Add(1)
	select {
	case q.jobs <- job:
	default:
		q.pending.Done()
		return "", fmt.Errorf("%w: %s", shared.ErrQueueFull, job.Kind)
	}

	q.statuses[job.ID] = &JobStatus{Job: job, Status: StatusQueued, QueuedAt: time.Now()}
	q.order = append(q.order, job.ID)
	q.logger.Debug("job queued", "job", job.ID, "kind", job.Kind, "playlist", job.PlaylistID)
	return job.ID, nil
}

func (q *Queue) run(ctx context.Context, handler Handler, job Job) {
	logger := shared.WithLogger(q.logger, "job", job.ID, "kind", job.Kind)

	var err error
	attempts := 0
	for attempts < q.maxAttempts {
		attempts++
		q.setRunning(job.ID, attempts)

		if err = handler.Handle(ctx, job); err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		logger.Warn("job attempt failed", "attempt", attempts, "error", err)
	}

	if err != nil {
		logger.Error("job failed", "attempts", attempts, "error", err)
	} else {
		logger.Info("job succeeded", "attempts", attempts)
	}
	q.finish(job.ID, attempts, err)
}

func (q *Queue) setRunning(id string, attempt int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.statuses[id]; ok {
		st.Status = StatusRunning
		st.Attempts = attempt
	}
}

func (q *Queue) finish(id string, attempts int, err error) {
	q.mu.Lock()
	if st, ok := q.statuses[id]; ok {
		st.Status = StatusSucceeded
		if err != nil {
			st.Status = StatusFailed
		}
		st.Attempts = attempts
		st.Err = err
		st.FinishedAt = time.Now()
	}
	q.mu.Unlock()
	q.pending.Done()
}

// Status returns a snapshot of the job with id.
func (q *Queue) Status(id string) (JobStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[id]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

// Statuses returns snapshots of every job in dispatch order.
func (q *Queue) Statuses() []JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]JobStatus, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.statuses[id])
	}
	return out
}

// Failed returns snapshots of the failed jobs in dispatch order.
func (q *Queue) Failed() []JobStatus {
	return slices.DeleteFunc(q.Statuses(), func(st JobStatus) bool { return st.Status != StatusFailed })
}

// Shutdown waits until every queued job, including jobs queued by other jobs,
// has finished, then stops the queue. When ctx ends first the remaining jobs
// are canceled and ctx's error is returned once the workers exit.
func (q *Queue) Shutdown(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(idle)
	}()

	var waitErr error
	select {
	case <-idle:
	case <-ctx.Done():
		waitErr = ctx.Err()
		if q.cancel != nil {
			q.cancel()
		}
	}

	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	if q.group != nil {
		<-q.loopDone
		if err := q.group.Wait(); err != nil {
			waitErr = errors.Join(waitErr, err)
		}
		q.cancel()
	}
	return waitErr
}
