package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
)

const defaultPageSize = 50

// PopulateResult summarizes a population run.
type PopulateResult struct {
	Kind      Kind
	Pages     int
	Items     int      // items received
	Persisted int      // rows written
	Jobs      []string // sync jobs queued, playlists only
	Unqueued  []int64  // playlists whose sync could not be queued
}

// PopulatorOpts configures a [Populator].
type PopulatorOpts struct {
	Store         *repositories.Store
	Library       services.LibraryReader
	Orchestrator  *Orchestrator
	Dispatcher    Dispatcher
	CatalogStages []string
	PageSize      int
	Progress      chan<- ProgressUpdate
	Logger        *log.Logger
}

// Populator pages through the user's library and upserts every item.
//
// Pages are fetched one at a time. Each page is written in its own transaction,
// so a failure stops the run but keeps the pages already written.
type Populator struct {
	store         *repositories.Store
	library       services.LibraryReader
	orchestrator  *Orchestrator
	dispatcher    Dispatcher
	catalogStages []string
	pageSize      int
	progress      chan<- ProgressUpdate
	logger        *log.Logger
}

// NewPopulator creates a Populator from opts.
func NewPopulator(opts PopulatorOpts) *Populator {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Orchestrator == nil {
		opts.Orchestrator = NewOrchestrator(OrchestratorOpts{Store: opts.Store, Logger: opts.Logger})
	}
	return &Populator{
		store:         opts.Store,
		library:       opts.Library,
		orchestrator:  opts.Orchestrator,
		dispatcher:    opts.Dispatcher,
		catalogStages: opts.CatalogStages,
		pageSize:      opts.PageSize,
		progress:      opts.Progress,
		logger:        opts.Logger,
	}
}

// SetDispatcher sets where playlist sync jobs are queued.
func (p *Populator) SetDispatcher(d Dispatcher) {
	p.dispatcher = d
}

// Populate runs the population driver for kind.
func (p *Populator) Populate(ctx context.Context, kind Kind) (*PopulateResult, error) {
	switch kind {
	case KindPopulateTracks:
		return p.PopulateTracks(ctx)
	case KindPopulateArtists:
		return p.PopulateArtists(ctx)
	case KindPopulateAlbums:
		return p.PopulateAlbums(ctx)
	case KindPopulatePlaylists:
		return p.PopulatePlaylists(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownJob, kind)
	}
}

// paginate requests offset pages until the listing reports no next page.
func (p *Populator) paginate(ctx context.Context, result *PopulateResult, each func(items []models.Record) error) error {
	if p.library == nil {
		return fmt.Errorf("%w: no library reader", shared.ErrServiceUnavailable)
	}

	for offset := 0; ; offset += p.pageSize {
		page, err := p.fetchPage(ctx, result.Kind, offset)
		if err != nil {
			return err
		}
		result.Pages++
		result.Items += len(page.Items)

		if err := each(page.Items); err != nil {
			return err
		}
		sendProgress(p.progress, pageUpdate(result.Kind, result.Pages, len(page.Items)))

		if !page.HasNext() {
			return nil
		}
	}
}

func (p *Populator) fetchPage(ctx context.Context, kind Kind, offset int) (*services.Page, error) {
	switch kind {
	case KindPopulateTracks:
		return p.library.SavedTracks(ctx, p.pageSize, offset)
	case KindPopulateAlbums:
		return p.library.SavedAlbums(ctx, p.pageSize, offset)
	case KindPopulatePlaylists:
		return p.library.UserPlaylists(ctx, p.pageSize, offset)
	default:
		return nil, fmt.Errorf("%w: %s is not offset paged", shared.ErrUnknownJob, kind)
	}
}

// PopulateTracks upserts the saved tracks. Every page runs through the catalog
// stages before it is written.
func (p *Populator) PopulateTracks(ctx context.Context) (*PopulateResult, error) {
	result := &PopulateResult{Kind: KindPopulateTracks}

	err := p.paginate(ctx, result, func(items []models.Record) error {
		tracks := unwrap(items, "track")
		if len(tracks) == 0 {
			return nil
		}

		rec := models.NewSyncRecord(0, "", tracks, map[string]any{"kind": string(KindPopulateTracks)})
		res, err := p.orchestrator.Run(ctx, rec, SyncOptions{Stages: p.catalogStages}, TrackTarget{})
		if err != nil {
			return err
		}
		result.Persisted += res.Persisted
		return nil
	})
	return p.done(result, err)
}

// PopulateAlbums upserts the saved albums with their artists and track listings.
func (p *Populator) PopulateAlbums(ctx context.Context) (*PopulateResult, error) {
	result := &PopulateResult{Kind: KindPopulateAlbums}

	err := p.paginate(ctx, result, func(items []models.Record) error {
		return p.store.WithTx(ctx, func(tx *repositories.Store) error {
			for _, album := range unwrap(items, "album") {
				if _, err := tx.SaveAlbum(ctx, album); err != nil {
					return err
				}
				result.Persisted++
			}
			return nil
		})
	})
	return p.done(result, err)
}

// PopulatePlaylists upserts the user's playlists and queues a sync job for each.
//
// A sync that cannot be queued does not stop the listing, but the run returns
// an error naming how many playlists were left without one.
func (p *Populator) PopulatePlaylists(ctx context.Context) (*PopulateResult, error) {
	result := &PopulateResult{Kind: KindPopulatePlaylists}
	var queueErrs []error

	err := p.paginate(ctx, result, func(items []models.Record) error {
		var saved []*models.Playlist
		err := p.store.WithTx(ctx, func(tx *repositories.Store) error {
			for _, item := range items {
				if item.ID() == "" {
					continue
				}
				playlist, err := tx.Playlists.CreateOrUpdate(ctx, item)
				if err != nil {
					return err
				}
				saved = append(saved, playlist)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result.Persisted += len(saved)

		for _, playlist := range saved {
			if err := p.queueSync(playlist, result); err != nil {
				queueErrs = append(queueErrs, err)
			}
		}
		return nil
	})
	if err == nil && len(result.Unqueued) > 0 {
		err = fmt.Errorf("%d of %d playlist syncs not queued: %w",
			len(result.Unqueued), len(result.Unqueued)+len(result.Jobs), errors.Join(queueErrs...))
	}
	return p.done(result, err)
}

func (p *Populator) queueSync(playlist *models.Playlist, result *PopulateResult) error {
	if p.dispatcher == nil {
		p.logger.Debug("no dispatcher, skipping playlist sync", "playlist", playlist.ID)
		return nil
	}
	id, err := p.dispatcher.Dispatch(Job{Kind: KindSyncPlaylist, PlaylistID: playlist.ID})
	if err != nil {
		p.logger.Warn("failed to queue playlist sync", "playlist", playlist.ID, "name", playlist.Name, "error", err)
		result.Unqueued = append(result.Unqueued, playlist.ID)
		return fmt.Errorf("playlist %d: %w", playlist.ID, err)
	}
	result.Jobs = append(result.Jobs, id)
	return nil
}

// PopulateArtists upserts the followed artists. The listing is cursor paged,
// so it cannot share the offset loop.
func (p *Populator) PopulateArtists(ctx context.Context) (*PopulateResult, error) {
	result := &PopulateResult{Kind: KindPopulateArtists}
	if p.library == nil {
		return p.done(result, fmt.Errorf("%w: no library reader", shared.ErrServiceUnavailable))
	}

	after := ""
	for {
		page, err := p.library.FollowedArtists(ctx, p.pageSize, after)
		if err != nil {
			return p.done(result, err)
		}
		result.Pages++
		result.Items += len(page.Items)

		err = p.store.WithTx(ctx, func(tx *repositories.Store) error {
			for _, artist := range page.Items {
				if _, err := tx.Artists.CreateOrUpdate(ctx, artist); err != nil {
					return err
				}
				result.Persisted++
			}
			return nil
		})
		if err != nil {
			return p.done(result, err)
		}
		sendProgress(p.progress, pageUpdate(result.Kind, result.Pages, len(page.Items)))

		if !page.HasNext() || page.Cursors == nil || page.Cursors.After == "" || page.Cursors.After == after {
			return p.done(result, nil)
		}
		after = page.Cursors.After
	}
}

func (p *Populator) done(result *PopulateResult, err error) (*PopulateResult, error) {
	logger := shared.WithLogger(p.logger, "kind", result.Kind)
	if err != nil {
		logger.Error("population stopped", "pages", result.Pages, "persisted", result.Persisted, "error", err)
		return result, err
	}
	logger.Info("population complete", "pages", result.Pages, "items", result.Items, "persisted", result.Persisted)
	return result, nil
}

// unwrap returns the records nested under key, skipping items without one.
func unwrap(items []models.Record, key string) []models.Record {
	out := make([]models.Record, 0, len(items))
	for _, item := range items {
		if inner := item.Map(key); inner != nil && inner.ID() != "" {
			out = append(out, inner)
		}
	}
	return out
}
