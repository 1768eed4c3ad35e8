package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/pipeline"
	"github.com/desertthunder/spotsync/internal/shared"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

var playlistStages = []string{pipeline.StageDedupe, pipeline.StageNormalize, pipeline.StageValidate}

func newTestOrchestrator(t *testing.T, cat *mockCatalog, dispatcher Dispatcher) (*Orchestrator, *models.Playlist) {
	t.Helper()
	store := newTestStore(t)
	playlist := seedPlaylist(t, store, "p1")

	opts := OrchestratorOpts{
		Store:    store,
		Reader:   cat,
		Searcher: cat,
		Logger:   tu.NewDiscardLogger(),
	}
	if dispatcher != nil {
		opts.Dispatcher = dispatcher
	}
	return NewOrchestrator(opts), playlist
}

func TestOrchestrator_SyncPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("dedupe normalize validate end to end", func(t *testing.T) {
		cat := newMockCatalog()
		cat.tracks["p1"] = []models.Record{
			{"id": "a", "name": "Song", "duration_ms": 200000.0},
			{"id": "a", "name": "Song", "duration_ms": 200000.0},
			{"id": "b", "name": "", "duration_ms": 0.0},
		}
		o, playlist := newTestOrchestrator(t, cat, nil)
		progress := make(chan ProgressUpdate, 16)

		result, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages, Progress: progress})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.State != Done {
			t.Errorf("expected Done, got %s", result.State)
		}
		if result.Fetched != 3 || result.Kept != 1 || result.Persisted != 1 {
			t.Errorf("unexpected counts %+v", result)
		}
		if len(result.URIs) != 1 || result.URIs[0] != "spotify:track:a" {
			t.Errorf("unexpected uris %v", result.URIs)
		}
		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "a" {
			t.Errorf("expected stored [a], got %v", got)
		}

		var states []string
		for _, u := range drain(progress) {
			states = append(states, u.State.String())
		}
		if got := strings.Join(states, ","); got != "fetching,transforming,persisting,done" {
			t.Errorf("unexpected state sequence %s", got)
		}
	})

	t.Run("preserves remote order and links artists", func(t *testing.T) {
		cat := newMockCatalog()
		band := tu.ArtistRecord("ar1", "Band")
		cat.tracks["p1"] = []models.Record{
			tu.TrackRecord("t3", "Three", 1000, band),
			tu.TrackRecord("t1", "One", 1000, band),
			tu.TrackRecord("t2", "Two", 1000, band, tu.ArtistRecord("ar2", "Guest")),
		}
		o, playlist := newTestOrchestrator(t, cat, nil)

		if _, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "t3,t1,t2" {
			t.Errorf("expected [t3 t1 t2], got %v", got)
		}

		t2, err := o.store.Tracks.GetBySpotifyID(ctx, "t2")
		if err != nil {
			t.Fatalf("failed to read track: %v", err)
		}
		artists, err := o.store.Artists.ForTrack(ctx, t2.ID)
		if err != nil || len(artists) != 2 {
			t.Errorf("expected 2 artists on t2, got %d (%v)", len(artists), err)
		}
	})

	t.Run("resync replaces membership", func(t *testing.T) {
		cat := newMockCatalog()
		cat.tracks["p1"] = []models.Record{
			tu.TrackRecord("x", "X", 1000),
			tu.TrackRecord("y", "Y", 1000),
			tu.TrackRecord("z", "Z", 1000),
		}
		o, playlist := newTestOrchestrator(t, cat, nil)

		if _, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages}); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}

		cat.tracks["p1"] = []models.Record{
			tu.TrackRecord("z", "Z", 1000),
			tu.TrackRecord("x", "X", 1000),
		}
		if _, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages}); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}

		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "z,x" {
			t.Errorf("expected [z x], got %v", got)
		}

		if _, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages}); err != nil {
			t.Fatalf("repeat sync failed: %v", err)
		}
		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "z,x" {
			t.Errorf("expected repeat to be a no-op, got %v", got)
		}
	})

	t.Run("live versions are interleaved", func(t *testing.T) {
		cat := newMockCatalog()
		band := tu.ArtistRecord("ar1", "Band")
		cat.tracks["p1"] = []models.Record{
			tu.TrackRecord("t1", "Song", 1000, band),
			tu.TrackRecord("t2", "Other", 1000, band),
		}
		cat.search[pipeline.LiveQuery("Band", "Song")] = []models.Record{
			tu.TrackRecord("t1", "Song", 1000, band),
			tu.TrackRecord("l1", "Song (Live)", 1200, band),
		}

		o, playlist := newTestOrchestrator(t, cat, nil)
		stages := append(append([]string{}, playlistStages...), pipeline.StageLiveVersions)

		result, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: stages})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "t1,l1,t2" {
			t.Errorf("expected [t1 l1 t2], got %v", got)
		}
		if result.Kept != 3 {
			t.Errorf("expected 3 kept tracks, got %d", result.Kept)
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		cat := newMockCatalog()
		cat.listErr = fmt.Errorf("%w: status 500", shared.ErrAPIRequest)
		o, playlist := newTestOrchestrator(t, cat, nil)
		progress := make(chan ProgressUpdate, 16)

		_, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages, Progress: progress})

		var syncErr *SyncError
		if !errors.As(err, &syncErr) || syncErr.State != Fetching {
			t.Fatalf("expected SyncError in Fetching, got %v", err)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}

		updates := drain(progress)
		if last := updates[len(updates)-1]; last.State != Failed {
			t.Errorf("expected final update Failed, got %s", last.State)
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, newMockCatalog(), nil)

		_, err := o.SyncPlaylist(ctx, 999, SyncOptions{Stages: playlistStages})
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("unknown stage", func(t *testing.T) {
		cat := newMockCatalog()
		o, playlist := newTestOrchestrator(t, cat, nil)

		_, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: []string{"shuffle"}})

		var syncErr *SyncError
		if !errors.As(err, &syncErr) || syncErr.State != Transforming {
			t.Fatalf("expected SyncError in Transforming, got %v", err)
		}
		if !errors.Is(err, shared.ErrUnknownStage) {
			t.Errorf("expected ErrUnknownStage, got %v", err)
		}
	})

	t.Run("persist failure keeps previous contents", func(t *testing.T) {
		cat := newMockCatalog()
		cat.tracks["p1"] = []models.Record{tu.TrackRecord("a", "A", 1000)}
		o, playlist := newTestOrchestrator(t, cat, nil)

		if _, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages}); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}

		cat.tracks["p1"] = []models.Record{
			tu.TrackRecord("c", "C", 1000),
			{"id": "d", "duration_ms": 1000.0},
		}
		_, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{})

		var syncErr *SyncError
		if !errors.As(err, &syncErr) || syncErr.State != Persisting {
			t.Fatalf("expected SyncError in Persisting, got %v", err)
		}
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "a" {
			t.Errorf("expected previous contents [a], got %v", got)
		}
		if _, err := o.store.Tracks.GetBySpotifyID(ctx, "c"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected track c to be rolled back, got %v", err)
		}
	})
}

func TestOrchestrator_Push(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a push job with the persisted order", func(t *testing.T) {
		cat := newMockCatalog()
		cat.tracks["p1"] = []models.Record{
			tu.TrackRecord("b", "B", 1000),
			{"id": "a", "name": "A", "duration_ms": 1000.0},
		}
		dispatcher := &fakeDispatcher{}
		o, playlist := newTestOrchestrator(t, cat, dispatcher)

		result, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages, Push: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.PushJobID != "job-1" {
			t.Errorf("expected push job id, got %q", result.PushJobID)
		}
		if len(dispatcher.jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(dispatcher.jobs))
		}

		job := dispatcher.jobs[0]
		if job.Kind != KindPushPlaylist || job.PlaylistID != playlist.ID {
			t.Errorf("unexpected job %+v", job)
		}
		if strings.Join(job.URIs, ",") != "spotify:track:b,spotify:track:a" {
			t.Errorf("unexpected uris %v", job.URIs)
		}
		if cat.replaceCalls != 0 {
			t.Error("expected no remote write from the sync itself")
		}
	})

	t.Run("no push unless requested", func(t *testing.T) {
		dispatcher := &fakeDispatcher{}
		o, playlist := newTestOrchestrator(t, newMockCatalog(), dispatcher)

		if _, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(dispatcher.jobs) != 0 {
			t.Errorf("expected no jobs, got %d", len(dispatcher.jobs))
		}
	})

	t.Run("dispatch failure leaves local state committed", func(t *testing.T) {
		cat := newMockCatalog()
		cat.tracks["p1"] = []models.Record{tu.TrackRecord("a", "A", 1000)}
		dispatcher := &fakeDispatcher{err: shared.ErrQueueFull}
		o, playlist := newTestOrchestrator(t, cat, dispatcher)

		result, err := o.SyncPlaylist(ctx, playlist.ID, SyncOptions{Stages: playlistStages, Push: true})

		var syncErr *SyncError
		if !errors.As(err, &syncErr) || syncErr.State != PushingRemote {
			t.Fatalf("expected SyncError in PushingRemote, got %v", err)
		}
		if !errors.Is(err, shared.ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
		if result == nil || result.Persisted != 1 {
			t.Errorf("expected the persisted result alongside the error, got %+v", result)
		}
		if got := storedOrder(t, o.store, playlist.ID); strings.Join(got, ",") != "a" {
			t.Errorf("expected committed contents [a], got %v", got)
		}
	})
}

func TestOrchestrator_RunTrackTarget(t *testing.T) {
	store := newTestStore(t)
	o := NewOrchestrator(OrchestratorOpts{Store: store, Logger: tu.NewDiscardLogger()})

	rec := models.NewSyncRecord(0, "", []models.Record{
		tu.TrackRecord("t1", "Song", 1000, tu.ArtistRecord("a1", "A")),
		tu.TrackRecord("t2", "song", 1000, tu.ArtistRecord("a1", "A")),
		tu.TrackRecord("t3", "Other", 2000),
	}, nil)

	result, err := o.Run(context.Background(), rec, SyncOptions{
		Stages: []string{pipeline.StageDedupeByName, pipeline.StageNormalize},
		Push:   true,
	}, TrackTarget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Persisted != 2 {
		t.Errorf("expected 2 persisted tracks, got %d", result.Persisted)
	}
	if result.PushJobID != "" || len(result.URIs) != 0 {
		t.Error("expected catalog runs to never push")
	}
}
