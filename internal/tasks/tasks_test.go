package tasks

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

// mockCatalog is an in-memory remote catalog.
type mockCatalog struct {
	mu sync.Mutex

	tracks  map[string][]models.Record
	listErr error

	search map[string][]models.Record

	replaced     map[string][]string
	replaceCalls int
	replaceErr   error
	snapshot     string
	details      map[string]map[string]any
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		tracks:   make(map[string][]models.Record),
		search:   make(map[string][]models.Record),
		replaced: make(map[string][]string),
		details:  make(map[string]map[string]any),
		snapshot: "snap-1",
	}
}

func (m *mockCatalog) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.tracks[playlistID], nil
}

func (m *mockCatalog) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) (*services.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		if _, partial := m.replaceErr.(*services.PartialPushError); partial {
			return &services.Snapshot{SnapshotID: m.snapshot}, m.replaceErr
		}
		return nil, m.replaceErr
	}
	m.replaced[playlistID] = append([]string{}, uris...)
	return &services.Snapshot{SnapshotID: m.snapshot}, nil
}

func (m *mockCatalog) UpdatePlaylistDetails(ctx context.Context, playlistID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[playlistID] = details
	return nil
}

func (m *mockCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := m.search[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *mockCatalog) SavedTracks(ctx context.Context, limit, offset int) (*services.Page, error) {
	return &services.Page{}, nil
}

func (m *mockCatalog) SavedAlbums(ctx context.Context, limit, offset int) (*services.Page, error) {
	return &services.Page{}, nil
}

func (m *mockCatalog) FollowedArtists(ctx context.Context, limit int, after string) (*services.Page, error) {
	return &services.Page{}, nil
}

func (m *mockCatalog) UserPlaylists(ctx context.Context, limit, offset int) (*services.Page, error) {
	return &services.Page{}, nil
}

func (m *mockCatalog) pushed(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced[playlistID]
}

var _ services.Catalog = (*mockCatalog)(nil)

// fakeDispatcher records jobs instead of running them.
type fakeDispatcher struct {
	mu    sync.Mutex
	jobs  []Job
	err   error
	limit int // jobs accepted before ErrQueueFull, 0 for no limit
}

func (d *fakeDispatcher) Dispatch(job Job) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	if d.limit > 0 && len(d.jobs) >= d.limit {
		return "", shared.ErrQueueFull
	}
	d.jobs = append(d.jobs, job)
	return fmt.Sprintf("job-%d", len(d.jobs)), nil
}

func newTestStore(t *testing.T) *repositories.Store {
	t.Helper()
	return repositories.NewStore(tu.NewTestDB(t))
}

func seedPlaylist(t *testing.T, store *repositories.Store, spotifyID string) *models.Playlist {
	t.Helper()
	playlist, err := store.Playlists.CreateOrUpdate(context.Background(), tu.PlaylistRecord(spotifyID, "Mix "+spotifyID, 0))
	if err != nil {
		t.Fatalf("failed to seed playlist: %v", err)
	}
	return playlist
}

func storedOrder(t *testing.T, store *repositories.Store, playlistID int64) []string {
	t.Helper()
	tracks, err := store.Playlists.Tracks(context.Background(), playlistID)
	if err != nil {
		t.Fatalf("failed to read playlist tracks: %v", err)
	}
	ids := make([]string, len(tracks))
	for i, pt := range tracks {
		if pt.Position != i {
			t.Errorf("expected contiguous positions, got %d at index %d", pt.Position, i)
		}
		ids[i] = pt.Track.SpotifyID
	}
	return ids
}

func drain(progress chan ProgressUpdate) []ProgressUpdate {
	var updates []ProgressUpdate
	for {
		select {
		case u := <-progress:
			updates = append(updates, u)
		default:
			return updates
		}
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		state    State
		name     string
		terminal bool
	}{
		{Fetching, "fetching", false},
		{Transforming, "transforming", false},
		{Persisting, "persisting", false},
		{PushingRemote, "pushing_remote", false},
		{Done, "done", true},
		{Failed, "failed", true},
		{State(99), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.state.String() != tt.name {
				t.Errorf("expected %q, got %q", tt.name, tt.state.String())
			}
			if tt.state.Terminal() != tt.terminal {
				t.Errorf("expected terminal=%v", tt.terminal)
			}
		})
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{State: Done})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 1)
		sendProgress(progress, ProgressUpdate{State: Fetching})
		sendProgress(progress, ProgressUpdate{State: Done})

		if got := drain(progress); len(got) != 1 || got[0].State != Fetching {
			t.Errorf("expected only the first update, got %v", got)
		}
	})
}
