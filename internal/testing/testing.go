// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// NewTestDB opens a migrated in-memory database that is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// NewDiscardLogger returns a logger that writes nowhere.
func NewDiscardLogger() *log.Logger {
	return log.New(io.Discard)
}

// TrackRecord builds a raw track payload with the given artists.
func TrackRecord(id, name string, durationMS int, artists ...models.Record) models.Record {
	items := make([]any, len(artists))
	for i, a := range artists {
		items[i] = map[string]any(a)
	}
	return models.Record{
		"id":          id,
		"name":        name,
		"duration_ms": float64(durationMS),
		"uri":         models.TrackURI(id),
		"href":        "https://api.spotify.com/v1/tracks/" + id,
		"artists":     items,
	}
}

// ArtistRecord builds a simplified raw artist payload.
func ArtistRecord(id, name string) models.Record {
	return models.Record{
		"id":   id,
		"name": name,
		"uri":  "spotify:artist:" + id,
	}
}

// PlaylistRecord builds a raw playlist payload.
func PlaylistRecord(id, name string, total int) models.Record {
	return models.Record{
		"id":     id,
		"name":   name,
		"owner":  map[string]any{"id": "owner", "display_name": "Owner"},
		"tracks": map[string]any{"total": float64(total)},
		"uri":    "spotify:playlist:" + id,
	}
}

// MockRoundTripper returns a canned response and records calls.
type MockRoundTripper struct {
	Response    *http.Response
	Err         error
	Calls       int
	LastRequest *http.Request
	mu          sync.Mutex
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastRequest = req
	return m.Response, m.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// SearchStub is a scripted track searcher keyed by query.
type SearchStub struct {
	mu      sync.Mutex
	Results map[string][]models.Record
	Errs    map[string]error
	Queries []string
}

func (s *SearchStub) SearchTracks(ctx context.Context, query string, limit int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, query)
	if err := s.Errs[query]; err != nil {
		return nil, err
	}
	results := s.Results[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Seq returns ids like prefix0, prefix1, ...
func Seq(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}
