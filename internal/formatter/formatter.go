// package formatter renders a stored playlist as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/samber/lo"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name, case-insensitively. "markdown" and "txt" are aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
	}
}

// ExportTrack is one row of a playlist export.
type ExportTrack struct {
	Position   int      `json:"position"`
	SpotifyID  string   `json:"spotify_id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
}

// PlaylistExport is a playlist with its tracks in stored order.
type PlaylistExport struct {
	Playlist *models.Playlist `json:"playlist"`
	Tracks   []ExportTrack    `json:"tracks"`
}

// LoadPlaylistExport reads the playlist and its ordered tracks from the store.
func LoadPlaylistExport(ctx context.Context, store *repositories.Store, playlistID int64) (*PlaylistExport, error) {
	playlist, err := store.Playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	rows, err := store.Playlists.Tracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	export := &PlaylistExport{Playlist: playlist, Tracks: make([]ExportTrack, 0, len(rows))}
	for _, row := range rows {
		artists, err := store.Artists.ForTrack(ctx, row.Track.ID)
		if err != nil {
			return nil, err
		}
		export.Tracks = append(export.Tracks, ExportTrack{
			Position:   row.Position,
			SpotifyID:  row.Track.SpotifyID,
			Name:       row.Track.Name,
			Artists:    lo.Map(artists, func(a *models.Artist, _ int) string { return a.Name }),
			DurationMS: row.Track.DurationMS,
			URI:        row.Track.CanonicalURI(),
		})
	}
	return export, nil
}

// Render encodes export in the given format.
func Render(export *PlaylistExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	case FormatJSON:
		return json.MarshalIndent(export, "", "  ")
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Write renders export to w.
func Write(w io.Writer, export *PlaylistExport, format Format) error {
	data, err := Render(export, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteFile renders export into path.
func WriteFile(path string, export *PlaylistExport, format Format) error {
	data, err := Render(export, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// ExportToCSV writes one row per track: position, id, name, artists, duration and uri.
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "ID", "Name", "Artists", "Duration", "URI"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			strconv.Itoa(track.Position),
			track.SpotifyID,
			track.Name,
			strings.Join(track.Artists, "; "),
			FormatDuration(track.DurationMS),
			track.URI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, the playlist details and a numbered track list.
func ExportToMarkdown(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Playlist

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if p.Description != nil && *p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", *p.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", Visibility(p.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, artistLine(track), track.Name, FormatDuration(track.DurationMS))
	}
	return buf.Bytes(), nil
}

// ExportToText renders the playlist name and one "artist - name" line per track.
func ExportToText(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))
	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, artistLine(track), track.Name)
	}
	return buf.Bytes(), nil
}

func artistLine(track ExportTrack) string {
	if len(track.Artists) == 0 {
		return "Unknown Artist"
	}
	return strings.Join(track.Artists, ", ")
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Visibility names a playlist's public flag.
func Visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}
