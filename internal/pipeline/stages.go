package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
)

// Stage names accepted by the default [Registry].
const (
	StageDedupe       = "dedupe"
	StageDedupeByName = "dedupe_name"
	StageNormalize    = "normalize"
	StageValidate     = "validate"
	StageLiveVersions = "live_versions"
)

// DefaultLiveVersionLimit caps the live recordings fetched per track.
const DefaultLiveVersionLimit = 2

// Deduplicate drops tracks whose (id, duration, popularity) key was already
// seen. Survivors keep first-occurrence order.
func Deduplicate() Stage {
	return Transform(StageDedupe, func(_ context.Context, tracks []models.Record) ([]models.Record, error) {
		seen := make(map[string]struct{}, len(tracks))
		out := make([]models.Record, 0, len(tracks))
		for _, track := range tracks {
			key := dedupeKey(track)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, track)
		}
		return out, nil
	})
}

// dedupeKey renders numeric fields through [models.ToInt] so 200000 and
// 200000.0 collide; an absent field keys differently from zero.
func dedupeKey(track models.Record) string {
	return track.ID() + "|" + keyPart(track, "duration_ms") + "|" + keyPart(track, "popularity")
}

func keyPart(track models.Record, key string) string {
	v, ok := track[key]
	if !ok || v == nil {
		return "-"
	}
	if n, ok := models.ToInt(v); ok {
		return fmt.Sprint(n)
	}
	return fmt.Sprint(v)
}

// DeduplicateByName drops repeated ids, then repeats of the lowercased name
// together with the duration. Catalog population uses it to fold re-releases
// of the same recording.
func DeduplicateByName() Stage {
	return Transform(StageDedupeByName, func(_ context.Context, tracks []models.Record) ([]models.Record, error) {
		ids := make(map[string]struct{}, len(tracks))
		names := make(map[string]struct{}, len(tracks))
		out := make([]models.Record, 0, len(tracks))
		for _, track := range tracks {
			if _, ok := ids[track.ID()]; ok {
				continue
			}
			ids[track.ID()] = struct{}{}

			nameKey := strings.ToLower(track.String("name")) + "-" + keyPart(track, "duration_ms")
			if _, ok := names[nameKey]; ok {
				continue
			}
			names[nameKey] = struct{}{}
			out = append(out, track)
		}
		return out, nil
	})
}

// Normalize trims names, coerces explicit and is_local to booleans and
// duration_ms and popularity to integers. Absent values become false or 0.
func Normalize() Stage {
	return Transform(StageNormalize, func(_ context.Context, tracks []models.Record) ([]models.Record, error) {
		out := make([]models.Record, len(tracks))
		for i, track := range tracks {
			n := track.Clone()
			n["name"] = strings.TrimSpace(track.String("name"))
			n["explicit"] = models.ToBool(track["explicit"])
			n["is_local"] = models.ToBool(track["is_local"])
			n["duration_ms"] = track.IntOr("duration_ms", 0)
			n["popularity"] = track.IntOr("popularity", 0)
			out[i] = n
		}
		return out, nil
	})
}

// Validate keeps tracks with a non-empty id and name and a positive
// duration_ms. Dropped tracks are not reported individually.
func Validate() Stage {
	return Transform(StageValidate, func(_ context.Context, tracks []models.Record) ([]models.Record, error) {
		out := make([]models.Record, 0, len(tracks))
		for _, track := range tracks {
			if isValidTrack(track) {
				out = append(out, track)
			}
		}
		return out, nil
	})
}

func isValidTrack(track models.Record) bool {
	if track.ID() == "" || track.String("name") == "" {
		return false
	}
	duration, ok := track.Int("duration_ms")
	return ok && duration > 0
}

// LiveVersions searches for live recordings of every track and inserts the
// matches right after their source track. A failed search is logged and the
// track is kept without additions.
func LiveVersions(searcher services.TrackSearcher, limit int, logger *log.Logger) Stage {
	if limit <= 0 {
		limit = DefaultLiveVersionLimit
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return Transform(StageLiveVersions, func(ctx context.Context, tracks []models.Record) ([]models.Record, error) {
		if len(tracks) == 0 {
			return tracks, nil
		}

		out := make([]models.Record, 0, len(tracks))
		for _, track := range tracks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out = append(out, track)

			name := track.String("name")
			artists := track.Records("artists")
			if name == "" || len(artists) == 0 || artists[0].String("name") == "" {
				continue
			}

			matches, err := searcher.SearchTracks(ctx, LiveQuery(artists[0].String("name"), name), limit)
			if err != nil {
				logger.Warn("live version search failed", "track", name, "error", err)
				continue
			}

			for _, match := range matches {
				if id := match.ID(); id != "" && id != track.ID() {
					out = append(out, match)
				}
			}
		}
		return out, nil
	})
}

// LiveQuery builds the search query for live recordings of a track. " live"
// is appended unless the name already mentions it.
func LiveQuery(artist, track string) string {
	q := fmt.Sprintf(`artist:"%s" track:"%s"`, artist, track)
	if !strings.Contains(strings.ToLower(track), "live") {
		q += " live"
	}
	return q
}
