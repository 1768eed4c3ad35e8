package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is a raw remote payload decoded from JSON.
//
// Absence of a key is meaningful: a missing "popularity" persists as NULL while
// a present zero persists as 0. Numbers decode as float64.
type Record map[string]any

// Clone returns a shallow copy. Stages replace top-level keys on the copy and never mutate the input.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether key is present with a non-null value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// ID returns the remote identifier.
func (r Record) ID() string {
	return r.String("id")
}

// String returns the value at key when it is a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// OptString returns a pointer to the string at key, or nil when absent.
func (r Record) OptString(key string) *string {
	s, ok := r[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// Int returns the value at key coerced to an int.
func (r Record) Int(key string) (int, bool) {
	if !r.Has(key) {
		return 0, false
	}
	return ToInt(r[key])
}

// IntOr returns the int at key or def when absent or not numeric.
func (r Record) IntOr(key string, def int) int {
	if n, ok := r.Int(key); ok {
		return n
	}
	return def
}

// OptInt returns a pointer to the int at key, or nil when absent.
func (r Record) OptInt(key string) *int {
	if n, ok := r.Int(key); ok {
		return &n
	}
	return nil
}

// BoolOr returns the value at key coerced to a bool, or def when absent.
func (r Record) BoolOr(key string, def bool) bool {
	if !r.Has(key) {
		return def
	}
	return ToBool(r[key])
}

// Map returns the nested object at key.
func (r Record) Map(key string) Record {
	switch m := r[key].(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	}
	return nil
}

// Records returns the nested array of objects at key, skipping non-object elements.
func (r Record) Records(key string) []Record {
	switch items := r[key].(type) {
	case []Record:
		return items
	case []any:
		out := make([]Record, 0, len(items))
		for _, item := range items {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Record(m))
			case Record:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Strings returns the nested array of strings at key.
func (r Record) Strings(key string) []string {
	switch items := r[key].(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// TrackURI returns the canonical track URI, falling back to spotify:track:<id>.
func (r Record) TrackURI() string {
	if uri := r.String("uri"); uri != "" {
		return uri
	}
	return TrackURI(r.ID())
}

// TrackURI builds the canonical URI for a remote track id.
func TrackURI(spotifyID string) string {
	return "spotify:track:" + spotifyID
}

// ToInt coerces JSON scalars to int. Floats are truncated.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int(f), true
		}
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToBool coerces JSON scalars to bool. Strings parse with [strconv.ParseBool] and
// otherwise count as true when non-empty.
func ToBool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
		return b != ""
	}
	if n, ok := ToInt(v); ok {
		return n != 0
	}
	return true
}
