// Package pipeline threads a [models.SyncRecord] through an ordered list of stages.
//
// Each [Stage] receives the record and a continuation. It either calls the
// continuation with a replacement record or returns without calling it, which
// stops the remaining stages. Stages never mutate the record they receive; they
// build a new one with [models.SyncRecord.WithTracks].
//
// Stage lists are assembled per run from names through a [Registry], so catalog
// population and playlist resync share implementations while composing them
// differently:
//
//	dedupe         drop repeats of (id, duration, popularity), first wins
//	dedupe_name    drop repeats by id, then by lowercased name and duration
//	normalize      trim names and coerce flags and counters
//	validate       keep tracks with an id, a name and a positive duration
//	live_versions  interleave live recordings found by search
package pipeline
