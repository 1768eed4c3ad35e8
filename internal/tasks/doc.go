// Package tasks runs the catalog sync jobs with real-time progress reporting.
//
// # Sync State Machine
//
// [Orchestrator] moves one record through these states:
//
//  1. Fetching : list every track of the remote playlist
//  2. Transforming : run the record through the configured pipeline stages
//  3. Persisting : upsert tracks and artists, then replace the playlist's
//     ordered membership, all in one transaction
//  4. PushingRemote : optional, queue a [KindPushPlaylist] job with the
//     persisted order
//  5. Done
//
// Any failure ends in Failed and is returned as a [*SyncError] naming the state.
//
// # Population
//
// [Populator] pages through the user's saved tracks, saved albums, followed
// artists and playlists. Tracks reuse the orchestrator with the catalog stage
// list and a [TrackTarget]; playlists queue a sync job per playlist.
//
// # Jobs
//
// [Queue] runs [Job] values on a bounded worker pool with a start-rate limit.
// Dispatch never blocks. [Engine] wires everything together and handles every
// job [Kind].
//
// # Progress Reporting
//
// Runs send [ProgressUpdate] values on an optional channel using select with
// default, so a slow reader never stalls a job.
package tasks
