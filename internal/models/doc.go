// Package models defines the catalog entities persisted by spotsync and the raw
// records that flow from the remote API into the pipeline.
//
// Raw payloads are kept as [Record] values (decoded JSON objects) until a
// repository maps them onto [Track], [Artist], [Album] or [Playlist]. This keeps
// the difference between an absent field and a zero value that the persisted
// defaults depend on.
//
// [SyncRecord] is the immutable unit passed between pipeline stages: an ordered
// track list plus playlist metadata.
package models
