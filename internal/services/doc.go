// Package services defines the remote catalog API surface and implements it for the Spotify Web API.
//
// # Interfaces
//
// Consumers depend on the narrow interfaces rather than the client:
//   - [PlaylistReader] : paginated playlist item reads
//   - [PlaylistWriter] : chunked track replacement and detail updates
//   - [TrackSearcher] : catalog search used by enrichment
//   - [LibraryReader] : the current user's saved tracks, albums, followed artists and playlists
//
// # Transport
//
// [SpotifyClient] is built on an [http.Client] whose transport is a [Chain] of
// [Middleware]. Request logging runs outermost, then caller middleware, then
// [BearerAuth] backed by an oauth2 token source, and finally [TranslateErrors] which turns
// non-2xx responses into [*APIError].
//
// # Error Handling
//
//   - [shared.ErrNotAuthenticated] : the token source could not produce a token
//   - [shared.ErrAPIRequest] : the request failed or the API answered non-2xx
//   - [shared.ErrPartialPush] : a chunked replacement failed after the first chunk committed
//
// Payloads are decoded into [models.Record] so absent fields stay distinguishable
// from zero values all the way to persistence.
package services
