// Package services talks to the Spotify Web API on behalf of build runs.
//
// # Catalog
//
// [SpotifyService] implements tasks.Catalog:
//   - CurrentUser : GET /me (id and country)
//   - SavedTracks : GET /me/tracks, offset = limit × page index
//   - NewReleases : GET /search with q=tag:new, type=album
//   - Releases : GET /albums, at most 20 ids per call
//   - CreatePlaylist : POST /users/{id}/playlists
//   - AddTracks : POST /playlists/{id}/tracks, at most 100 uris per call
//
// Responses are decoded into wire records and converted to models types
// before they leave the package. A null item in a listing becomes a nil slot
// in the returned [models.Page].
//
// # Authorization
//
// Each call asks its [Authorizer] (the session) for a header first. When that
// fails the error is returned unchanged and no request is sent.
//
// # Error Handling
//
// Everything else that goes wrong is a [shared.TransportError] carrying the
// operation, method, URL and HTTP status. There is no retry and no special
// handling of 429 responses.
//
// # Pacing
//
// [WithRateLimit] installs a golang.org/x/time/rate limiter shared by all
// calls of one service. The default is unlimited.
//
// # Raw access
//
// [APIService] sends authorized requests to arbitrary paths and returns the
// raw [APIResponse], for the api command.
package services
