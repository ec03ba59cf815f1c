// Package tasks builds playlists of new releases by artists already in a user's library.
//
// # Pipeline
//
// [ReleaseEngine.Run] performs one build:
//
//  1. Fetch the user's profile for the user id and market
//  2. [BuildAffinity] : walk every saved-tracks page into a frozen [AffinitySet]
//  3. [MatchReleases] : walk every new-release page, keeping releases with at
//     least one artist in the affinity set, deduplicated by release id
//  4. [ResolveReleases] : look up full album records in batches of
//     [MaxBatchSize], all batches in flight at once and joined
//  5. [FirstTrackURIs] : take the first track of each album
//  6. [AssemblePlaylist] : create the playlist, then append the tracks
//
// Steps 2 and 3 never overlap; a release can only be matched against a
// complete affinity set.
//
// # Bad data
//
// Empty slots in either listing are skipped. Each one is logged with its
// listing, page and in-page index and returned in [BuildResult.Skipped],
// saved-track slots first. Every other error aborts the run.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends use
// select with default so a slow reader never blocks a build.
//
// # Run history
//
// An optional [RunRecorder] (repositories.RunRepository) stores each run and
// its matches. Recording failures are logged and do not fail the build.
package tasks
