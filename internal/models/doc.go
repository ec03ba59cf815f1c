// Package models defines domain entities and persistence interfaces for the radar release-matching service.
//
// The package contains two categories of types:
//
// 1. Catalog entities: transport-neutral records converted from the music service's wire shapes
//   - [Credential] : OAuth credential owned by the session
//   - [User] : Current user identity and market
//   - [SavedTrack] : Track from the user's library with its artist identities
//   - [Release] : New-release album record with artists, images and track references
//   - [Page] : One page of a paginated listing with an explicit continuation token
//
// 2. Persistent entities: database-backed records of build runs
//   - [BuildRun] : One affinity playlist build with counts, status and timestamps
//   - [RunMatch] : A release matched during a build run
//
// Persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
