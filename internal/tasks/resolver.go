package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/radar/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBatchSize is the most album ids a single bulk lookup accepts.
	MaxBatchSize = 20
	// MaxAppendSize is the most track uris a single playlist append accepts.
	MaxAppendSize = 100
)

// ReleaseResolver looks up full release records by id.
type ReleaseResolver interface {
	Releases(ctx context.Context, market string, ids []string) ([]models.Release, error)
}

// PlaylistWriter creates playlists and appends tracks to them.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, userID, name string, public bool, description string) (string, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// Partition splits items into consecutive batches of at most size elements.
//
// It returns nil for an empty input or a non-positive size.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 || size < 1 {
		return nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// ResolveReleases fetches full records for ids, one concurrent lookup per batch.
//
// Results are flattened in batch order. The first failed lookup cancels the
// rest and is returned; no partial result is returned with it.
func ResolveReleases(ctx context.Context, r ReleaseResolver, market string, ids []string) ([]models.Release, error) {
	batches := Partition(ids, MaxBatchSize)
	if len(batches) == 0 {
		return nil, nil
	}

	results := make([][]models.Release, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			releases, err := r.Releases(gctx, market, batch)
			if err != nil {
				return fmt.Errorf("failed to resolve batch %d of %d: %w", i+1, len(batches), err)
			}
			results[i] = releases
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var releases []models.Release
	for _, batch := range results {
		releases = append(releases, batch...)
	}
	return releases, nil
}

// FirstTrackURIs picks the first track of each release.
//
// Releases without tracks contribute nothing; their ids are returned as missing.
func FirstTrackURIs(releases []models.Release) (uris []string, missing []string) {
	for _, r := range releases {
		if len(r.Tracks) == 0 || r.Tracks[0].URI == "" {
			missing = append(missing, r.ID)
			continue
		}
		uris = append(uris, r.Tracks[0].URI)
	}
	return uris, missing
}

// PlaylistSpec describes the playlist a build run writes.
type PlaylistSpec struct {
	Name        string
	Description string
	Public      bool
}

// AssemblePlaylist creates the playlist and then appends uris to it in chunks
// of [MaxAppendSize]. With no uris the playlist is still created.
func AssemblePlaylist(ctx context.Context, w PlaylistWriter, userID string, spec PlaylistSpec, uris []string, progress chan<- ProgressUpdate) (string, error) {
	sendProgress(progress, createPlaylistUpdate(spec.Name))

	playlistID, err := w.CreatePlaylist(ctx, userID, spec.Name, spec.Public, spec.Description)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	chunks := Partition(uris, MaxAppendSize)
	for i, chunk := range chunks {
		sendProgress(progress, addTracksUpdate(i+1, len(chunks), len(chunk)))
		if err := w.AddTracks(ctx, playlistID, chunk); err != nil {
			return playlistID, fmt.Errorf("failed to add tracks to playlist %s: %w", playlistID, err)
		}
	}

	return playlistID, nil
}
