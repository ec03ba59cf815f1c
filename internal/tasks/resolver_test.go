package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/desertthunder/radar/internal/models"
	tu "github.com/desertthunder/radar/internal/testing"
)

func releaseIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("R%02d", i)
	}
	return ids
}

func TestPartition(t *testing.T) {
	tt := []struct {
		name  string
		n     int
		sizes []int
	}{
		{name: "empty", n: 0, sizes: nil},
		{name: "single", n: 1, sizes: []int{1}},
		{name: "exact", n: 20, sizes: []int{20}},
		{name: "one over", n: 21, sizes: []int{20, 1}},
		{name: "forty five", n: 45, sizes: []int{20, 20, 5}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ids := releaseIDs(tc.n)
			batches := Partition(ids, MaxBatchSize)

			var sizes []int
			var flat []string
			for _, b := range batches {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}

			if !slices.Equal(sizes, tc.sizes) {
				t.Errorf("expected batch sizes %v, got %v", tc.sizes, sizes)
			}
			if want := (tc.n + MaxBatchSize - 1) / MaxBatchSize; len(batches) != want {
				t.Errorf("expected %d batches, got %d", want, len(batches))
			}
			if !slices.Equal(flat, ids) && tc.n > 0 {
				t.Error("expected every id exactly once, in order")
			}
		})
	}

	t.Run("non-positive size", func(t *testing.T) {
		if Partition([]int{1, 2}, 0) != nil {
			t.Error("expected nil for size 0")
		}
	})

	t.Run("batches do not alias", func(t *testing.T) {
		batches := Partition([]int{1, 2, 3}, 2)
		batches[0] = append(batches[0], 99)
		if batches[1][0] != 3 {
			t.Error("appending to one batch overwrote the next")
		}
	})
}

func TestResolveReleases(t *testing.T) {
	t.Run("forty five ids in three batches", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		ids := releaseIDs(45)

		releases, err := ResolveReleases(context.Background(), catalog, "US", ids)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var sizes []int
		for _, call := range catalog.ResolveCalls {
			sizes = append(sizes, len(call))
		}
		slices.Sort(sizes)
		if !slices.Equal(sizes, []int{5, 20, 20}) {
			t.Errorf("expected batches of 20, 20 and 5, got %v", sizes)
		}

		requested := catalog.ResolvedIDs()
		slices.Sort(requested)
		if !slices.Equal(requested, ids) {
			t.Error("expected each id to be requested exactly once")
		}

		got := make([]string, len(releases))
		for i, r := range releases {
			got[i] = r.ID
		}
		if !slices.Equal(got, ids) {
			t.Error("expected resolved releases flattened in batch order")
		}
	})

	t.Run("zero ids issue no call", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		releases, err := ResolveReleases(context.Background(), catalog, "US", nil)
		if err != nil || len(releases) != 0 {
			t.Errorf("expected empty result, got %d, %v", len(releases), err)
		}
		if len(catalog.ResolveCalls) != 0 {
			t.Errorf("expected no resolve call, got %d", len(catalog.ResolveCalls))
		}
	})

	t.Run("batch failure fails the join", func(t *testing.T) {
		boom := errors.New("upstream")
		catalog := &tu.MockCatalog{ResolveErr: boom}

		releases, err := ResolveReleases(context.Background(), catalog, "US", releaseIDs(25))
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
		if releases != nil {
			t.Error("expected no partial result")
		}
	})
}

func TestFirstTrackURIs(t *testing.T) {
	releases := []models.Release{
		{ID: "a", Tracks: []models.TrackRef{{URI: "spotify:track:a1"}, {URI: "spotify:track:a2"}}},
		{ID: "b"},
		{ID: "c", Tracks: []models.TrackRef{{URI: "spotify:track:c1"}}},
	}

	uris, missing := FirstTrackURIs(releases)
	if !slices.Equal(uris, []string{"spotify:track:a1", "spotify:track:c1"}) {
		t.Errorf("unexpected uris %v", uris)
	}
	if !slices.Equal(missing, []string{"b"}) {
		t.Errorf("unexpected missing %v", missing)
	}
}

func TestAssemblePlaylist(t *testing.T) {
	spec := PlaylistSpec{Name: "cool api", Description: "A really cool api playlist"}

	t.Run("creates then appends", func(t *testing.T) {
		catalog := &tu.MockCatalog{PlaylistID: "pl"}
		uris := []string{"spotify:track:1", "spotify:track:2"}

		id, err := AssemblePlaylist(context.Background(), catalog, "u1", spec, uris, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "pl" {
			t.Errorf("expected playlist id pl, got %s", id)
		}
		if !slices.Equal(catalog.Events, []string{"create", "add"}) {
			t.Errorf("expected create before add, got %v", catalog.Events)
		}
		if c := catalog.Created[0]; c.UserID != "u1" || c.Public || c.Name != "cool api" {
			t.Errorf("unexpected playlist request %+v", c)
		}
	})

	t.Run("chunks large appends", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		uris := make([]string, 250)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:%d", i)
		}

		if _, err := AssemblePlaylist(context.Background(), catalog, "u1", spec, uris, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var sizes []int
		for _, a := range catalog.Appended {
			sizes = append(sizes, len(a))
		}
		if !slices.Equal(sizes, []int{100, 100, 50}) {
			t.Errorf("expected appends of 100, 100 and 50, got %v", sizes)
		}
	})

	t.Run("no uris still creates", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		if _, err := AssemblePlaylist(context.Background(), catalog, "u1", spec, nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(catalog.Created) != 1 || len(catalog.Appended) != 0 {
			t.Errorf("expected one create and no append, got %d and %d", len(catalog.Created), len(catalog.Appended))
		}
	})

	t.Run("create failure skips append", func(t *testing.T) {
		catalog := &tu.MockCatalog{CreateErr: errors.New("forbidden")}
		if _, err := AssemblePlaylist(context.Background(), catalog, "u1", spec, []string{"x"}, nil); err == nil {
			t.Fatal("expected error")
		}
		if len(catalog.Appended) != 0 {
			t.Error("expected no append after failed create")
		}
	})

	t.Run("append failure keeps playlist id", func(t *testing.T) {
		catalog := &tu.MockCatalog{PlaylistID: "pl", AddErr: errors.New("bad uri")}
		id, err := AssemblePlaylist(context.Background(), catalog, "u1", spec, []string{"x"}, nil)
		if err == nil || id != "pl" {
			t.Errorf("expected error with playlist id, got %q, %v", id, err)
		}
	})
}
