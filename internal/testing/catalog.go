package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/radar/internal/models"
)

// PageCall records one paged request.
type PageCall struct {
	Market    string
	PageSize  int
	PageIndex int
}

// CreatedPlaylist records one playlist creation.
type CreatedPlaylist struct {
	UserID      string
	Name        string
	Public      bool
	Description string
}

// MockCatalog is an in-memory catalog serving fixed pages.
//
// Page i of SavedPages/ReleasePages is served for page index i; every page
// but the last gets a continuation token. Releases looks ids up in Albums and
// synthesizes a one-track album for unknown ids. Safe for concurrent use.
type MockCatalog struct {
	mu sync.Mutex

	User         *models.User
	SavedPages   []models.Page[models.SavedTrack]
	ReleasePages []models.Page[models.Release]
	Albums       map[string]models.Release
	PlaylistID   string

	UserErr     error
	SavedErr    error
	ReleasesErr error
	ResolveErr  error
	CreateErr   error
	AddErr      error

	// FailSavedAt fails the saved-tracks request for this page index with SavedErr when SavedErr is set.
	FailSavedAt int

	Events       []string
	SavedCalls   []PageCall
	ReleaseCalls []PageCall
	ResolveCalls [][]string
	Created      []CreatedPlaylist
	Appended     [][]string
}

func (m *MockCatalog) record(event string) {
	m.Events = append(m.Events, event)
}

func (m *MockCatalog) CurrentUser(ctx context.Context) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("user")
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	if m.User == nil {
		return &models.User{ID: "user", Market: "US"}, nil
	}
	u := *m.User
	return &u, nil
}

func (m *MockCatalog) SavedTracks(ctx context.Context, pageSize, pageIndex int) (models.Page[models.SavedTrack], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("saved:%d", pageIndex))
	m.SavedCalls = append(m.SavedCalls, PageCall{PageSize: pageSize, PageIndex: pageIndex})
	if m.SavedErr != nil && pageIndex == m.FailSavedAt {
		return models.Page[models.SavedTrack]{}, m.SavedErr
	}
	return servePage(m.SavedPages, pageIndex), nil
}

func (m *MockCatalog) NewReleases(ctx context.Context, market string, pageSize, pageIndex int) (models.Page[models.Release], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("releases:%d", pageIndex))
	m.ReleaseCalls = append(m.ReleaseCalls, PageCall{Market: market, PageSize: pageSize, PageIndex: pageIndex})
	if m.ReleasesErr != nil {
		return models.Page[models.Release]{}, m.ReleasesErr
	}
	return servePage(m.ReleasePages, pageIndex), nil
}

func (m *MockCatalog) Releases(ctx context.Context, market string, ids []string) ([]models.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("resolve")
	m.ResolveCalls = append(m.ResolveCalls, slices.Clone(ids))
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}

	releases := make([]models.Release, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.Albums[id]; ok {
			releases = append(releases, r)
			continue
		}
		releases = append(releases, models.Release{
			ID:     id,
			Tracks: []models.TrackRef{{ID: id + "-1", URI: "spotify:track:" + id + "-1"}},
		})
	}
	return releases, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, userID, name string, public bool, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create")
	m.Created = append(m.Created, CreatedPlaylist{UserID: userID, Name: name, Public: public, Description: description})
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if m.PlaylistID == "" {
		return "playlist-1", nil
	}
	return m.PlaylistID, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("add")
	m.Appended = append(m.Appended, slices.Clone(uris))
	return m.AddErr
}

// ResolvedIDs returns every id passed to Releases, in call order.
func (m *MockCatalog) ResolvedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, call := range m.ResolveCalls {
		ids = append(ids, call...)
	}
	return ids
}

func servePage[T any](pages []models.Page[T], index int) models.Page[T] {
	if index >= len(pages) {
		return models.Page[T]{}
	}
	page := pages[index]
	if index < len(pages)-1 && page.Next == nil {
		next := fmt.Sprintf("page-%d", index+1)
		page.Next = &next
	}
	return page
}

// SavedTrackPage builds a page of saved tracks from artist id lists; a nil list becomes an empty slot.
func SavedTrackPage(artists ...[]string) models.Page[models.SavedTrack] {
	page := models.Page[models.SavedTrack]{Items: make([]*models.SavedTrack, len(artists))}
	for i, ids := range artists {
		if ids == nil {
			continue
		}
		track := &models.SavedTrack{ID: fmt.Sprintf("track-%d", i)}
		for _, id := range ids {
			track.ArtistIDs = append(track.ArtistIDs, models.ArtistID(id))
		}
		page.Items[i] = track
	}
	page.Total = len(artists)
	return page
}

// ReleasePage builds a page of releases; nil entries become empty slots.
func ReleasePage(releases ...*models.Release) models.Page[models.Release] {
	return models.Page[models.Release]{Items: releases, Total: len(releases)}
}

// NewRelease builds a release credited to the given artists.
func NewRelease(id string, artists ...string) *models.Release {
	r := &models.Release{
		ID:     id,
		Name:   "Release " + id,
		URI:    "spotify:album:" + id,
		Images: []string{"https://i.scdn.co/image/" + id},
	}
	for _, a := range artists {
		r.ArtistIDs = append(r.ArtistIDs, models.ArtistID(a))
	}
	return r
}

// MockRecorder stores build runs in memory.
type MockRecorder struct {
	Runs      []*models.BuildRun
	Matches   map[string][]models.RunMatch
	CreateErr error
	FinishErr error
}

func (r *MockRecorder) Create(run *models.BuildRun) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	run.SetID(fmt.Sprintf("run-%d", len(r.Runs)+1))
	run.SetSequence(len(r.Runs) + 1)
	r.Runs = append(r.Runs, run)
	return nil
}

func (r *MockRecorder) Finish(run *models.BuildRun, matches []models.RunMatch) error {
	if r.FinishErr != nil {
		return r.FinishErr
	}
	if r.Matches == nil {
		r.Matches = make(map[string][]models.RunMatch)
	}
	r.Matches[run.ID()] = matches
	return nil
}
