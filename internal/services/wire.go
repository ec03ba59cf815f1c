// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"github.com/desertthunder/radar/internal/models"
)

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type spotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	URI     string          `json:"uri"`
	Artists []spotifyArtist `json:"artists"`
}

type savedTrackItem struct {
	AddedAt string        `json:"added_at"`
	Track   *spotifyTrack `json:"track"`
}

// savedTracksPage is the /me/tracks paging object. Items may hold nulls.
type savedTracksPage struct {
	Items  []*savedTrackItem `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Next   *string           `json:"next"`
}

type albumTracks struct {
	Items []spotifyTrack `json:"items"`
	Next  *string        `json:"next"`
	Total int            `json:"total"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	URI         string          `json:"uri"`
	AlbumType   string          `json:"album_type"`
	ReleaseDate string          `json:"release_date"`
	Artists     []spotifyArtist `json:"artists"`
	Images      []spotifyImage  `json:"images"`
	Tracks      *albumTracks    `json:"tracks,omitempty"`
}

type albumPage struct {
	Items  []*spotifyAlbum `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Next   *string         `json:"next"`
}

type searchResponse struct {
	Albums albumPage `json:"albums"`
}

type severalAlbumsResponse struct {
	Albums []*spotifyAlbum `json:"albums"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Public      bool   `json:"public"`
	Description string `json:"description"`
}

type spotifyPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

func (u spotifyUser) toModel() *models.User {
	return &models.User{ID: u.ID, DisplayName: u.DisplayName, Market: u.Country}
}

func artistIDs(artists []spotifyArtist) []models.ArtistID {
	ids := make([]models.ArtistID, 0, len(artists))
	for _, a := range artists {
		if a.ID != "" {
			ids = append(ids, models.ArtistID(a.ID))
		}
	}
	return ids
}

// toModel returns nil for a slot with no track.
func (i *savedTrackItem) toModel() *models.SavedTrack {
	if i == nil || i.Track == nil {
		return nil
	}
	return &models.SavedTrack{
		ID:        i.Track.ID,
		Name:      i.Track.Name,
		URI:       i.Track.URI,
		ArtistIDs: artistIDs(i.Track.Artists),
	}
}

// toModel returns nil for a null slot or an album without an id.
func (a *spotifyAlbum) toModel() *models.Release {
	if a == nil || a.ID == "" {
		return nil
	}

	r := &models.Release{
		ID:          a.ID,
		Name:        a.Name,
		URI:         a.URI,
		ReleaseDate: a.ReleaseDate,
		ArtistIDs:   artistIDs(a.Artists),
	}
	for _, img := range a.Images {
		r.Images = append(r.Images, img.URL)
	}
	if a.Tracks != nil {
		for _, t := range a.Tracks.Items {
			r.Tracks = append(r.Tracks, models.TrackRef{ID: t.ID, URI: t.URI})
		}
	}
	return r
}

func (p savedTracksPage) toModel() models.Page[models.SavedTrack] {
	page := models.Page[models.SavedTrack]{
		Items: make([]*models.SavedTrack, len(p.Items)),
		Total: p.Total,
		Next:  p.Next,
	}
	for i, item := range p.Items {
		page.Items[i] = item.toModel()
	}
	return page
}

func (p albumPage) toModel() models.Page[models.Release] {
	page := models.Page[models.Release]{
		Items: make([]*models.Release, len(p.Items)),
		Total: p.Total,
		Next:  p.Next,
	}
	for i, album := range p.Items {
		page.Items[i] = album.toModel()
	}
	return page
}
