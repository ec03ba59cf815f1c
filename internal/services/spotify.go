// Spotify Web API implementation of the build run catalog
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/paging"
	"github.com/desertthunder/radar/internal/shared"
)

const (
	maxPageSize     = 50
	maxAlbumIDs     = 20
	maxPlaylistURIs = 100
	newReleaseQuery = "tag:new"
	errorBodyLimit  = 512
)

// SpotifyService reads the user's library and the new-release catalog and
// writes playlists. Every call is authorized through an [Authorizer].
type SpotifyService struct {
	client
	auth Authorizer
}

// NewSpotifyService creates a Spotify client that authorizes calls with auth.
func NewSpotifyService(auth Authorizer, opts ...Option) (*SpotifyService, error) {
	if auth == nil {
		return nil, fmt.Errorf("%w: authorizer is required", shared.ErrMissingArgument)
	}
	return &SpotifyService{client: newClient(opts), auth: auth}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authorized request to the Web API and decodes the JSON reply into result.
//
// Authorization failures are returned as is, before anything is sent. Other
// failures are returned as [shared.TransportError].
func (s *SpotifyService) doRequest(ctx context.Context, op, method, endpoint string, body, result any) error {
	header, err := s.auth.Authorize(ctx)
	if err != nil {
		return err
	}

	apiURL := s.baseURL + endpoint
	fail := func(status int, respBody string, cause error) error {
		return &shared.TransportError{Op: op, Method: method, URL: apiURL, StatusCode: status, Body: respBody, Err: cause}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(0, "", fmt.Errorf("failed to encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	if err := s.wait(ctx); err != nil {
		return fail(0, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fail(0, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fail(0, "", fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	s.logger.Debug("spotify request", "op", op, "method", method, "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fail(resp.StatusCode, string(snippet), fmt.Errorf("spotify API error: status %d", resp.StatusCode))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fail(resp.StatusCode, "", fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return nil
}

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return 20
	}
	return min(pageSize, maxPageSize)
}

// CurrentUser retrieves the authenticated user's id and market.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user spotifyUser
	if err := s.doRequest(ctx, "current user", http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return user.toModel(), nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, pageSize, pageIndex int) (models.Page[models.SavedTrack], error) {
	limit := clampPageSize(pageSize)
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(paging.Offset(limit, pageIndex)))

	var response savedTracksPage
	if err := s.doRequest(ctx, "saved tracks", http.MethodGet, "/me/tracks?"+q.Encode(), nil, &response); err != nil {
		return models.Page[models.SavedTrack]{}, err
	}
	return response.toModel(), nil
}

// NewReleases retrieves one page of albums tagged new in market.
func (s *SpotifyService) NewReleases(ctx context.Context, market string, pageSize, pageIndex int) (models.Page[models.Release], error) {
	limit := clampPageSize(pageSize)
	q := url.Values{}
	q.Set("q", newReleaseQuery)
	q.Set("type", "album")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(paging.Offset(limit, pageIndex)))
	if market != "" {
		q.Set("market", market)
	}

	var response searchResponse
	if err := s.doRequest(ctx, "new releases", http.MethodGet, "/search?"+q.Encode(), nil, &response); err != nil {
		return models.Page[models.Release]{}, err
	}
	return response.Albums.toModel(), nil
}

// Releases retrieves full album records, including tracks, for up to 20 ids.
//
// Ids the service does not know come back as null and are dropped.
func (s *SpotifyService) Releases(ctx context.Context, market string, ids []string) ([]models.Release, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxAlbumIDs {
		return nil, fmt.Errorf("%w: at most %d album ids per call, got %d", shared.ErrInvalidArgument, maxAlbumIDs, len(ids))
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	if market != "" {
		q.Set("market", market)
	}

	var response severalAlbumsResponse
	if err := s.doRequest(ctx, "albums", http.MethodGet, "/albums?"+q.Encode(), nil, &response); err != nil {
		return nil, err
	}

	releases := make([]models.Release, 0, len(response.Albums))
	for i, album := range response.Albums {
		r := album.toModel()
		if r == nil {
			s.logger.Warn("album lookup returned no record", "index", i)
			continue
		}
		releases = append(releases, *r)
	}
	return releases, nil
}

// CreatePlaylist creates a playlist owned by userID and returns its id.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name string, public bool, description string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := createPlaylistRequest{Name: name, Public: public, Description: description}

	var playlist spotifyPlaylist
	if err := s.doRequest(ctx, "create playlist", http.MethodPost, endpoint, body, &playlist); err != nil {
		return "", err
	}
	if playlist.ID == "" {
		return "", fmt.Errorf("%w: playlist response has no id", shared.ErrMalformedItem)
	}
	return playlist.ID, nil
}

// AddTracks appends up to 100 track uris to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > maxPlaylistURIs {
		return fmt.Errorf("%w: at most %d uris per call, got %d", shared.ErrInvalidArgument, maxPlaylistURIs, len(uris))
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	var snapshot snapshotResponse
	return s.doRequest(ctx, "add tracks", http.MethodPost, endpoint, addTracksRequest{URIs: uris}, &snapshot)
}
