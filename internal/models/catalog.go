package models

import (
	"strings"
	"time"
)

// ArtistID is the catalog's opaque identity for an artist.
type ArtistID string

// Credential is the OAuth credential for one user session.
//
// A Credential is only ever replaced as a whole; callers receive copies.
type Credential struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
	Scopes       []string
}

// Empty reports whether the credential carries neither an access nor a refresh token.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// HasScope reports whether scope was granted.
func (c Credential) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if strings.EqualFold(s, scope) {
			return true
		}
	}
	return false
}

// User is the authenticated user's identity and market.
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Market      string `json:"market" yaml:"market"` // ISO 3166-1 alpha-2 country code
}

// SavedTrack is a track from the user's library.
type SavedTrack struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	URI       string     `json:"uri" yaml:"uri"`
	ArtistIDs []ArtistID `json:"artist_ids" yaml:"artist_ids"`
}

// TrackRef references a playable track by URI.
type TrackRef struct {
	ID  string `json:"id" yaml:"id"`
	URI string `json:"uri" yaml:"uri"`
}

// Release is an album record from the new-release listing or a bulk album lookup.
type Release struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	URI         string     `json:"uri" yaml:"uri"`
	ReleaseDate string     `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	ArtistIDs   []ArtistID `json:"artist_ids" yaml:"artist_ids"`
	Images      []string   `json:"images,omitempty" yaml:"images,omitempty"`
	Tracks      []TrackRef `json:"tracks,omitempty" yaml:"tracks,omitempty"`
}

// Cover returns the first image URL, or an empty string when the release has none.
func (r Release) Cover() string {
	if len(r.Images) == 0 {
		return ""
	}
	return r.Images[0]
}

// Page is one page of a paginated listing.
//
// A nil entry in Items marks a slot the service returned empty or malformed.
// Next is the continuation token; a nil or empty Next ends the traversal.
type Page[T any] struct {
	Items []*T
	Total int
	Index int
	Next  *string
}

// HasNext reports whether another page follows this one.
func (p Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}
